package mail

import (
	"errors"
	"time"
)

// ErrDispatchInPast rejects delivery requests whose dispatch instant already
// passed at construction time.
var ErrDispatchInPast = errors.New("dispatch time is in the past")

// DeliveryRequest is an immutable snapshot of a validated draft taken at
// submit time. Once snapshotted, no component mutates the originating draft's
// copied fields.
type DeliveryRequest struct {
	PersonaID        int
	RecipientAddress string
	Subject          string
	BodyText         string
	VoiceID          string
	DispatchAt       time.Time
}

// NewDeliveryRequest builds the snapshot, enforcing that DispatchAt is never
// strictly before now.
func NewDeliveryRequest(d Draft, voiceID string, dispatchAt, now time.Time) (DeliveryRequest, error) {
	if dispatchAt.Before(now) {
		return DeliveryRequest{}, ErrDispatchInPast
	}
	return DeliveryRequest{
		PersonaID:        d.PersonaID,
		RecipientAddress: d.RecipientAddress,
		Subject:          d.Subject,
		BodyText:         d.BodyText,
		VoiceID:          voiceID,
		DispatchAt:       dispatchAt,
	}, nil
}
