package mail

import "time"

// Draft is the user's in-progress, unsent composition. Exactly one Draft
// exists per open compose session; it is discarded on successful submit or
// explicit cancel and is mutated only by that session's input handlers.
type Draft struct {
	ID               string     `json:"id"`
	PersonaID        int        `json:"personaId"`
	RecipientAddress string     `json:"recipientAddress"`
	Subject          string     `json:"subject"`
	BodyText         string     `json:"bodyText"`
	ScheduledAt      *time.Time `json:"scheduledAt,omitempty"` // nil = send now
}
