package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to the remote transformation/delivery service. It owns three
// logical calls for the compose pipeline (preview, send, session status) plus
// the raw persona listing consumed by the directory.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient builds a client for the given base URL, e.g. "https://api.example.com/api".
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "remote").Logger(),
	}
}

// PreviewRequest carries everything the remote transformer needs for one
// non-committal rendering. Safe to issue repeatedly for the same arguments.
type PreviewRequest struct {
	PersonaID        int    `json:"personaId"`
	VoiceID          string `json:"toneType"`
	BodyText         string `json:"originalText"`
	RecipientAddress string `json:"receiverEmail"`
}

// PreviewResponse is the transformer's rendering of the draft body.
type PreviewResponse struct {
	RenderedText     string `json:"previewText"`
	RenderedImageURL string `json:"previewImageUrl,omitempty"`
}

// SendRequest commits a delivery. Not idempotent; each call may produce a new
// delivery record on the remote side.
type SendRequest struct {
	PersonaID        int       `json:"personaId"`
	VoiceID          string    `json:"toneType"`
	RecipientAddress string    `json:"receiverEmail"`
	Subject          string    `json:"subject"`
	BodyText         string    `json:"originalText"`
	DispatchAt       time.Time `json:"scheduledAt"`
}

// SendResponse reports what the remote actually rendered. RenderedText may be
// empty even on success; callers treat that the same as a rendering failure.
type SendResponse struct {
	RenderedText     string `json:"transformedText"`
	RenderedImageURL string `json:"imageUrl,omitempty"`
}

// SessionStatus is the authentication oracle's answer. Safe to poll.
type SessionStatus struct {
	Authenticated bool `json:"authenticated"`
	User          struct {
		Email string `json:"email"`
	} `json:"user"`
}

// Preview renders the draft body in the persona's voice without committing
// anything.
func (c *Client) Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	var resp PreviewResponse
	if err := c.do(ctx, http.MethodPost, "/emails/preview", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Send commits an immediate or scheduled delivery.
func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	var resp SendResponse
	if err := c.do(ctx, http.MethodPost, "/emails", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionStatus probes the authentication oracle.
func (c *Client) SessionStatus(ctx context.Context) (*SessionStatus, error) {
	var resp SessionStatus
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Personas fetches the raw persona records. The response shape is not trusted
// here; normalization happens at the directory boundary.
func (c *Client) Personas(ctx context.Context, sort string, limit int) (json.RawMessage, error) {
	params := url.Values{}
	if sort != "" {
		params.Set("sort", sort)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	path := "/personas"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("request did not reach the server")
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls a human-readable message out of an error body, tolerating
// the few envelope shapes the backend has used over time.
func errorMessage(data []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}
