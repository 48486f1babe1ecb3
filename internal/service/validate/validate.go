// Package validate is the field gate run before any delivery leaves the
// process. Pure and synchronous; no network calls.
package validate

import (
	"regexp"
	"strings"
	"time"

	"github.com/leafpost/leafpost/internal/model/mail"
	"github.com/leafpost/leafpost/internal/model/persona"
)

// Field keys the error map returned by Validate.
type Field string

const (
	FieldRecipient   Field = "recipientAddress"
	FieldSubject     Field = "subject"
	FieldBody        Field = "bodyText"
	FieldVoice       Field = "voice"
	FieldScheduledAt Field = "scheduledAt"
)

const maxAddressLen = 255

// recipientPattern matches the local@domain shape the backend accepts.
var recipientPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// VoiceUnavailableMessage flags a data problem rather than a user-input one:
// the selected persona arrived without a usable voice identifier.
const VoiceUnavailableMessage = "voice information unavailable — refresh and retry"

type options struct {
	defaultSubject string
	now            func() time.Time
}

// Option adjusts validation policy.
type Option func(*options)

// WithDefaultSubject switches to the historical placeholder policy: a blank
// subject passes validation and callers substitute the placeholder. Not wired
// by default; subject is required.
func WithDefaultSubject(placeholder string) Option {
	return func(o *options) { o.defaultSubject = placeholder }
}

// WithNow fixes the clock used for the scheduled-time check.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Validate checks the draft against every field constraint and returns a
// field-keyed error map; an empty map means the draft is valid. The first
// failing rule per field wins. p is the resolved persona for the draft, nil
// when resolution failed.
func Validate(d mail.Draft, p *persona.Persona, opts ...Option) map[Field]string {
	cfg := options{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	errs := make(map[Field]string)

	recipient := strings.TrimSpace(d.RecipientAddress)
	switch {
	case recipient == "":
		errs[FieldRecipient] = "recipient address is required"
	case !recipientPattern.MatchString(recipient):
		errs[FieldRecipient] = "recipient address must look like local@domain"
	case len(recipient) > maxAddressLen:
		errs[FieldRecipient] = "recipient address must be 255 characters or fewer"
	}

	subject := strings.TrimSpace(d.Subject)
	switch {
	case subject == "" && cfg.defaultSubject == "":
		errs[FieldSubject] = "subject is required"
	case len(subject) > maxAddressLen:
		errs[FieldSubject] = "subject must be 255 characters or fewer"
	}

	if strings.TrimSpace(d.BodyText) == "" {
		errs[FieldBody] = "body text is required"
	}

	if p == nil || p.VoiceID == "" {
		errs[FieldVoice] = VoiceUnavailableMessage
	}

	if d.ScheduledAt != nil && !d.ScheduledAt.After(cfg.now()) {
		errs[FieldScheduledAt] = "scheduled time must be in the future"
	}

	return errs
}
