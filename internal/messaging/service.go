// Package messaging provides the pluggable message delivery abstraction and
// its backends: the WhatsApp Cloud API (primary), a Whatsmeow-based client,
// and Twilio.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex matches every character that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Returns the canonicalized recipient and an error if
	// validation fails. This allows each backend to implement its own
	// recipient rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendAudio sends an audio message to a recipient. The payload may carry
	// a platform media ID, raw bytes to upload, or a public link; backends
	// use whichever form they support.
	SendAudio(ctx context.Context, to string, audio models.AudioPayload) error

	// Start begins any background processing.
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error
}

// canonicalizePhoneNumber strips non-digit characters and validates the
// result. Shared by every backend since they all address recipients by
// phone number.
func canonicalizePhoneNumber(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if recipient != canonical {
		slog.Debug("messaging.canonicalizePhoneNumber: recipient canonicalized", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}
