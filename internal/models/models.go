// Package models defines the core data structures for daily-halacha-translate.
//
// It includes the canonical inbound unit derived from webhook deliveries,
// outbound message variants, handler results, and delivery records, which are
// shared across modules.
package models

import (
	"errors"
	"time"
)

// MessageKind classifies the payload of an inbound unit.
type MessageKind string

const (
	// MessageKindText is a plain text message.
	MessageKindText MessageKind = "text"
	// MessageKindAudio is a voice note or audio attachment.
	MessageKindAudio MessageKind = "audio"
	// MessageKindUnknown is anything else (images, stickers, reactions, ...).
	MessageKindUnknown MessageKind = "unknown"
)

// Validation constants shared across components.
const (
	// MaxAudioDownloadBytes is the hard ceiling for inbound voice note size.
	MaxAudioDownloadBytes = 15 * 1024 * 1024
	// MaxSynthesisChars bounds the text length handed to speech synthesis.
	// Longer translations are truncated with an ellipsis before synthesis;
	// the full text reply is unaffected.
	MaxSynthesisChars = 1000
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient  = errors.New("recipient cannot be empty")
	ErrEmptyBody       = errors.New("message body cannot be empty")
	ErrEmptyAudio      = errors.New("audio payload has no media id, data, or link")
	ErrNoMessage       = errors.New("webhook payload contains no message")
	ErrUnknownOutbound = errors.New("outbound message has no payload")
)

// InboundUnit is the canonical, deduplicated unit of work extracted from one
// webhook delivery. It is derived once and never mutated afterwards.
type InboundUnit struct {
	SenderID string      `json:"sender_id"`
	Kind     MessageKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	AudioID  string      `json:"audio_id,omitempty"`
}

// AudioPayload carries an outbound audio reply. Exactly one delivery form is
// required: a platform media ID, raw bytes (uploaded by the sender), or a
// public link used as a text fallback when upload is unavailable.
type AudioPayload struct {
	MediaID  string `json:"media_id,omitempty"`
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type,omitempty"`
	Link     string `json:"link,omitempty"`
}

// Empty reports whether the payload carries nothing deliverable.
func (a AudioPayload) Empty() bool {
	return a.MediaID == "" && len(a.Data) == 0 && a.Link == ""
}

// OutboundMessage is a tagged variant: exactly one of Text or Audio is set.
type OutboundMessage struct {
	Text  string        `json:"text,omitempty"`
	Audio *AudioPayload `json:"audio,omitempty"`
}

// TextMessage builds a text outbound message.
func TextMessage(body string) OutboundMessage {
	return OutboundMessage{Text: body}
}

// AudioMessage builds an audio outbound message.
func AudioMessage(audio AudioPayload) OutboundMessage {
	return OutboundMessage{Audio: &audio}
}

// IsAudio reports whether the message carries an audio payload.
func (m OutboundMessage) IsAudio() bool {
	return m.Audio != nil
}

// Validate checks that the message carries exactly one payload variant.
func (m OutboundMessage) Validate() error {
	if m.Audio != nil {
		if m.Text != "" {
			return ErrUnknownOutbound
		}
		if m.Audio.Empty() {
			return ErrEmptyAudio
		}
		return nil
	}
	if m.Text == "" {
		return ErrEmptyBody
	}
	return nil
}

// HandlerResult is the outcome of running one handler for an admitted unit.
type HandlerResult struct {
	Replies     []OutboundMessage
	SideEffects bool
}

// DispatchOutcome is the terminal state of processing one webhook delivery.
type DispatchOutcome string

const (
	// OutcomeReplied means the unit was admitted and the reply sequence sent.
	OutcomeReplied DispatchOutcome = "replied"
	// OutcomeDuplicateSkipped means the dedup gate rejected a repeat delivery.
	OutcomeDuplicateSkipped DispatchOutcome = "duplicate_skipped"
	// OutcomeFailed means the unit was admitted but processing failed; the
	// reply is an error message.
	OutcomeFailed DispatchOutcome = "failed"
	// OutcomeNoWork means the payload carried no dispatchable message.
	OutcomeNoWork DispatchOutcome = "no_work"
)

// Delivery records the terminal outcome of one dispatched unit of work.
type Delivery struct {
	WorkKey  string          `json:"work_key"`
	SenderID string          `json:"sender_id"`
	Kind     MessageKind     `json:"kind"`
	Outcome  DispatchOutcome `json:"outcome"`
	Detail   string          `json:"detail,omitempty"`
	Time     int64           `json:"time"`
}

// MediaObject records archival metadata for one persisted audio file.
type MediaObject struct {
	Name      string    `json:"name"`
	SenderID  string    `json:"sender_id"`
	Direction string    `json:"direction"` // "inbound" or "outbound"
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	PublicURL string    `json:"public_url"`
	CreatedAt time.Time `json:"created_at"`
}
