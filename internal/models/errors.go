package models

import "errors"

// FailureClass groups downstream failures by how the relay reports them to
// the end user.
type FailureClass string

const (
	// FailureTransientUpstream is a service overloaded/unavailable condition.
	// It produces a specific user-facing apology and is never retried.
	FailureTransientUpstream FailureClass = "transient_upstream"
	// FailurePermanentInput is a rejected input (oversized file, malformed
	// payload) with a specific rejection message.
	FailurePermanentInput FailureClass = "permanent_input"
	// FailureBestEffort is an archival/synthesis/upload failure: logged,
	// never surfaced beyond omitting the enhancement.
	FailureBestEffort FailureClass = "best_effort"
	// FailureUnclassified falls back to a generic apology that may include
	// the raw error text for operator diagnosis.
	FailureUnclassified FailureClass = "unclassified"
)

// Sentinel errors raised by capability clients. Components wrap these with
// context; Classify unwraps them to pick the user-facing message.
var (
	// ErrServiceUnavailable marks an overloaded or unreachable upstream AI service.
	ErrServiceUnavailable = errors.New("upstream service unavailable")
	// ErrNoAudio marks a speech synthesis call that returned no audio bytes.
	ErrNoAudio = errors.New("no audio returned")
	// ErrMediaTooLarge marks an inbound media download over the size ceiling.
	ErrMediaTooLarge = errors.New("media exceeds size ceiling")
	// ErrStorage marks an archival persistence failure (non-fatal to callers).
	ErrStorage = errors.New("storage failure")
	// ErrItemNotFound marks a calendar lookup with no matching item.
	ErrItemNotFound = errors.New("calendar item not found")
	// ErrDelivery marks a failed platform send.
	ErrDelivery = errors.New("message delivery failed")
)

// Classify maps an error to its failure class.
func Classify(err error) FailureClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrServiceUnavailable):
		return FailureTransientUpstream
	case errors.Is(err, ErrMediaTooLarge):
		return FailurePermanentInput
	case errors.Is(err, ErrNoAudio), errors.Is(err, ErrStorage):
		return FailureBestEffort
	default:
		return FailureUnclassified
	}
}
