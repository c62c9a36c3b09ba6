package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestOutboundMessageValidate(t *testing.T) {
	if err := TextMessage("hello").Validate(); err != nil {
		t.Errorf("expected valid text message, got %v", err)
	}
	if err := (OutboundMessage{}).Validate(); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
	if err := AudioMessage(AudioPayload{}).Validate(); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("expected ErrEmptyAudio, got %v", err)
	}
	if err := AudioMessage(AudioPayload{MediaID: "m1"}).Validate(); err != nil {
		t.Errorf("expected valid audio message, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want FailureClass
	}{
		{ErrServiceUnavailable, FailureTransientUpstream},
		{fmt.Errorf("transcription: %w", ErrServiceUnavailable), FailureTransientUpstream},
		{ErrMediaTooLarge, FailurePermanentInput},
		{ErrNoAudio, FailureBestEffort},
		{ErrStorage, FailureBestEffort},
		{errors.New("boom"), FailureUnclassified},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %s, want %s", c.err, got, c.want)
		}
	}
	if got := Classify(nil); got != "" {
		t.Errorf("Classify(nil) = %s, want empty", got)
	}
}
