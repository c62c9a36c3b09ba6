package relay

import (
	"testing"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

func TestWorkKeyForAudio(t *testing.T) {
	unit := models.InboundUnit{SenderID: "s", Kind: models.MessageKindAudio, AudioID: "media-7"}
	if got := WorkKeyFor(unit, time.Minute, time.Now()); got != "audio:media-7" {
		t.Errorf("unexpected audio key %q", got)
	}
}

func TestWorkKeyForTextNormalization(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	a := models.InboundUnit{SenderID: "s", Kind: models.MessageKindText, Text: "/Help"}
	b := models.InboundUnit{SenderID: "s", Kind: models.MessageKindText, Text: "  /help  "}
	if WorkKeyFor(a, 5*time.Minute, now) != WorkKeyFor(b, 5*time.Minute, now) {
		t.Errorf("casing and whitespace should not change the key")
	}
}

func TestWorkKeyForTextDiffers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	base := models.InboundUnit{SenderID: "s", Kind: models.MessageKindText, Text: "/help"}

	otherSender := base
	otherSender.SenderID = "t"
	if WorkKeyFor(base, 5*time.Minute, now) == WorkKeyFor(otherSender, 5*time.Minute, now) {
		t.Errorf("different senders should get different keys")
	}

	otherText := base
	otherText.Text = "/daf"
	if WorkKeyFor(base, 5*time.Minute, now) == WorkKeyFor(otherText, 5*time.Minute, now) {
		t.Errorf("different text should get different keys")
	}
}

func TestWorkKeyForSubSecondWindow(t *testing.T) {
	// A window below one second must still bucket correctly instead of
	// dividing by a truncated zero.
	unit := models.InboundUnit{SenderID: "s", Kind: models.MessageKindText, Text: "/help"}
	now := time.Unix(1_700_000_000, 0)

	within := WorkKeyFor(unit, 500*time.Millisecond, now.Add(100*time.Millisecond))
	if WorkKeyFor(unit, 500*time.Millisecond, now) != within {
		t.Errorf("keys within one sub-second bucket should match")
	}
	later := WorkKeyFor(unit, 500*time.Millisecond, now.Add(time.Second))
	if WorkKeyFor(unit, 500*time.Millisecond, now) == later {
		t.Errorf("keys across sub-second buckets should differ")
	}
}

func TestWorkKeyForTextTimeBucket(t *testing.T) {
	unit := models.InboundUnit{SenderID: "s", Kind: models.MessageKindText, Text: "/help"}
	now := time.Unix(1_700_000_000, 0)

	within := WorkKeyFor(unit, 5*time.Minute, now.Add(time.Second))
	if WorkKeyFor(unit, 5*time.Minute, now) != within {
		t.Errorf("keys within one bucket should match")
	}
	later := WorkKeyFor(unit, 5*time.Minute, now.Add(10*time.Minute))
	if WorkKeyFor(unit, 5*time.Minute, now) == later {
		t.Errorf("keys across buckets should differ")
	}
}
