package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/calendar"
	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

type mockCalendar struct {
	daf     calendar.Item
	dafErr  error
	hebrew  string
	hebErr  error
	dafSeen int
}

func (m *mockCalendar) DafYomi(ctx context.Context) (calendar.Item, error) {
	m.dafSeen++
	return m.daf, m.dafErr
}

func (m *mockCalendar) HebrewDate(ctx context.Context, t time.Time) (string, error) {
	return m.hebrew, m.hebErr
}

func textUnit(text string) models.InboundUnit {
	return models.InboundUnit{SenderID: "972500000000", Kind: models.MessageKindText, Text: text}
}

func singleReplyText(t *testing.T, result models.HandlerResult) string {
	t.Helper()
	if len(result.Replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(result.Replies))
	}
	if result.Replies[0].IsAudio() {
		t.Fatalf("expected a text reply")
	}
	return result.Replies[0].Text
}

func TestDispatchHelpCommand(t *testing.T) {
	d := NewDispatcher(nil, &mockCalendar{})
	for _, text := range []string{"/help", "/HELP", "  /Help  "} {
		result, err := d.Dispatch(context.Background(), textUnit(text))
		if err != nil {
			t.Fatalf("Dispatch(%q) failed: %v", text, err)
		}
		if got := singleReplyText(t, result); got != HelpText {
			t.Errorf("Dispatch(%q) = %q, want help text", text, got)
		}
	}
}

func TestDispatchDafCommand(t *testing.T) {
	cal := &mockCalendar{daf: calendar.Item{DisplayText: "עבודה זרה מ״ז", URL: "https://sefaria.org.il/Avodah_Zarah.47"}}
	d := NewDispatcher(nil, cal)

	result, err := d.Dispatch(context.Background(), textUnit("/daf"))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	want := "הדף היומי להיום: עבודה זרה מ״ז\nhttps://sefaria.org.il/Avodah_Zarah.47"
	if got := singleReplyText(t, result); got != want {
		t.Errorf("unexpected daf reply %q", got)
	}
}

func TestDispatchDafCommandLookupFailure(t *testing.T) {
	cal := &mockCalendar{dafErr: errors.New("sefaria down")}
	d := NewDispatcher(nil, cal)

	// Lookup failures become a fixed localized reply, never an error.
	result, err := d.Dispatch(context.Background(), textUnit("/daf"))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if got := singleReplyText(t, result); got != "שגיאה בשליפת הדף היומי." {
		t.Errorf("unexpected error reply %q", got)
	}
}

func TestDispatchDafCommandNotFound(t *testing.T) {
	// A calendar with no Daf Yomi entry gets its own reply, distinct from
	// the fetch-error one.
	cal := &mockCalendar{dafErr: fmt.Errorf("daf yomi lookup: %w", models.ErrItemNotFound)}
	d := NewDispatcher(nil, cal)

	result, err := d.Dispatch(context.Background(), textUnit("/daf"))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if got := singleReplyText(t, result); got != "לא נמצא דף יומי להיום." {
		t.Errorf("unexpected not-found reply %q", got)
	}
}

func TestDispatchHebdateCommand(t *testing.T) {
	cal := &mockCalendar{hebrew: "ח׳ באלול תשפ״ה"}
	d := NewDispatcher(nil, cal)

	result, err := d.Dispatch(context.Background(), textUnit("/hebdate"))
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if got := singleReplyText(t, result); got != "התאריך העברי היום: ח׳ באלול תשפ״ה" {
		t.Errorf("unexpected hebdate reply %q", got)
	}
}

func TestDispatchFallback(t *testing.T) {
	cal := &mockCalendar{}
	d := NewDispatcher(nil, cal)

	// No fuzzy or prefix matching: near-misses get the fallback.
	for _, text := range []string{"hello", "/helpme", "/daf yomi", "help"} {
		result, err := d.Dispatch(context.Background(), textUnit(text))
		if err != nil {
			t.Fatalf("Dispatch(%q) failed: %v", text, err)
		}
		if got := singleReplyText(t, result); got != FallbackText {
			t.Errorf("Dispatch(%q) = %q, want fallback", text, got)
		}
	}
	if cal.dafSeen != 0 {
		t.Errorf("fallback routing should not hit the calendar")
	}
}

func TestDispatchUnknownKindDropped(t *testing.T) {
	d := NewDispatcher(nil, &mockCalendar{})
	unit := models.InboundUnit{SenderID: "972500000000", Kind: models.MessageKindUnknown}
	result, err := d.Dispatch(context.Background(), unit)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(result.Replies) != 0 {
		t.Errorf("unknown kind should produce no replies, got %d", len(result.Replies))
	}
}
