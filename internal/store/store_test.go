package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

func TestInMemoryStoreRecordInbound(t *testing.T) {
	st := NewInMemoryStore()

	admitted, err := st.RecordInbound("audio:m1", "sender1")
	if err != nil || !admitted {
		t.Fatalf("first RecordInbound = (%v, %v), want (true, nil)", admitted, err)
	}
	admitted, err = st.RecordInbound("audio:m1", "sender1")
	if err != nil || admitted {
		t.Fatalf("second RecordInbound = (%v, %v), want (false, nil)", admitted, err)
	}

	if err := st.ClearInbound(); err != nil {
		t.Fatalf("ClearInbound failed: %v", err)
	}
	admitted, _ = st.RecordInbound("audio:m1", "sender1")
	if !admitted {
		t.Errorf("expected key admitted again after clear")
	}
}

func TestInMemoryStoreRecentDeliveries(t *testing.T) {
	st := NewInMemoryStore()
	for i, key := range []string{"k1", "k2", "k3"} {
		err := st.AddDelivery(models.Delivery{
			WorkKey:  key,
			SenderID: "s",
			Kind:     models.MessageKindText,
			Outcome:  models.OutcomeReplied,
			Time:     int64(i),
		})
		if err != nil {
			t.Fatalf("AddDelivery failed: %v", err)
		}
	}

	got, err := st.RecentDeliveries(2)
	if err != nil {
		t.Fatalf("RecentDeliveries failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0].WorkKey != "k3" || got[1].WorkKey != "k2" {
		t.Errorf("expected newest first, got %q then %q", got[0].WorkKey, got[1].WorkKey)
	}
}

func TestDetectDSNType(t *testing.T) {
	cases := map[string]string{
		"postgres://user:pw@localhost/db":  "postgres",
		"postgresql://localhost/db":        "postgres",
		"host=localhost dbname=halacha":    "postgres",
		"/var/lib/daily-halacha/db.sqlite": "sqlite",
		"halacha.db":                       "sqlite",
	}
	for dsn, want := range cases {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestMediaStoreSaveAudio(t *testing.T) {
	dir := t.TempDir()
	repo := NewInMemoryStore()
	ms, err := NewMediaStore(dir, "https://bot.example.com/", repo)
	if err != nil {
		t.Fatalf("NewMediaStore failed: %v", err)
	}

	url, err := ms.SaveAudio("halacha_test", []byte("opusdata"), "12345", "inbound", "audio/ogg; codecs=opus")
	if err != nil {
		t.Fatalf("SaveAudio failed: %v", err)
	}
	if url != "https://bot.example.com/media/halacha_test.ogg" {
		t.Errorf("unexpected public URL %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "halacha_test.ogg"))
	if err != nil {
		t.Fatalf("persisted file missing: %v", err)
	}
	if string(data) != "opusdata" {
		t.Errorf("persisted bytes mismatch")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.media) != 1 || repo.media[0].Name != "halacha_test.ogg" {
		t.Errorf("expected one media metadata record, got %+v", repo.media)
	}
	if repo.media[0].CreatedAt.After(time.Now()) {
		t.Errorf("media CreatedAt in the future")
	}
}

func TestMediaStoreNoBaseURL(t *testing.T) {
	ms, err := NewMediaStore(t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("NewMediaStore failed: %v", err)
	}
	url, err := ms.SaveAudio("x", []byte("d"), "s", "outbound", "audio/mpeg")
	if err != nil {
		t.Fatalf("SaveAudio failed: %v", err)
	}
	if url != "" {
		t.Errorf("expected empty public URL without base, got %q", url)
	}
	if !strings.HasSuffix(filepath.Join(ms.Dir(), "x.mp3"), "x.mp3") {
		t.Errorf("unexpected media dir behavior")
	}
}
