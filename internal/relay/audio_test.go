package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/neshkoli/daily-halacha-translate/internal/cloudapi"
	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

type mockTranscriber struct {
	text  string
	err   error
	calls int
}

func (m *mockTranscriber) TranscribeTranslate(ctx context.Context, audio []byte, mimeType, prompt string) (string, error) {
	m.calls++
	return m.text, m.err
}

type mockSynthesizer struct {
	audio []byte
	err   error
	calls int
	seen  string
}

func (m *mockSynthesizer) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	m.calls++
	m.seen = text
	return m.audio, m.err
}

type sentText struct {
	To   string
	Body string
}

// mockMessenger implements messaging.Service for relay tests.
type mockMessenger struct {
	mu       sync.Mutex
	texts    []sentText
	audio    []models.AudioPayload
	textErr  error
	audioErr error
}

func (m *mockMessenger) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return recipient, nil
}

func (m *mockMessenger) SendMessage(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.textErr != nil {
		return m.textErr
	}
	m.texts = append(m.texts, sentText{To: to, Body: body})
	return nil
}

func (m *mockMessenger) SendAudio(ctx context.Context, to string, audio models.AudioPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.audioErr != nil {
		return m.audioErr
	}
	m.audio = append(m.audio, audio)
	return nil
}

func (m *mockMessenger) Start(ctx context.Context) error { return nil }
func (m *mockMessenger) Stop() error                     { return nil }

func audioUnit() models.InboundUnit {
	return models.InboundUnit{SenderID: "972500000000", Kind: models.MessageKindAudio, AudioID: "media-7"}
}

func TestAudioPipelineSuccess(t *testing.T) {
	media := cloudapi.NewMockClient()
	media.DownloadData = []byte("hebrew-opus")
	transcriber := &mockTranscriber{text: "One must light candles before sunset."}
	synthesizer := &mockSynthesizer{audio: []byte("english-opus")}
	messenger := &mockMessenger{}

	p := NewAudioPipeline(media, transcriber, synthesizer, messenger)
	result, err := p.Handle(context.Background(), audioUnit())
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	// Processing ack goes out before the real reply.
	if len(messenger.texts) != 1 || messenger.texts[0].Body != ProcessingText {
		t.Errorf("expected processing ack, got %+v", messenger.texts)
	}

	if len(result.Replies) != 2 {
		t.Fatalf("expected text + audio replies, got %d", len(result.Replies))
	}
	if result.Replies[0].Text != "One must light candles before sunset." {
		t.Errorf("unexpected text reply %q", result.Replies[0].Text)
	}
	if !result.Replies[1].IsAudio() || string(result.Replies[1].Audio.Data) != "english-opus" {
		t.Errorf("unexpected audio reply %+v", result.Replies[1])
	}
}

func TestAudioPipelineOversizedDownload(t *testing.T) {
	media := cloudapi.NewMockClient()
	media.DownloadErr = fmt.Errorf("media media-7: %w", models.ErrMediaTooLarge)
	transcriber := &mockTranscriber{}
	synthesizer := &mockSynthesizer{}

	p := NewAudioPipeline(media, transcriber, synthesizer, &mockMessenger{})
	result, err := p.Handle(context.Background(), audioUnit())
	if err == nil {
		t.Fatalf("expected an error for oversized download")
	}
	if got := result.Replies[0].Text; got != MediaTooLargeText {
		t.Errorf("unexpected reply %q", got)
	}
	if transcriber.calls != 0 {
		t.Errorf("no transcription call may happen after a rejected download")
	}
	if synthesizer.calls != 0 {
		t.Errorf("no synthesis call may happen after a rejected download")
	}
}

func TestAudioPipelineTranslationUnavailable(t *testing.T) {
	media := cloudapi.NewMockClient()
	media.DownloadData = []byte("hebrew-opus")
	transcriber := &mockTranscriber{err: fmt.Errorf("whisper: %w", models.ErrServiceUnavailable)}
	synthesizer := &mockSynthesizer{}

	p := NewAudioPipeline(media, transcriber, synthesizer, &mockMessenger{})
	result, err := p.Handle(context.Background(), audioUnit())
	if err == nil {
		t.Fatalf("expected an error for failed translation")
	}
	if got := result.Replies[0].Text; got != ServiceBusyText {
		t.Errorf("expected service busy reply, got %q", got)
	}
	if synthesizer.calls != 0 {
		t.Errorf("no synthesis call may happen after a failed translation")
	}
}

func TestAudioPipelineSynthesisFailureKeepsText(t *testing.T) {
	media := cloudapi.NewMockClient()
	media.DownloadData = []byte("hebrew-opus")
	transcriber := &mockTranscriber{text: "Some translation."}
	synthesizer := &mockSynthesizer{err: models.ErrNoAudio}

	p := NewAudioPipeline(media, transcriber, synthesizer, &mockMessenger{})
	result, err := p.Handle(context.Background(), audioUnit())
	if err != nil {
		t.Fatalf("synthesis failure must not fail the pipeline: %v", err)
	}
	if len(result.Replies) != 1 {
		t.Fatalf("expected exactly one text reply, got %d replies", len(result.Replies))
	}
	if result.Replies[0].IsAudio() || result.Replies[0].Text != "Some translation." {
		t.Errorf("unexpected reply %+v", result.Replies[0])
	}
}

func TestAudioPipelineTruncatesSynthesisInput(t *testing.T) {
	media := cloudapi.NewMockClient()
	media.DownloadData = []byte("hebrew-opus")
	long := strings.Repeat("a", models.MaxSynthesisChars+200)
	transcriber := &mockTranscriber{text: long}
	synthesizer := &mockSynthesizer{audio: []byte("english-opus")}

	p := NewAudioPipeline(media, transcriber, synthesizer, &mockMessenger{})
	result, err := p.Handle(context.Background(), audioUnit())
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	wantSynth := strings.Repeat("a", models.MaxSynthesisChars) + "…"
	if synthesizer.seen != wantSynth {
		t.Errorf("synthesis input not truncated: len=%d", len(synthesizer.seen))
	}
	// The full translation still goes out as text.
	if result.Replies[0].Text != long {
		t.Errorf("text reply must carry the full translation")
	}
}

func TestTruncateForSynthesisShortText(t *testing.T) {
	if got := truncateForSynthesis("short"); got != "short" {
		t.Errorf("short text must pass through, got %q", got)
	}
}
