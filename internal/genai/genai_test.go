package genai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

type mockTranslationService struct {
	text string
	err  error
	seen *openai.AudioTranslationNewParams
}

func (m *mockTranslationService) New(ctx context.Context, body openai.AudioTranslationNewParams, opts ...option.RequestOption) (*openai.Translation, error) {
	m.seen = &body
	if m.err != nil {
		return nil, m.err
	}
	return &openai.Translation{Text: m.text}, nil
}

type mockSpeechService struct {
	audio []byte
	err   error
	calls int
}

func (m *mockSpeechService) New(ctx context.Context, body openai.AudioSpeechNewParams, opts ...option.RequestOption) (*http.Response, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(m.audio)),
	}, nil
}

func newAPIRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/audio", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	return req
}

func TestTranscribeTranslate(t *testing.T) {
	mock := &mockTranslationService{text: " One must light candles before sunset. "}
	c := &Client{translations: mock, voice: DefaultVoice, voicePrompt: DefaultVoicePrompt}

	got, err := c.TranscribeTranslate(context.Background(), []byte("opus"), "audio/ogg", "halacha shiur")
	if err != nil {
		t.Fatalf("TranscribeTranslate failed: %v", err)
	}
	if got != "One must light candles before sunset." {
		t.Errorf("expected trimmed translation, got %q", got)
	}
	if mock.seen == nil {
		t.Fatalf("translation service was not called")
	}
}

func TestTranscribeTranslateEmptyAudio(t *testing.T) {
	c := &Client{translations: &mockTranslationService{}}
	if _, err := c.TranscribeTranslate(context.Background(), nil, "audio/ogg", ""); err == nil {
		t.Errorf("expected error for empty audio")
	}
}

func TestTranscribeTranslateServiceUnavailable(t *testing.T) {
	apierr := &openai.Error{StatusCode: http.StatusServiceUnavailable, Request: newAPIRequest(t)}
	c := &Client{translations: &mockTranslationService{err: apierr}}

	_, err := c.TranscribeTranslate(context.Background(), []byte("opus"), "audio/ogg", "")
	if !errors.Is(err, models.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable for 503, got %v", err)
	}
	if models.Classify(err) != models.FailureTransientUpstream {
		t.Errorf("expected transient classification, got %v", models.Classify(err))
	}
}

func TestSynthesizeSpeech(t *testing.T) {
	mock := &mockSpeechService{audio: []byte("opus-bytes")}
	c := &Client{speech: mock, voice: "alloy", voicePrompt: DefaultVoicePrompt}

	got, err := c.SynthesizeSpeech(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SynthesizeSpeech failed: %v", err)
	}
	if string(got) != "opus-bytes" {
		t.Errorf("unexpected audio bytes %q", got)
	}
}

func TestSynthesizeSpeechEmptyBody(t *testing.T) {
	c := &Client{speech: &mockSpeechService{audio: nil}, voice: "alloy"}
	_, err := c.SynthesizeSpeech(context.Background(), "hello")
	if !errors.Is(err, models.ErrNoAudio) {
		t.Errorf("expected ErrNoAudio for empty body, got %v", err)
	}
	if models.Classify(err) != models.FailureBestEffort {
		t.Errorf("expected best-effort classification, got %v", models.Classify(err))
	}
}

func TestSynthesizeSpeechOverloaded(t *testing.T) {
	apierr := &openai.Error{StatusCode: http.StatusTooManyRequests, Request: newAPIRequest(t)}
	c := &Client{speech: &mockSpeechService{err: apierr}, voice: "alloy"}
	_, err := c.SynthesizeSpeech(context.Background(), "hello")
	if !errors.Is(err, models.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable for 429, got %v", err)
	}
}
