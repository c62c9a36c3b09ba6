// Package genai provides the AI capability clients for daily-halacha-translate
// using the OpenAI API: speech transcription+translation and speech synthesis.
package genai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// Defaults for the AI capability clients.
const (
	// DefaultTranscriptionModel is the model used for transcription+translation.
	DefaultTranscriptionModel = openai.AudioModelWhisper1
	// DefaultSpeechModel is the model used for speech synthesis.
	DefaultSpeechModel = openai.SpeechModelGPT4oMiniTTS
	// DefaultVoice is the synthesis voice used when none is configured.
	DefaultVoice = "alloy"
	// DefaultVoicePrompt is used when no prompt resource is configured.
	DefaultVoicePrompt = "Read this halacha lesson translation clearly and warmly, at a measured pace suitable for Torah study."
)

// Transcriber turns audio bytes into translated English text.
type Transcriber interface {
	TranscribeTranslate(ctx context.Context, audio []byte, mimeType, prompt string) (string, error)
}

// Synthesizer turns text into spoken audio bytes.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

// translationService is the minimal surface of the OpenAI audio translation API.
type translationService interface {
	New(ctx context.Context, body openai.AudioTranslationNewParams, opts ...option.RequestOption) (*openai.Translation, error)
}

// speechService is the minimal surface of the OpenAI speech synthesis API.
type speechService interface {
	New(ctx context.Context, body openai.AudioSpeechNewParams, opts ...option.RequestOption) (*http.Response, error)
}

// Opts holds configuration options for the AI clients.
type Opts struct {
	APIKey      string
	Voice       string
	VoicePrompt string
}

// Option defines a configuration option for the AI clients.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithVoice sets the synthesis voice.
func WithVoice(voice string) Option {
	return func(o *Opts) { o.Voice = voice }
}

// WithVoicePrompt sets the synthesis delivery instructions.
func WithVoicePrompt(prompt string) Option {
	return func(o *Opts) { o.VoicePrompt = prompt }
}

// Compile-time checks that Client implements the capability interfaces.
var (
	_ Transcriber = (*Client)(nil)
	_ Synthesizer = (*Client)(nil)
)

// Client implements Transcriber and Synthesizer over the OpenAI API.
type Client struct {
	translations translationService
	speech       speechService
	voice        string
	voicePrompt  string
}

// NewClient initializes the AI client. The API key comes from options or the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.VoicePrompt == "" {
		cfg.VoicePrompt = DefaultVoicePrompt
	}
	slog.Debug("genai.NewClient: configured", "voice", cfg.Voice, "voice_prompt_len", len(cfg.VoicePrompt))

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		translations: &cli.Audio.Translations,
		speech:       &cli.Audio.Speech,
		voice:        cfg.Voice,
		voicePrompt:  cfg.VoicePrompt,
	}, nil
}

// TranscribeTranslate transcribes Hebrew audio and returns the English
// translation. Overload and availability failures map to
// models.ErrServiceUnavailable so the pipeline can pick the right apology.
func (c *Client) TranscribeTranslate(ctx context.Context, audio []byte, mimeType, prompt string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("no audio bytes provided")
	}
	slog.Debug("genai.TranscribeTranslate: sending audio", "bytes", len(audio), "mime_type", mimeType)

	params := openai.AudioTranslationNewParams{
		File:  openai.File(bytes.NewReader(audio), fileNameFor(mimeType), mimeType),
		Model: DefaultTranscriptionModel,
	}
	if prompt != "" {
		params.Prompt = openai.String(prompt)
	}

	translation, err := c.translations.New(ctx, params)
	if err != nil {
		slog.Error("genai.TranscribeTranslate: request failed", "error", err)
		return "", classifyAPIError("transcription", err)
	}
	text := strings.TrimSpace(translation.Text)
	if text == "" {
		return "", fmt.Errorf("transcription returned empty text")
	}
	slog.Info("genai.TranscribeTranslate: translation received", "chars", len(text))
	return text, nil
}

// SynthesizeSpeech renders text as spoken audio (Opus). A response with no
// audio bytes maps to models.ErrNoAudio.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("no text provided for synthesis")
	}
	slog.Debug("genai.SynthesizeSpeech: generating audio", "chars", len(text), "voice", c.voice)

	resp, err := c.speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          DefaultSpeechModel,
		Voice:          openai.AudioSpeechNewParamsVoice(c.voice),
		Input:          text,
		Instructions:   openai.String(c.voicePrompt),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatOpus,
	})
	if err != nil {
		slog.Error("genai.SynthesizeSpeech: request failed", "error", err)
		return nil, classifyAPIError("synthesis", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("synthesis: reading audio body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("synthesis: %w", models.ErrNoAudio)
	}
	slog.Info("genai.SynthesizeSpeech: audio generated", "bytes", len(data))
	return data, nil
}

// classifyAPIError maps OpenAI API errors onto the shared failure taxonomy.
func classifyAPIError(stage string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable:
			return fmt.Errorf("%s: %w: %v", stage, models.ErrServiceUnavailable, err)
		}
	}
	return fmt.Errorf("%s failed: %w", stage, err)
}

// fileNameFor gives the multipart upload a filename matching the audio container.
func fileNameFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"), strings.Contains(mimeType, "opus"):
		return "voice.ogg"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return "voice.mp3"
	case strings.Contains(mimeType, "wav"):
		return "voice.wav"
	default:
		return "voice.bin"
	}
}
