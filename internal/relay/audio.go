package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neshkoli/daily-halacha-translate/internal/cloudapi"
	"github.com/neshkoli/daily-halacha-translate/internal/genai"
	"github.com/neshkoli/daily-halacha-translate/internal/models"
	"github.com/neshkoli/daily-halacha-translate/internal/store"
	"github.com/neshkoli/daily-halacha-translate/internal/util"
)

// User-facing audio pipeline strings.
const (
	ProcessingText    = "Got your voice note. Translating it now, this can take a minute..."
	ServiceBusyText   = "The translation service is busy right now. Please try again in a few minutes."
	MediaTooLargeText = "This voice note is too large to translate (the limit is 15 MB)."

	// DefaultTranslationPrompt primes the transcription model with context.
	DefaultTranslationPrompt = "A daily halacha shiur delivered in Hebrew."
)

// Notifier sends the immediate processing acknowledgment. Transcription and
// synthesis can outlast a typical request timeout; the ack is how the user
// gets feedback before the real reply.
type Notifier interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// AudioPipeline handles one voice note: download, archive, translate,
// synthesize, archive again, and hand the reply sequence back. Every stage
// except TranscribeTranslate is best-effort; partial success is the normal
// case because archival and synthesis are enhancements while translation is
// the core value.
type AudioPipeline struct {
	media       cloudapi.MediaClient
	transcriber genai.Transcriber
	synthesizer genai.Synthesizer
	notifier    Notifier
	mediaStore  *store.MediaStore
	prompt      string
}

// AudioOption configures the audio pipeline.
type AudioOption func(*AudioPipeline)

// WithMediaStore enables best-effort archival of inbound and synthesized
// audio.
func WithMediaStore(ms *store.MediaStore) AudioOption {
	return func(p *AudioPipeline) { p.mediaStore = ms }
}

// WithTranslationPrompt overrides the transcription context prompt.
func WithTranslationPrompt(prompt string) AudioOption {
	return func(p *AudioPipeline) {
		if prompt != "" {
			p.prompt = prompt
		}
	}
}

// Compile-time check that AudioPipeline implements AudioHandler.
var _ AudioHandler = (*AudioPipeline)(nil)

// NewAudioPipeline creates the voice note pipeline.
func NewAudioPipeline(media cloudapi.MediaClient, transcriber genai.Transcriber, synthesizer genai.Synthesizer, notifier Notifier, opts ...AudioOption) *AudioPipeline {
	p := &AudioPipeline{
		media:       media,
		transcriber: transcriber,
		synthesizer: synthesizer,
		notifier:    notifier,
		prompt:      DefaultTranslationPrompt,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle runs the pipeline for one admitted audio unit. The returned replies
// always carry something to send: the translation plus an optional audio
// reply on success, or a category-specific error message on failure (in
// which case the error is also returned for the delivery record).
func (p *AudioPipeline) Handle(ctx context.Context, unit models.InboundUnit) (models.HandlerResult, error) {
	// NotifyStarted. A failed ack is not worth aborting the translation for.
	if p.notifier != nil {
		if err := p.notifier.SendMessage(ctx, unit.SenderID, ProcessingText); err != nil {
			slog.Warn("AudioPipeline.Handle: processing ack failed", "error", err, "sender", unit.SenderID)
		}
	}

	// Download. Oversized input is rejected with a specific message before
	// any transcription call.
	data, mimeType, err := p.media.DownloadAudio(ctx, unit.AudioID)
	if err != nil {
		slog.Error("AudioPipeline.Handle: download failed", "error", err, "media_id", unit.AudioID)
		return errorResult(err), fmt.Errorf("downloading audio %s: %w", unit.AudioID, err)
	}
	slog.Info("AudioPipeline.Handle: audio downloaded", "sender", unit.SenderID, "bytes", len(data), "mime_type", mimeType)

	// PersistSource, best-effort.
	name := util.GenerateMediaName()
	if p.mediaStore != nil {
		if _, err := p.mediaStore.SaveAudio(name+"-in", data, unit.SenderID, "inbound", mimeType); err != nil {
			slog.Warn("AudioPipeline.Handle: source archival failed", "error", err, "name", name)
		}
	}

	// TranscribeTranslate. The one fatal stage: on failure, jump straight to
	// the category-specific error reply.
	translation, err := p.transcriber.TranscribeTranslate(ctx, data, mimeType, p.prompt)
	if err != nil {
		slog.Error("AudioPipeline.Handle: translation failed", "error", err, "sender", unit.SenderID)
		return errorResult(err), fmt.Errorf("translating audio %s: %w", unit.AudioID, err)
	}
	slog.Info("AudioPipeline.Handle: translation complete", "sender", unit.SenderID, "chars", len(translation))

	replies := []models.OutboundMessage{models.TextMessage(translation)}

	// Synthesize, best-effort. The synthesis input is truncated to bound cost
	// and latency; the text reply above keeps the full translation.
	synthesized, err := p.synthesizer.SynthesizeSpeech(ctx, truncateForSynthesis(translation))
	if err != nil {
		slog.Warn("AudioPipeline.Handle: synthesis failed, sending text only", "error", err, "sender", unit.SenderID)
		return models.HandlerResult{Replies: replies, SideEffects: true}, nil
	}

	audio := models.AudioPayload{Data: synthesized, MimeType: "audio/ogg"}

	// PersistOutput, best-effort. A persisted copy doubles as the link
	// fallback if the platform upload fails later.
	if p.mediaStore != nil {
		link, err := p.mediaStore.SaveAudio(name+"-out", synthesized, unit.SenderID, "outbound", audio.MimeType)
		if err != nil {
			slog.Warn("AudioPipeline.Handle: output archival failed", "error", err, "name", name)
		} else {
			audio.Link = link
		}
	}

	replies = append(replies, models.AudioMessage(audio))
	return models.HandlerResult{Replies: replies, SideEffects: true}, nil
}

// errorResult maps a pipeline failure to its user-facing reply.
func errorResult(err error) models.HandlerResult {
	var reply string
	switch models.Classify(err) {
	case models.FailureTransientUpstream:
		reply = ServiceBusyText
	case models.FailurePermanentInput:
		reply = MediaTooLargeText
	default:
		reply = fmt.Sprintf("Sorry, something went wrong while translating your voice note: %v", err)
	}
	return models.HandlerResult{Replies: []models.OutboundMessage{models.TextMessage(reply)}, SideEffects: true}
}

// truncateForSynthesis bounds the synthesis input, appending an ellipsis when
// it cuts. Rune-based so Hebrew or multibyte output is never split mid-rune.
func truncateForSynthesis(text string) string {
	runes := []rune(text)
	if len(runes) <= models.MaxSynthesisChars {
		return text
	}
	return string(runes[:models.MaxSynthesisChars]) + "…"
}
