// Package cloudapi wraps the WhatsApp Cloud API (Graph API) for
// daily-halacha-translate.
//
// It provides methods for sending text and audio replies, resolving and
// downloading inbound media, and uploading synthesized audio.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// Constants for Cloud API client configuration
const (
	// DefaultBaseURL is the Graph API endpoint.
	DefaultBaseURL = "https://graph.facebook.com/v18.0"
	// DefaultRequestTimeout bounds each Graph API call.
	DefaultRequestTimeout = 60 * time.Second
)

// Sender is the outbound message surface of the Cloud API.
type Sender interface {
	// SendText sends a text message to the given recipient.
	SendText(ctx context.Context, to, body string) error

	// SendAudioID sends a platform-hosted audio message by media ID.
	SendAudioID(ctx context.Context, to, mediaID string) error

	// SendAudioLink sends an audio message referencing an external URL.
	SendAudioLink(ctx context.Context, to, link string) error
}

// MediaClient is the inbound/outbound media surface the audio pipeline needs.
type MediaClient interface {
	// DownloadAudio resolves a media ID to its short-lived URL and fetches
	// the bytes, enforcing the size ceiling.
	DownloadAudio(ctx context.Context, mediaID string) (data []byte, mimeType string, err error)

	// UploadAudio uploads audio bytes and returns the platform media ID.
	UploadAudio(ctx context.Context, data []byte, mimeType string) (mediaID string, err error)
}

// Opts holds configuration options for the Cloud API client.
type Opts struct {
	Token         string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
}

// Option defines a configuration option for the Cloud API client.
type Option func(*Opts)

// WithToken sets the platform access token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithPhoneNumberID sets the sending phone number ID.
func WithPhoneNumberID(id string) Option {
	return func(o *Opts) { o.PhoneNumberID = id }
}

// WithBaseURL overrides the Graph API endpoint (used in tests).
func WithBaseURL(base string) Option {
	return func(o *Opts) { o.BaseURL = base }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// API is the combined send and media surface.
type API interface {
	Sender
	MediaClient
}

// Compile-time check that Client implements the full API.
var _ API = (*Client)(nil)

// Client wraps the Graph API for modular use.
type Client struct {
	token         string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
}

// NewClient creates a Cloud API client, falling back to the WHATSAPP_TOKEN
// and WHATSAPP_PHONE_NUMBER_ID environment variables when options are unset.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("WHATSAPP_TOKEN")
	}
	if cfg.PhoneNumberID == "" {
		cfg.PhoneNumberID = os.Getenv("WHATSAPP_PHONE_NUMBER_ID")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	slog.Debug("cloudapi.NewClient: config loaded",
		"token_set", cfg.Token != "",
		"phone_number_id_set", cfg.PhoneNumberID != "")

	if cfg.Token == "" {
		return nil, fmt.Errorf("platform access token must be provided")
	}
	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("phone number ID must be provided")
	}

	return &Client{
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:    cfg.HTTPClient,
	}, nil
}

// sendRequest is the JSON body of a Graph /messages call.
type sendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type,omitempty"`
	Text             *textBody     `json:"text,omitempty"`
	Audio            *audioBody    `json:"audio,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type audioBody struct {
	ID   string `json:"id,omitempty"`
	Link string `json:"link,omitempty"`
}

// SendText sends a text message to the given recipient.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if to == "" {
		return models.ErrEmptyRecipient
	}
	if body == "" {
		return models.ErrEmptyBody
	}
	req := sendRequest{MessagingProduct: "whatsapp", To: to, Text: &textBody{Body: body}}
	return c.postMessage(ctx, to, req)
}

// SendAudioID sends a platform-hosted audio message by media ID.
func (c *Client) SendAudioID(ctx context.Context, to, mediaID string) error {
	if to == "" {
		return models.ErrEmptyRecipient
	}
	if mediaID == "" {
		return models.ErrEmptyAudio
	}
	req := sendRequest{MessagingProduct: "whatsapp", To: to, Type: "audio", Audio: &audioBody{ID: mediaID}}
	return c.postMessage(ctx, to, req)
}

// SendAudioLink sends an audio message referencing an external URL.
func (c *Client) SendAudioLink(ctx context.Context, to, link string) error {
	if to == "" {
		return models.ErrEmptyRecipient
	}
	if link == "" {
		return models.ErrEmptyAudio
	}
	req := sendRequest{MessagingProduct: "whatsapp", To: to, Type: "audio", Audio: &audioBody{Link: link}}
	return c.postMessage(ctx, to, req)
}

func (c *Client) postMessage(ctx context.Context, to string, payload sendRequest) error {
	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("cloudapi.postMessage: request failed", "error", err, "to", to)
		return fmt.Errorf("%w: %v", models.ErrDelivery, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		slog.Error("cloudapi.postMessage: platform rejected message", "status", resp.StatusCode, "to", to, "detail", string(detail))
		return fmt.Errorf("%w: status %d", models.ErrDelivery, resp.StatusCode)
	}
	slog.Debug("cloudapi.postMessage: message accepted", "to", to)
	return nil
}

// mediaURLResponse is the body of a media ID resolution call.
type mediaURLResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// DownloadAudio resolves the media ID to its short-lived URL and downloads
// the bytes. Files over models.MaxAudioDownloadBytes are rejected with
// models.ErrMediaTooLarge before or during the transfer.
func (c *Client) DownloadAudio(ctx context.Context, mediaID string) ([]byte, string, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building media lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("media lookup failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media lookup failed: status %d", resp.StatusCode)
	}

	var meta mediaURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, "", fmt.Errorf("decoding media lookup response: %w", err)
	}
	if meta.URL == "" {
		return nil, "", fmt.Errorf("media lookup returned no URL for %s", mediaID)
	}
	if meta.FileSize > models.MaxAudioDownloadBytes {
		slog.Warn("cloudapi.DownloadAudio: media over size ceiling", "media_id", mediaID, "file_size", meta.FileSize)
		return nil, "", fmt.Errorf("media %s: %w", mediaID, models.ErrMediaTooLarge)
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building media download request: %w", err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+c.token)

	dlResp, err := c.httpClient.Do(dlReq)
	if err != nil {
		return nil, "", fmt.Errorf("media download failed: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media download failed: status %d", dlResp.StatusCode)
	}

	// The advertised file_size is not authoritative; enforce the ceiling on
	// the actual stream as well.
	data, err := io.ReadAll(io.LimitReader(dlResp.Body, models.MaxAudioDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading media bytes: %w", err)
	}
	if len(data) > models.MaxAudioDownloadBytes {
		slog.Warn("cloudapi.DownloadAudio: media stream over size ceiling", "media_id", mediaID)
		return nil, "", fmt.Errorf("media %s: %w", mediaID, models.ErrMediaTooLarge)
	}

	slog.Debug("cloudapi.DownloadAudio: media fetched", "media_id", mediaID, "bytes", len(data), "mime_type", meta.MimeType)
	return data, meta.MimeType, nil
}

// uploadResponse is the body of a media upload call.
type uploadResponse struct {
	ID string `json:"id"`
}

// UploadAudio uploads audio bytes to the platform and returns the media ID.
func (c *Client) UploadAudio(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", models.ErrEmptyAudio
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if err := writer.WriteField("type", mimeType); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	part, err := writer.CreateFormFile("file", "reply"+uploadExtension(mimeType))
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing upload payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing upload form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/media", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		slog.Error("cloudapi.UploadAudio: upload rejected", "status", resp.StatusCode, "detail", string(detail))
		return "", fmt.Errorf("media upload failed: status %d", resp.StatusCode)
	}

	var uploaded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if uploaded.ID == "" {
		return "", fmt.Errorf("media upload returned no ID")
	}
	slog.Debug("cloudapi.UploadAudio: media uploaded", "media_id", uploaded.ID, "bytes", len(data))
	return uploaded.ID, nil
}

func uploadExtension(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"), strings.Contains(mimeType, "opus"):
		return ".ogg"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	default:
		return ".bin"
	}
}
