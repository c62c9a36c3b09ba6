package cloudapi

import (
	"context"
	"sync"
)

// SentMessage records one outbound call made through the MockClient.
type SentMessage struct {
	To      string
	Body    string
	MediaID string
	Link    string
}

// MockClient is a mock implementation of the Cloud API client for testing.
type MockClient struct {
	mu   sync.Mutex
	Sent []SentMessage

	SendErr     error
	DownloadErr error
	UploadErr   error

	DownloadData []byte
	DownloadMime string
	UploadedID   string
	Uploaded     [][]byte
}

// Compile-time check that MockClient implements the full API.
var _ API = (*MockClient)(nil)

// NewMockClient creates a mock client with a canned media ID.
func NewMockClient() *MockClient {
	return &MockClient{UploadedID: "mock-media-id", DownloadMime: "audio/ogg"}
}

// SendText records a text send.
func (m *MockClient) SendText(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, SentMessage{To: to, Body: body})
	return nil
}

// SendAudioID records an audio-by-ID send.
func (m *MockClient) SendAudioID(ctx context.Context, to, mediaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, SentMessage{To: to, MediaID: mediaID})
	return nil
}

// SendAudioLink records an audio-by-link send.
func (m *MockClient) SendAudioLink(ctx context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, SentMessage{To: to, Link: link})
	return nil
}

// DownloadAudio returns the canned download bytes.
func (m *MockClient) DownloadAudio(ctx context.Context, mediaID string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DownloadErr != nil {
		return nil, "", m.DownloadErr
	}
	return m.DownloadData, m.DownloadMime, nil
}

// UploadAudio records the upload and returns the canned media ID.
func (m *MockClient) UploadAudio(ctx context.Context, data []byte, mimeType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.Uploaded = append(m.Uploaded, data)
	return m.UploadedID, nil
}

// SentCount returns how many outbound calls were recorded.
func (m *MockClient) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// LastSent returns the most recent recorded send, or a zero value.
func (m *MockClient) LastSent() SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMessage{}
	}
	return m.Sent[len(m.Sent)-1]
}
