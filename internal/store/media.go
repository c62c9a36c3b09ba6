package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// MediaStore persists audio bytes on the local filesystem and records
// metadata through a MediaRepo. Persistence is archival: callers treat every
// failure here as best-effort.
type MediaStore struct {
	dir     string
	baseURL string
	repo    MediaRepo
}

// NewMediaStore creates a media store writing into dir. baseURL is the public
// prefix under which the API serves persisted files (may be empty, in which
// case no public URL is produced). repo may be nil to skip metadata records.
func NewMediaStore(dir, baseURL string, repo MediaRepo) (*MediaStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("media directory not set")
	}
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create media directory %s: %w", dir, err)
	}
	return &MediaStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/"), repo: repo}, nil
}

// Dir returns the directory files are written into.
func (m *MediaStore) Dir() string {
	return m.dir
}

// SaveAudio writes one audio file and records its metadata. It returns the
// public URL of the persisted file, or an error wrapping models.ErrStorage.
func (m *MediaStore) SaveAudio(name string, data []byte, senderID, direction, mimeType string) (string, error) {
	filename := name + extensionFor(mimeType)
	path := filepath.Join(m.dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Error("MediaStore.SaveAudio: write failed", "error", err, "path", path)
		return "", fmt.Errorf("%w: write %s: %v", models.ErrStorage, filename, err)
	}

	publicURL := ""
	if m.baseURL != "" {
		publicURL = m.baseURL + "/media/" + filename
	}

	if m.repo != nil {
		obj := models.MediaObject{
			Name:      filename,
			SenderID:  senderID,
			Direction: direction,
			MimeType:  mimeType,
			SizeBytes: int64(len(data)),
			PublicURL: publicURL,
			CreatedAt: time.Now(),
		}
		if err := m.repo.AddMediaObject(obj); err != nil {
			// The file itself is on disk; metadata loss alone is not worth
			// failing the save.
			slog.Warn("MediaStore.SaveAudio: metadata record failed", "error", err, "name", filename)
		}
	}

	slog.Debug("MediaStore.SaveAudio: persisted audio", "name", filename, "bytes", len(data), "direction", direction)
	return publicURL, nil
}

// extensionFor maps the audio mime types the platform uses to file extensions.
func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"), strings.Contains(mimeType, "opus"):
		return ".ogg"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	case strings.Contains(mimeType, "wav"):
		return ".wav"
	case strings.Contains(mimeType, "aac"):
		return ".aac"
	default:
		return ".bin"
	}
}
