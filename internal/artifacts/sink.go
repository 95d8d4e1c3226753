package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"veridex/internal/evidence"
	"veridex/internal/logging"
)

// Sink uploads collected artifact files and produces presigned URLs
// plus artifact metadata for the evidence bag.
type Sink struct {
	store         ObjectStore
	presignExpiry time.Duration
}

// NewSink wraps an object store. A zero expiry defaults to 7 days.
func NewSink(store ObjectStore, presignExpiry time.Duration) *Sink {
	if presignExpiry <= 0 {
		presignExpiry = 7 * 24 * time.Hour
	}
	return &Sink{store: store, presignExpiry: presignExpiry}
}

// ObjectKey is the canonical object-store key for one artifact.
func ObjectKey(runID, name string) string {
	return fmt.Sprintf("runs/%s/%s", runID, name)
}

// UploadAll uploads every artifact and returns name to presigned URL
// along with artifact metadata. A failed entry is logged and omitted;
// the batch never aborts.
func (s *Sink) UploadAll(ctx context.Context, runID string, artifacts map[string]string) (map[string]string, map[string]evidence.ArtifactMeta) {
	urls := make(map[string]string, len(artifacts))
	meta := make(map[string]evidence.ArtifactMeta, len(artifacts))

	for name, path := range artifacts {
		url, size, err := s.uploadOne(ctx, runID, name, path)
		if err != nil {
			logging.L().Error("artifact upload failed",
				zap.String("run_id", runID),
				zap.String("artifact", name),
				zap.Error(err))
			continue
		}
		urls[name] = url
		meta[name] = evidence.ArtifactMeta{
			Name:        name,
			ContentType: ContentTypeFor(name),
			SizeBytes:   size,
			URL:         url,
		}
	}

	return urls, meta
}

func (s *Sink) uploadOne(ctx context.Context, runID, name, path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat artifact: %w", err)
	}

	key := ObjectKey(runID, name)
	if err := s.store.Upload(ctx, key, ContentTypeFor(name), f); err != nil {
		return "", 0, err
	}

	url, err := s.store.PresignGet(ctx, key, s.presignExpiry)
	if err != nil {
		return "", 0, err
	}
	return url, info.Size(), nil
}

// ContentTypeFor infers a content type from the artifact extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".txt", ".log", ".md":
		return "text/plain"
	case ".patch", ".diff":
		return "text/x-diff"
	default:
		return "application/octet-stream"
	}
}
