package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Compressor writes a durable video rendition
type Compressor interface {
	CompressVideo(ctx context.Context, inputPath, outputPath string) error
}

// Mirror is a remote object store receiving a copy of each durable video
type Mirror interface {
	Upload(ctx context.Context, ownerID, videoID, localPath string) (string, error)
}

// VideoArchive produces the durable copy of an upload and optionally mirrors it
type VideoArchive struct {
	local      *LocalStorage
	compressor Compressor
	mirror     Mirror
	attempts   int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewVideoArchive creates an archive; mirror may be nil
func NewVideoArchive(local *LocalStorage, compressor Compressor, mirror Mirror, logger *slog.Logger) *VideoArchive {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoArchive{
		local:      local,
		compressor: compressor,
		mirror:     mirror,
		attempts:   3,
		backoff:    time.Second,
		logger:     logger.With("component", "archive"),
	}
}

// Archive writes the durable copy and returns the URL clients should use.
// A failing mirror only costs the remote copy; the local URL is returned.
func (va *VideoArchive) Archive(ctx context.Context, videoID, ownerID, sourcePath string) (string, error) {
	target := va.local.VideoPath(ownerID, videoID)
	if err := va.compressor.CompressVideo(ctx, sourcePath, target); err != nil {
		return "", fmt.Errorf("durable copy: %w", err)
	}
	url := va.local.PublicURL(ownerID, videoID)

	if va.mirror == nil {
		return url, nil
	}

	var err error
	for attempt := 1; attempt <= va.attempts; attempt++ {
		var remote string
		remote, err = va.mirror.Upload(ctx, ownerID, videoID, target)
		if err == nil {
			va.logger.Info("video mirrored", "video_id", videoID, "url", remote)
			return remote, nil
		}
		va.logger.Warn("mirror upload failed", "video_id", videoID,
			"attempt", fmt.Sprintf("%d/%d", attempt, va.attempts), "err", err)
		if attempt < va.attempts {
			select {
			case <-time.After(time.Duration(attempt*attempt) * va.backoff):
			case <-ctx.Done():
				return url, nil
			}
		}
	}
	va.logger.Warn("mirror unavailable, keeping local copy only", "video_id", videoID, "err", err)
	return url, nil
}
