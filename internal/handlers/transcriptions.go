package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/transly/internal/export"
	"github.com/codebuildervaibhav/transly/internal/storage"
	"github.com/codebuildervaibhav/transly/internal/types"
)

// TranscriptionStore reads finished transcriptions
type TranscriptionStore interface {
	GetTranscription(ctx context.Context, videoID, ownerID string) (types.TranscriptionRecord, error)
	FetchTitle(ctx context.Context, videoID string) (string, error)
}

// TranscriptionsHandler serves transcriptions and their exports
type TranscriptionsHandler struct {
	store  TranscriptionStore
	logger *slog.Logger
}

// NewTranscriptionsHandler creates a new transcriptions handler
func NewTranscriptionsHandler(store TranscriptionStore, logger *slog.Logger) *TranscriptionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptionsHandler{
		store:  store,
		logger: logger.With("component", "transcriptions"),
	}
}

// load fetches the transcription; when ok is false the error response has been written
func (h *TranscriptionsHandler) load(c *fiber.Ctx) (rec types.TranscriptionRecord, ok bool, err error) {
	videoID := c.Params("videoId")
	rec, err = h.store.GetTranscription(c.UserContext(), videoID, ownerID(c))
	if errors.Is(err, storage.ErrNotFound) {
		return rec, false, errorJSON(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Transcription not found")
	}
	if err != nil {
		h.logger.Error("failed to get transcription", "video_id", videoID, "err", err)
		return rec, false, errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", "Failed to fetch transcription")
	}
	return rec, true, nil
}

// Get returns the transcription of a video
func (h *TranscriptionsHandler) Get(c *fiber.Ctx) error {
	rec, ok, err := h.load(c)
	if !ok {
		return err
	}
	return c.JSON(fiber.Map{"transcription": rec})
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Export renders the transcription as txt, csv or docx
func (h *TranscriptionsHandler) Export(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Params("format"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT", err.Error())
	}

	rec, ok, err := h.load(c)
	if !ok {
		return err
	}

	body, err := export.Render(format, rec.TranscriptionResult)
	if err != nil {
		h.logger.Error("export failed", "video_id", rec.VideoID, "format", format, "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_EXPORT", "Failed to export transcription")
	}

	name := "transcription"
	if title, err := h.store.FetchTitle(c.UserContext(), rec.VideoID); err == nil && title != "" {
		name = unsafeFilename.ReplaceAllString(title, "_")
	}

	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
	return c.Send(body)
}
