package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/transly/internal/queue"
	"github.com/codebuildervaibhav/transly/internal/storage"
	"github.com/codebuildervaibhav/transly/internal/transcription"
	"github.com/codebuildervaibhav/transly/internal/types"
)

// VideoCreator records new uploads
type VideoCreator interface {
	CreateVideo(ctx context.Context, v types.Video) error
	UpdateStatus(ctx context.Context, videoID string, status types.JobStatus) error
}

// JobQueue accepts transcription jobs
type JobQueue interface {
	EnqueueJob(job queue.Job) error
}

// UploadHandler handles video uploads
type UploadHandler struct {
	store     VideoCreator
	queue     JobQueue
	uploadDir string
	maxSizeMB int
	logger    *slog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(store VideoCreator, jobs JobQueue, uploadDir string, maxSizeMB int, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{
		store:     store,
		queue:     jobs,
		uploadDir: uploadDir,
		maxSizeMB: maxSizeMB,
		logger:    logger.With("component", "upload"),
	}
}

// Handle stores the upload, records the video and enqueues its transcription.
// The response is sent before any processing happens.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	owner := ownerID(c)

	file, err := c.FormFile("video")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_NO_FILE", "No video file provided")
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_FILE_TOO_LARGE",
			fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB))
	}

	if !transcription.ValidateVideoFormat(file.Filename) {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FORMAT",
			"Invalid file type. Only video files are allowed.")
	}

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	videoID := uuid.New().String()
	filename := videoID + strings.ToLower(filepath.Ext(file.Filename))
	uploadPath := filepath.Join(h.uploadDir, filename)

	if err := c.SaveFile(file, uploadPath); err != nil {
		h.logger.Error("failed to save uploaded file", "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save file")
	}

	video := types.Video{
		ID:               videoID,
		OwnerID:          owner,
		Title:            title,
		Filename:         filename,
		OriginalFilename: file.Filename,
		Size:             file.Size,
		MimeType:         file.Header.Get("Content-Type"),
		Status:           types.StatusUploaded,
	}
	if folder := strings.TrimSpace(c.FormValue("folder_id")); folder != "" {
		video.FolderID = &folder
	}
	if err := h.store.CreateVideo(c.UserContext(), video); err != nil {
		os.Remove(uploadPath)
		if errors.Is(err, storage.ErrInvalidFolder) {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FOLDER", "Folder not found")
		}
		h.logger.Error("failed to record video", "video_id", videoID, "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_SAVE_FAILED", "Failed to save video")
	}

	if err := h.queue.EnqueueJob(queue.NewJob(videoID, uploadPath, owner)); err != nil {
		os.Remove(uploadPath)
		if uerr := h.store.UpdateStatus(c.UserContext(), videoID, types.StatusFailed); uerr != nil {
			h.logger.Error("failed to mark rejected video", "video_id", videoID, "err", uerr)
		}
		if errors.Is(err, queue.ErrQueueFull) {
			return errorJSON(c, fiber.StatusServiceUnavailable, "ERR_QUEUE_FULL", "Transcription queue is full, try again later")
		}
		return errorJSON(c, fiber.StatusServiceUnavailable, "ERR_QUEUE_STOPPED", "Transcription queue is not accepting jobs")
	}

	h.logger.Info("video uploaded", "video_id", videoID, "owner_id", owner, "size", file.Size)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Video uploaded successfully",
		"video":   video,
	})
}
