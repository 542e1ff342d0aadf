package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/transly/internal/storage"
	"github.com/codebuildervaibhav/transly/internal/types"
)

const defaultListLimit = 50

// VideoStore reads, edits and deletes an owner's videos
type VideoStore interface {
	GetVideo(ctx context.Context, videoID, ownerID string) (types.Video, error)
	ListVideos(ctx context.Context, ownerID string, filter storage.VideoFilter) ([]types.Video, error)
	UpdateVideo(ctx context.Context, videoID, ownerID string, upd storage.VideoUpdate) (types.Video, error)
	DeleteVideo(ctx context.Context, videoID, ownerID string) error
}

// ArtifactRemover deletes the local durable copy of a video
type ArtifactRemover interface {
	Remove(ownerID, videoID string) error
}

// MirrorRemover deletes the remote copy of a video
type MirrorRemover interface {
	Delete(ctx context.Context, ownerID, videoID string) error
}

// VideosHandler serves an owner's video library
type VideosHandler struct {
	store  VideoStore
	local  ArtifactRemover
	mirror MirrorRemover
	logger *slog.Logger
}

// NewVideosHandler creates the handler; mirror may be nil
func NewVideosHandler(store VideoStore, local ArtifactRemover, mirror MirrorRemover, logger *slog.Logger) *VideosHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideosHandler{
		store:  store,
		local:  local,
		mirror: mirror,
		logger: logger.With("component", "videos"),
	}
}

// List returns the owner's videos, newest first, optionally only those in ?folder_id=
func (h *VideosHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	filter := storage.VideoFilter{
		FolderID: strings.TrimSpace(c.Query("folder_id")),
		Limit:    limit,
	}
	videos, err := h.store.ListVideos(c.UserContext(), ownerID(c), filter)
	if err != nil {
		h.logger.Error("failed to list videos", "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", "Failed to fetch videos")
	}
	return c.JSON(fiber.Map{"videos": videos})
}

// Get returns one video with its current status
func (h *VideosHandler) Get(c *fiber.Ctx) error {
	video, err := h.store.GetVideo(c.UserContext(), c.Params("id"), ownerID(c))
	if errors.Is(err, storage.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Video not found")
	}
	if err != nil {
		h.logger.Error("failed to get video", "video_id", c.Params("id"), "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", "Failed to fetch video")
	}
	return c.JSON(fiber.Map{"video": video})
}

type videoUpdateRequest struct {
	Title    *string         `json:"title"`
	FolderID json.RawMessage `json:"folder_id"`
}

// Update renames a video or moves it to another folder; folder_id null moves it to the root
func (h *VideosHandler) Update(c *fiber.Ctx) error {
	var req videoUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
	}
	folder, err := optionalID(req.FolderID)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "folder_id must be a string or null")
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_TITLE", "Title cannot be empty")
		}
		req.Title = &title
	}
	if req.Title == nil && folder == nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Nothing to update")
	}

	videoID := c.Params("id")
	video, err := h.store.UpdateVideo(c.UserContext(), videoID, ownerID(c), storage.VideoUpdate{
		Title:  req.Title,
		Folder: folder,
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Video not found")
	case errors.Is(err, storage.ErrInvalidFolder):
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FOLDER", "Folder not found")
	case err != nil:
		h.logger.Error("failed to update video", "video_id", videoID, "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", "Failed to update video")
	}
	return c.JSON(fiber.Map{"video": video})
}

// Delete removes the video, its transcription and its stored copies
func (h *VideosHandler) Delete(c *fiber.Ctx) error {
	owner, videoID := ownerID(c), c.Params("id")

	err := h.store.DeleteVideo(c.UserContext(), videoID, owner)
	if errors.Is(err, storage.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Video not found")
	}
	if err != nil {
		h.logger.Error("failed to delete video", "video_id", videoID, "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", "Failed to delete video")
	}

	if err := h.local.Remove(owner, videoID); err != nil {
		h.logger.Warn("failed to remove local copy", "video_id", videoID, "err", err)
	}
	if h.mirror != nil {
		if err := h.mirror.Delete(c.UserContext(), owner, videoID); err != nil {
			h.logger.Warn("failed to remove mirrored copy", "video_id", videoID, "err", err)
		}
	}

	h.logger.Info("video deleted", "video_id", videoID, "owner_id", owner)
	return c.JSON(fiber.Map{"message": "Video deleted successfully"})
}
