package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/transly/internal/storage"
	"github.com/codebuildervaibhav/transly/internal/types"
)

// FolderStore manages an owner's folders
type FolderStore interface {
	CreateFolder(ctx context.Context, f types.Folder) error
	ListFolders(ctx context.Context, ownerID string) ([]types.Folder, error)
	UpdateFolder(ctx context.Context, folderID, ownerID string, upd storage.FolderUpdate) (types.Folder, error)
	DeleteFolder(ctx context.Context, folderID, ownerID string) error
}

// FoldersHandler serves folder CRUD
type FoldersHandler struct {
	store  FolderStore
	logger *slog.Logger
}

// NewFoldersHandler creates the handler
func NewFoldersHandler(store FolderStore, logger *slog.Logger) *FoldersHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FoldersHandler{
		store:  store,
		logger: logger.With("component", "folders"),
	}
}

type folderRequest struct {
	Name     *string         `json:"name"`
	ParentID json.RawMessage `json:"parent_folder_id"`
}

func (r *folderRequest) parse() (name *string, parent *string, err error) {
	parent, err = optionalID(r.ParentID)
	if err != nil {
		return nil, nil, err
	}
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		name = &trimmed
	}
	return name, parent, nil
}

// List returns the owner's folders, newest first
func (h *FoldersHandler) List(c *fiber.Ctx) error {
	folders, err := h.store.ListFolders(c.UserContext(), ownerID(c))
	if err != nil {
		h.logger.Error("failed to list folders", "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", "Failed to fetch folders")
	}
	return c.JSON(fiber.Map{"folders": folders})
}

// Create adds a folder, optionally nested under parent_folder_id
func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	var req folderRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
	}
	name, parent, err := req.parse()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "parent_folder_id must be a string or null")
	}
	if name == nil || *name == "" {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_NAME", "Folder name is required")
	}

	folder := types.Folder{
		ID:       uuid.New().String(),
		OwnerID:  ownerID(c),
		Name:     *name,
		ParentID: parent,
	}
	if parent != nil && *parent == "" {
		folder.ParentID = nil
	}

	err = h.store.CreateFolder(c.UserContext(), folder)
	if errors.Is(err, storage.ErrInvalidFolder) {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FOLDER", "Parent folder not found")
	}
	if err != nil {
		h.logger.Error("failed to create folder", "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", "Failed to create folder")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"folder": folder})
}

// Update renames a folder or moves it; parent_folder_id null moves it to the root
func (h *FoldersHandler) Update(c *fiber.Ctx) error {
	var req folderRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Invalid request body")
	}
	name, parent, err := req.parse()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "parent_folder_id must be a string or null")
	}
	if name != nil && *name == "" {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_NAME", "Folder name cannot be empty")
	}
	if name == nil && parent == nil {
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_BODY", "Nothing to update")
	}

	folderID := c.Params("id")
	folder, err := h.store.UpdateFolder(c.UserContext(), folderID, ownerID(c), storage.FolderUpdate{
		Name:   name,
		Parent: parent,
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Folder not found")
	case errors.Is(err, storage.ErrInvalidFolder):
		return errorJSON(c, fiber.StatusBadRequest, "ERR_INVALID_FOLDER", "Invalid parent folder")
	case err != nil:
		h.logger.Error("failed to update folder", "folder_id", folderID, "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", "Failed to update folder")
	}
	return c.JSON(fiber.Map{"folder": folder})
}

// Delete removes a folder; its videos and subfolders move to the root
func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	folderID := c.Params("id")
	err := h.store.DeleteFolder(c.UserContext(), folderID, ownerID(c))
	if errors.Is(err, storage.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "ERR_NOT_FOUND", "Folder not found")
	}
	if err != nil {
		h.logger.Error("failed to delete folder", "folder_id", folderID, "err", err)
		return errorJSON(c, fiber.StatusInternalServerError, "ERR_DB", "Failed to delete folder")
	}
	return c.JSON(fiber.Map{"message": "Folder deleted successfully"})
}
