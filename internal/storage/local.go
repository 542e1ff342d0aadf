package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage lays out durable video copies as <root>/<owner>/<video>/
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{
		root: root,
	}
}

// Root returns the base directory served to clients
func (ls *LocalStorage) Root() string {
	return ls.root
}

// VideoDir returns the directory holding a video's durable artifacts
func (ls *LocalStorage) VideoDir(ownerID, videoID string) string {
	return filepath.Join(ls.root, sanitizeFilename(ownerID), sanitizeFilename(videoID))
}

// VideoPath returns the path of the durable video copy
func (ls *LocalStorage) VideoPath(ownerID, videoID string) string {
	return filepath.Join(ls.VideoDir(ownerID, videoID), "video.mp4")
}

// PublicURL returns the URL path under which the durable copy is served
func (ls *LocalStorage) PublicURL(ownerID, videoID string) string {
	return fmt.Sprintf("/videos/%s/%s/video.mp4", sanitizeFilename(ownerID), sanitizeFilename(videoID))
}

// Remove deletes every durable artifact of a video
func (ls *LocalStorage) Remove(ownerID, videoID string) error {
	if err := os.RemoveAll(ls.VideoDir(ownerID, videoID)); err != nil {
		return fmt.Errorf("failed to remove video directory: %w", err)
	}
	return nil
}

// sanitizeFilename keeps a single safe path element
func sanitizeFilename(name string) string {
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	result = strings.Trim(result, ". ")
	if result == "" {
		result = "untitled"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
