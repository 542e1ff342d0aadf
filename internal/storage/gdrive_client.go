package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveClient mirrors durable video copies to Google Drive
type DriveClient struct {
	service    *drive.Service
	folderName string
	folderID   string
}

// NewDriveClient creates a Drive client from OAuth client credentials and a saved token
func NewDriveClient(ctx context.Context, credentialsFile, tokenFile, folderName string) (*DriveClient, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read oauth token %s: %w", tokenFile, err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	dc := &DriveClient{
		service:    srv,
		folderName: folderName,
	}
	if err := dc.ensureFolder(ctx); err != nil {
		return nil, err
	}
	return dc, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// ensureFolder finds or creates the root folder
func (dc *DriveClient) ensureFolder(ctx context.Context) error {
	id, err := dc.findOrCreateFolder(ctx, dc.folderName, "")
	if err != nil {
		return fmt.Errorf("unable to prepare folder %q: %w", dc.folderName, err)
	}
	dc.folderID = id
	return nil
}

// Upload stores the video at localPath as <root>/<owner>/<video>.mp4 and returns its link
func (dc *DriveClient) Upload(ctx context.Context, ownerID, videoID, localPath string) (string, error) {
	ownerFolder, err := dc.findOrCreateFolder(ctx, sanitizeFilename(ownerID), dc.folderID)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	file := &drive.File{
		Name:     sanitizeFilename(videoID) + ".mp4",
		MimeType: "video/mp4",
		Parents:  []string{ownerFolder},
	}
	created, err := dc.service.Files.Create(file).Media(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}

	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", created.Id), nil
}

// Delete removes the mirrored copy of a video, if any
func (dc *DriveClient) Delete(ctx context.Context, ownerID, videoID string) error {
	ownerFolder, err := dc.findFolder(ctx, sanitizeFilename(ownerID), dc.folderID)
	if err != nil || ownerFolder == "" {
		return err
	}
	query := fmt.Sprintf("name='%s.mp4' and '%s' in parents and trashed=false", sanitizeFilename(videoID), ownerFolder)
	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to search for video: %w", err)
	}
	for _, f := range r.Files {
		if err := dc.service.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to delete video: %w", err)
		}
	}
	return nil
}

func (dc *DriveClient) findFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", name, folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to search for folder: %w", err)
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}
	return "", nil
}

// findOrCreateFolder finds or creates a folder with the given parent
func (dc *DriveClient) findOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	id, err := dc.findFolder(ctx, name, parentID)
	if err != nil || id != "" {
		return id, err
	}

	folder := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}

	file, err := dc.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create folder: %w", err)
	}
	return file.Id, nil
}
