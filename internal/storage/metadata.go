package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/transly/internal/types"
)

// ErrNotFound is returned when a row does not exist or belongs to another owner
var ErrNotFound = errors.New("not found")

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB opens the database and creates the schema
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		parent_folder_id TEXT REFERENCES folders(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		filename TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mimetype TEXT NOT NULL DEFAULT '',
		storage_url TEXT NOT NULL DEFAULT 'pending',
		folder_id TEXT REFERENCES folders(id) ON DELETE SET NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transcriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id TEXT NOT NULL UNIQUE REFERENCES videos(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		words TEXT NOT NULL,
		sentences TEXT NOT NULL,
		language TEXT NOT NULL,
		placeholder INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_videos_user ON videos(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id, created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := migrateFolders(db); err != nil {
		db.Close()
		return nil, err
	}

	return &MetadataDB{db: db}, nil
}

// migrateFolders adds videos.folder_id to databases created before folders existed
func migrateFolders(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('videos') WHERE name = 'folder_id'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to inspect videos table: %w", err)
	}
	if n == 0 {
		_, err = db.Exec(`ALTER TABLE videos ADD COLUMN folder_id TEXT REFERENCES folders(id) ON DELETE SET NULL`)
		if err != nil {
			return fmt.Errorf("failed to add folder_id column: %w", err)
		}
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_videos_folder ON videos(folder_id)`); err != nil {
		return fmt.Errorf("failed to create folder index: %w", err)
	}
	return nil
}

// CreateVideo inserts a new video row
func (mdb *MetadataDB) CreateVideo(ctx context.Context, v types.Video) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.StorageURL == "" {
		v.StorageURL = "pending"
	}
	if v.FolderID != nil && *v.FolderID != "" {
		if err := checkFolder(ctx, mdb.db, *v.FolderID, v.OwnerID); err != nil {
			return err
		}
	}
	query := `
	INSERT INTO videos (` + videoColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := mdb.db.ExecContext(ctx, query, v.ID, v.OwnerID, v.Title, v.Filename, v.OriginalFilename,
		v.Size, v.MimeType, v.StorageURL, nullable(v.FolderID), string(v.Status), v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save video: %w", err)
	}
	return nil
}

// UpdateStatus sets the transcription status of a video
func (mdb *MetadataDB) UpdateStatus(ctx context.Context, videoID string, status types.JobStatus) error {
	return mdb.updateVideo(ctx, "status", string(status), videoID)
}

// UpdateStorageURL records where the durable copy of a video lives
func (mdb *MetadataDB) UpdateStorageURL(ctx context.Context, videoID, url string) error {
	return mdb.updateVideo(ctx, "storage_url", url, videoID)
}

func (mdb *MetadataDB) updateVideo(ctx context.Context, column, value, videoID string) error {
	res, err := mdb.db.ExecContext(ctx, `UPDATE videos SET `+column+` = ? WHERE id = ?`, value, videoID)
	if err != nil {
		return fmt.Errorf("failed to update video %s: %w", column, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	return nil
}

// FetchTitle returns the title of a video
func (mdb *MetadataDB) FetchTitle(ctx context.Context, videoID string) (string, error) {
	var title string
	err := mdb.db.QueryRowContext(ctx, `SELECT title FROM videos WHERE id = ?`, videoID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch title: %w", err)
	}
	return title, nil
}

const videoColumns = `id, user_id, title, filename, original_filename, size, mimetype, storage_url, folder_id, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (types.Video, error) {
	var (
		v      types.Video
		folder sql.NullString
		status string
	)
	err := row.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Filename, &v.OriginalFilename,
		&v.Size, &v.MimeType, &v.StorageURL, &folder, &status, &v.CreatedAt)
	if folder.Valid {
		v.FolderID = &folder.String
	}
	v.Status = types.JobStatus(status)
	return v, err
}

// GetVideo returns a video owned by ownerID
func (mdb *MetadataDB) GetVideo(ctx context.Context, videoID, ownerID string) (types.Video, error) {
	return getVideo(ctx, mdb.db, videoID, ownerID)
}

func getVideo(ctx context.Context, q querier, videoID, ownerID string) (types.Video, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = ? AND user_id = ?`, videoID, ownerID)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Video{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return types.Video{}, fmt.Errorf("failed to get video: %w", err)
	}
	return v, nil
}

// VideoFilter narrows ListVideos
type VideoFilter struct {
	// FolderID keeps only the videos directly in that folder when set
	FolderID string
	Limit    int
}

// VideoUpdate holds the fields to change; nil leaves a field as is and an
// empty Folder moves the video to the root
type VideoUpdate struct {
	Title  *string
	Folder *string
}

// ListVideos returns the owner's videos, newest first
func (mdb *MetadataDB) ListVideos(ctx context.Context, ownerID string, filter VideoFilter) ([]types.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE user_id = ?`
	args := []any{ownerID}
	if filter.FolderID != "" {
		query += ` AND folder_id = ?`
		args = append(args, filter.FolderID)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := mdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos := []types.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// UpdateVideo renames a video or moves it between folders and returns the result
func (mdb *MetadataDB) UpdateVideo(ctx context.Context, videoID, ownerID string, upd VideoUpdate) (types.Video, error) {
	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Video{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	v, err := getVideo(ctx, tx, videoID, ownerID)
	if err != nil {
		return types.Video{}, err
	}
	if upd.Title != nil {
		v.Title = *upd.Title
	}
	if upd.Folder != nil {
		if *upd.Folder != "" {
			if err := checkFolder(ctx, tx, *upd.Folder, ownerID); err != nil {
				return types.Video{}, err
			}
			v.FolderID = upd.Folder
		} else {
			v.FolderID = nil
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE videos SET title = ?, folder_id = ? WHERE id = ?`,
		v.Title, nullable(v.FolderID), videoID)
	if err != nil {
		return types.Video{}, fmt.Errorf("failed to update video: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return types.Video{}, fmt.Errorf("failed to commit video: %w", err)
	}
	return v, nil
}

// DeleteVideo removes a video and its transcription
func (mdb *MetadataDB) DeleteVideo(ctx context.Context, videoID, ownerID string) error {
	res, err := mdb.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ? AND user_id = ?`, videoID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertTranscription stores the result of a completed job
func (mdb *MetadataDB) InsertTranscription(ctx context.Context, rec types.TranscriptionRecord) error {
	return insertTranscription(ctx, mdb.db, rec)
}

// CompleteTranscription stores rec and marks its video completed in one
// transaction, so a failed video never keeps a transcription
func (mdb *MetadataDB) CompleteTranscription(ctx context.Context, rec types.TranscriptionRecord) error {
	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTranscription(ctx, tx, rec); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE videos SET status = ? WHERE id = ?`,
		string(types.StatusCompleted), rec.VideoID)
	if err != nil {
		return fmt.Errorf("failed to update video status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("video %s: %w", rec.VideoID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transcription: %w", err)
	}
	return nil
}

func insertTranscription(ctx context.Context, db execer, rec types.TranscriptionRecord) error {
	words, err := json.Marshal(rec.Words)
	if err != nil {
		return fmt.Errorf("failed to marshal words: %w", err)
	}
	sentences, err := json.Marshal(rec.Sentences)
	if err != nil {
		return fmt.Errorf("failed to marshal sentences: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO transcriptions (video_id, user_id, text, words, sentences, language, placeholder, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query, rec.VideoID, rec.OwnerID, rec.Text,
		string(words), string(sentences), rec.Language, rec.Placeholder, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save transcription: %w", err)
	}
	return nil
}

// GetTranscription returns the transcription of a video owned by ownerID
func (mdb *MetadataDB) GetTranscription(ctx context.Context, videoID, ownerID string) (types.TranscriptionRecord, error) {
	query := `
	SELECT video_id, user_id, text, words, sentences, language, placeholder, created_at
	FROM transcriptions WHERE video_id = ? AND user_id = ?
	`
	var (
		rec              types.TranscriptionRecord
		words, sentences string
	)
	err := mdb.db.QueryRowContext(ctx, query, videoID, ownerID).Scan(&rec.VideoID, &rec.OwnerID,
		&rec.Text, &words, &sentences, &rec.Language, &rec.Placeholder, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("transcription for %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to get transcription: %w", err)
	}

	if err := json.Unmarshal([]byte(words), &rec.Words); err != nil {
		return rec, fmt.Errorf("failed to decode words: %w", err)
	}
	if err := json.Unmarshal([]byte(sentences), &rec.Sentences); err != nil {
		return rec, fmt.Errorf("failed to decode sentences: %w", err)
	}
	return rec, nil
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
