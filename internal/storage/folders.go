package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/transly/internal/types"
)

// ErrInvalidFolder is returned for a folder that is missing, owned by someone
// else, or would make the folder tree cyclic
var ErrInvalidFolder = errors.New("invalid folder")

// maxFolderDepth bounds the parent walk of the cycle check
const maxFolderDepth = 64

// FolderUpdate holds the fields to change; nil leaves a field as is and an
// empty Parent moves the folder to the root
type FolderUpdate struct {
	Name   *string
	Parent *string
}

type querier interface {
	execer
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const folderColumns = `id, user_id, name, parent_folder_id, created_at`

func scanFolder(row rowScanner) (types.Folder, error) {
	var (
		f      types.Folder
		parent sql.NullString
	)
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &parent, &f.CreatedAt)
	if parent.Valid {
		f.ParentID = &parent.String
	}
	return f, err
}

func nullable(id *string) any {
	if id == nil || *id == "" {
		return nil
	}
	return *id
}

// checkFolder verifies that folderID exists and belongs to ownerID
func checkFolder(ctx context.Context, q querier, folderID, ownerID string) error {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM folders WHERE id = ? AND user_id = ?`, folderID, ownerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("folder %s: %w", folderID, ErrInvalidFolder)
	}
	if err != nil {
		return fmt.Errorf("failed to check folder: %w", err)
	}
	return nil
}

// CreateFolder inserts a folder, optionally under a parent of the same owner
func (mdb *MetadataDB) CreateFolder(ctx context.Context, f types.Folder) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.ParentID != nil && *f.ParentID != "" {
		if err := checkFolder(ctx, mdb.db, *f.ParentID, f.OwnerID); err != nil {
			return err
		}
	}
	_, err := mdb.db.ExecContext(ctx,
		`INSERT INTO folders (`+folderColumns+`) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.OwnerID, f.Name, nullable(f.ParentID), f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save folder: %w", err)
	}
	return nil
}

func getFolder(ctx context.Context, q querier, folderID, ownerID string) (types.Folder, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE id = ? AND user_id = ?`, folderID, ownerID)
	f, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Folder{}, fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
	}
	if err != nil {
		return types.Folder{}, fmt.Errorf("failed to get folder: %w", err)
	}
	return f, nil
}

// GetFolder returns a folder owned by ownerID
func (mdb *MetadataDB) GetFolder(ctx context.Context, folderID, ownerID string) (types.Folder, error) {
	return getFolder(ctx, mdb.db, folderID, ownerID)
}

// ListFolders returns all of the owner's folders, newest first
func (mdb *MetadataDB) ListFolders(ctx context.Context, ownerID string) ([]types.Folder, error) {
	rows, err := mdb.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE user_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	folders := []types.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// UpdateFolder renames or moves a folder and returns the result
func (mdb *MetadataDB) UpdateFolder(ctx context.Context, folderID, ownerID string, upd FolderUpdate) (types.Folder, error) {
	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Folder{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	f, err := getFolder(ctx, tx, folderID, ownerID)
	if err != nil {
		return types.Folder{}, err
	}
	if upd.Name != nil {
		f.Name = *upd.Name
	}
	if upd.Parent != nil {
		if *upd.Parent != "" {
			if err := checkParent(ctx, tx, folderID, *upd.Parent, ownerID); err != nil {
				return types.Folder{}, err
			}
			f.ParentID = upd.Parent
		} else {
			f.ParentID = nil
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE folders SET name = ?, parent_folder_id = ? WHERE id = ?`,
		f.Name, nullable(f.ParentID), folderID)
	if err != nil {
		return types.Folder{}, fmt.Errorf("failed to update folder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return types.Folder{}, fmt.Errorf("failed to commit folder: %w", err)
	}
	return f, nil
}

// checkParent rejects a parent that is foreign, missing, or inside folderID's own subtree
func checkParent(ctx context.Context, q querier, folderID, parentID, ownerID string) error {
	if err := checkFolder(ctx, q, parentID, ownerID); err != nil {
		return err
	}
	cur := parentID
	for depth := 0; cur != ""; depth++ {
		if cur == folderID || depth >= maxFolderDepth {
			return fmt.Errorf("folder %s under %s: %w", folderID, parentID, ErrInvalidFolder)
		}
		var next sql.NullString
		err := q.QueryRowContext(ctx, `SELECT parent_folder_id FROM folders WHERE id = ?`, cur).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to walk folder tree: %w", err)
		}
		cur = next.String
	}
	return nil
}

// DeleteFolder removes a folder; its videos and subfolders move to the root
func (mdb *MetadataDB) DeleteFolder(ctx context.Context, folderID, ownerID string) error {
	res, err := mdb.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ? AND user_id = ?`, folderID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
	}
	return nil
}
