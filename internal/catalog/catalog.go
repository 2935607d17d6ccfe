// Package catalog provides a SQLite-backed file metadata store. It records
// which files belong to which workspace and conversation, and carries the
// terminal ingestion status the consumer reports per file. The catalog is a
// side channel: the vector index alone decides what is retrievable, the
// catalog only supplies candidate file sets and user-visible status.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned when a file id is not present in the catalog.
var ErrNotFound = errors.New("catalog: file not found")

// Status is the ingestion state of a file.
type Status string

const (
	// StatusPending means the file is registered but not yet processed.
	StatusPending Status = "pending"
	// StatusCompleted means the last ingestion of this file succeeded.
	StatusCompleted Status = "completed"
	// StatusFailed means the last ingestion attempt failed; a queue retry
	// may still repair it.
	StatusFailed Status = "failed"
)

// File is one catalog entry.
type File struct {
	// ID is the external file identifier carried by file events.
	ID int64
	// WorkspaceID is the workspace the file belongs to.
	WorkspaceID int64
	// ConversationID links the file to a conversation, 0 when workspace-wide.
	ConversationID int64
	// Name is the display file name (used in context block headers).
	Name string
	// StorageKey is the object-storage key of the file content.
	StorageKey string
	// Status is the last reported ingestion status.
	Status Status
	// UpdatedAt is when the entry last changed.
	UpdatedAt time.Time
}

// FileCatalog persists file metadata and ingestion status.
// Implementations must be safe for concurrent use.
type FileCatalog interface {
	// Upsert registers a file or refreshes its metadata, preserving status
	// on conflict unless a new status is supplied.
	Upsert(ctx context.Context, f File) error
	// SetStatus records the terminal ingestion status for a file. Unknown
	// ids are upserted with minimal metadata so status is never lost.
	SetStatus(ctx context.Context, fileID int64, status Status) error
	// Get returns the catalog entry for a file id.
	Get(ctx context.Context, fileID int64) (File, error)
	// ListByConversation returns up to limit files attached to a conversation.
	ListByConversation(ctx context.Context, conversationID int64, limit int) ([]File, error)
	// Close releases any resources held by the catalog.
	Close() error
}

// SQLiteCatalog is a FileCatalog backed by a local SQLite database.
type SQLiteCatalog struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the catalog database.
// It resolves to ~/.contextd/catalog.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("catalog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".contextd")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("catalog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a SQLiteCatalog at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteCatalog, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	c := &SQLiteCatalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// migrate creates the schema if it does not already exist.
func (c *SQLiteCatalog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS files (
    id              INTEGER PRIMARY KEY,
    workspace_id    INTEGER NOT NULL,
    conversation_id INTEGER NOT NULL DEFAULT 0,
    name            TEXT    NOT NULL,
    storage_key     TEXT    NOT NULL,
    status          TEXT    NOT NULL DEFAULT 'pending'
                    CHECK(status IN ('pending','completed','failed')),
    updated_at      INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_files_workspace    ON files (workspace_id);
CREATE INDEX IF NOT EXISTS idx_files_conversation ON files (conversation_id);
`
	if _, err := c.db.Exec(ddl); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Upsert registers a file or refreshes its metadata.
func (c *SQLiteCatalog) Upsert(ctx context.Context, f File) error {
	if f.Status == "" {
		f.Status = StatusPending
	}
	const q = `
INSERT INTO files (id, workspace_id, conversation_id, name, storage_key, status, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    workspace_id    = excluded.workspace_id,
    conversation_id = excluded.conversation_id,
    name            = excluded.name,
    storage_key     = excluded.storage_key,
    status          = excluded.status,
    updated_at      = excluded.updated_at`
	_, err := c.db.ExecContext(ctx, q,
		f.ID, f.WorkspaceID, f.ConversationID, f.Name, f.StorageKey, string(f.Status), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("catalog: upsert file %d: %w", f.ID, err)
	}
	return nil
}

// SetStatus records the terminal ingestion status for a file. A status for an
// unregistered file inserts a stub row so the report is never dropped.
func (c *SQLiteCatalog) SetStatus(ctx context.Context, fileID int64, status Status) error {
	const q = `
INSERT INTO files (id, workspace_id, conversation_id, name, storage_key, status, updated_at)
VALUES (?, 0, 0, '', '', ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status     = excluded.status,
    updated_at = excluded.updated_at`
	_, err := c.db.ExecContext(ctx, q, fileID, string(status), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("catalog: set status of file %d: %w", fileID, err)
	}
	return nil
}

// Get returns the catalog entry for a file id.
func (c *SQLiteCatalog) Get(ctx context.Context, fileID int64) (File, error) {
	const q = `
SELECT id, workspace_id, conversation_id, name, storage_key, status, updated_at
FROM   files WHERE id = ?`

	var f File
	var ts int64
	var status string
	err := c.db.QueryRowContext(ctx, q, fileID).Scan(
		&f.ID, &f.WorkspaceID, &f.ConversationID, &f.Name, &f.StorageKey, &status, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, fmt.Errorf("%w: id %d", ErrNotFound, fileID)
	}
	if err != nil {
		return File{}, fmt.Errorf("catalog: get file %d: %w", fileID, err)
	}
	f.Status = Status(status)
	f.UpdatedAt = time.Unix(ts, 0)
	return f, nil
}

// ListByConversation returns up to limit files attached to a conversation,
// oldest-registered first for stable context ordering.
func (c *SQLiteCatalog) ListByConversation(ctx context.Context, conversationID int64, limit int) ([]File, error) {
	const q = `
SELECT id, workspace_id, conversation_id, name, storage_key, status, updated_at
FROM   files
WHERE  conversation_id = ?
ORDER  BY id ASC
LIMIT  ?`

	rows, err := c.db.QueryContext(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list conversation %d: %w", conversationID, err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		var ts int64
		var status string
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.ConversationID, &f.Name, &f.StorageKey, &status, &ts); err != nil {
			return nil, fmt.Errorf("catalog: list scan: %w", err)
		}
		f.Status = Status(status)
		f.UpdatedAt = time.Unix(ts, 0)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list rows: %w", err)
	}
	return files, nil
}

// Close closes the underlying database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
