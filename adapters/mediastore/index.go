// Package mediastore keeps a SQLite index of stitched outputs and the jobs
// that produced them.
package mediastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Skryldev/photo-affix/core"
	apperrors "github.com/Skryldev/photo-affix/errors"
)

// URIPrefix is the scheme-and-authority of URIs handed out by Scan.
const URIPrefix = "content://media/"

// ErrNotFound is returned when a URI or id has no row.
var ErrNotFound = errors.New("media not found")

// Index wraps SQLite-backed persistence for outputs and jobs.
type Index struct {
	DB  *sql.DB
	now func() time.Time
}

// Entry is one indexed output.
type Entry struct {
	ID        int64
	URI       string
	Path      string
	MIMEType  string
	SizeBytes int64
	CreatedAt time.Time
}

// JobRecord captures persisted job info.
type JobRecord struct {
	ID         string
	Kind       string
	Status     string
	Photos     int
	OutputPath string
	Error      string
	CreatedAt  time.Time
	DoneAt     *time.Time
}

// Open opens (or creates) the database at path and ensures schema.
func Open(path string) (*Index, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryStorage, "mediastore.open", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "mediastore.open", err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	ix := &Index{DB: db, now: time.Now}
	if err := ix.ensureSchema(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "mediastore.schema", err)
	}
	return ix, nil
}

func (ix *Index) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS media (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            path TEXT NOT NULL UNIQUE,
            mime_type TEXT NOT NULL,
            size_bytes INTEGER,
            created_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS affix_jobs (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL,
            status TEXT NOT NULL,
            photos INTEGER,
            output_path TEXT,
            error_message TEXT,
            created_at INTEGER NOT NULL,
            done_at INTEGER
        );`,
		`CREATE INDEX IF NOT EXISTS idx_media_created_at ON media(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_affix_jobs_created_at ON affix_jobs(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := ix.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (ix *Index) Close() error {
	if ix == nil || ix.DB == nil {
		return nil
	}
	return ix.DB.Close()
}

// Scan records path and returns its content:// URI.  Scanning the same path
// again refreshes the row and keeps the id.
func (ix *Index) Scan(ctx context.Context, path string, format core.Format) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "mediastore.scan", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "mediastore.scan", err)
	}

	_, err = ix.DB.ExecContext(ctx,
		`INSERT INTO media (path, mime_type, size_bytes, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET mime_type=excluded.mime_type, size_bytes=excluded.size_bytes, created_at=excluded.created_at;`,
		abs, format.MIMEType(), fi.Size(), ix.now().UnixMilli())
	if err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "mediastore.scan", err)
	}

	var id int64
	if err := ix.DB.QueryRowContext(ctx, `SELECT id FROM media WHERE path = ?;`, abs).Scan(&id); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "mediastore.scan", err)
	}
	return URIPrefix + strconv.FormatInt(id, 10), nil
}

// Lookup resolves a URI returned by Scan.
func (ix *Index) Lookup(ctx context.Context, uri string) (Entry, error) {
	if !strings.HasPrefix(uri, URIPrefix) {
		return Entry{}, apperrors.New(apperrors.CategoryStorage, "mediastore.lookup",
			fmt.Errorf("%s: %w", uri, apperrors.ErrUnsupportedScheme))
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(uri, URIPrefix), 10, 64)
	if err != nil {
		return Entry{}, apperrors.New(apperrors.CategoryStorage, "mediastore.lookup", fmt.Errorf("%s: %w", uri, err))
	}
	row := ix.DB.QueryRowContext(ctx,
		`SELECT id, path, mime_type, size_bytes, created_at FROM media WHERE id = ?;`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, apperrors.New(apperrors.CategoryStorage, "mediastore.lookup", fmt.Errorf("%s: %w", uri, ErrNotFound))
	}
	if err != nil {
		return Entry{}, apperrors.Wrap(apperrors.CategoryStorage, "mediastore.lookup", err)
	}
	return e, nil
}

// OpenContent opens the file behind a content:// URI.  It has the shape of
// storage.ContentOpener.
func (ix *Index) OpenContent(ctx context.Context, uri string) (io.ReadCloser, error) {
	e, err := ix.Lookup(ctx, uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(e.Path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "mediastore.open", err)
	}
	return f, nil
}

// Recent returns the latest outputs, newest first.
func (ix *Index) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := ix.DB.QueryContext(ctx,
		`SELECT id, path, mime_type, size_bytes, created_at FROM media ORDER BY created_at DESC, id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "mediastore.recent", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryStorage, "mediastore.recent", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordJobQueued inserts a pending job.
func (ix *Index) RecordJobQueued(ctx context.Context, id, kind string, photos int) error {
	if ix == nil {
		return nil
	}
	_, err := ix.DB.ExecContext(ctx,
		`INSERT OR REPLACE INTO affix_jobs (id, kind, status, photos, created_at) VALUES (?, ?, 'queued', ?, ?);`,
		id, kind, photos, ix.now().UnixMilli())
	return err
}

// RecordJobResult finalizes a job with its status, output and error.
func (ix *Index) RecordJobResult(ctx context.Context, id, status, outputPath, errMsg string) error {
	if ix == nil {
		return nil
	}
	_, err := ix.DB.ExecContext(ctx,
		`UPDATE affix_jobs SET status=?, output_path=?, error_message=?, done_at=? WHERE id=?;`,
		status, outputPath, errMsg, ix.now().UnixMilli(), id)
	return err
}

// RecentJobs returns the latest jobs up to limit.
func (ix *Index) RecentJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := ix.DB.QueryContext(ctx,
		`SELECT id, kind, status, photos, output_path, error_message, created_at, done_at FROM affix_jobs ORDER BY created_at DESC, rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []JobRecord
	for rows.Next() {
		var rec JobRecord
		var created int64
		var photos sql.NullInt64
		var output, errMsg sql.NullString
		var done sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Status, &photos, &output, &errMsg, &created, &done); err != nil {
			return nil, err
		}
		rec.Photos = int(photos.Int64)
		rec.OutputPath = output.String
		rec.Error = errMsg.String
		rec.CreatedAt = time.UnixMilli(created)
		if done.Valid {
			t := time.UnixMilli(done.Int64)
			rec.DoneAt = &t
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (Entry, error) {
	var e Entry
	var size sql.NullInt64
	var created int64
	if err := r.Scan(&e.ID, &e.Path, &e.MIMEType, &size, &created); err != nil {
		return Entry{}, err
	}
	e.SizeBytes = size.Int64
	e.CreatedAt = time.UnixMilli(created)
	e.URI = URIPrefix + strconv.FormatInt(e.ID, 10)
	return e, nil
}

var _ core.MediaScanner = (*Index)(nil)
