// Package sqlstore implements the note store on SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"semnotes/internal/adapter/retriever"
	"semnotes/internal/adapter/sqlstore/migrations"
	"semnotes/internal/domain"
	"semnotes/internal/port"
)

// Store keeps notes in a single SQLite database file.
type Store struct {
	db        *sql.DB
	path      string
	dimension int
}

var (
	_ port.NoteStore        = (*Store)(nil)
	_ port.EmbeddingTracker = (*Store)(nil)
)

// NewStore opens (or creates) the database at path and runs pending
// migrations. A dimension of 0 adopts the dimension recorded in the database.
func NewStore(path string, dimension int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if s.dimension, err = s.bindDimension(dimension); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Dimension() int {
	return s.dimension
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_notes.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// bindDimension records the vector dimension on first use and rejects a
// later open with a different one.
func (s *Store) bindDimension(dimension int) (int, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = 'dimension'`).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if dimension == 0 {
			return 0, nil
		}
		_, err := s.db.Exec(`INSERT INTO store_meta (key, value) VALUES ('dimension', ?)`, strconv.Itoa(dimension))
		if err != nil {
			return 0, fmt.Errorf("recording dimension: %w", err)
		}
		return dimension, nil
	case err != nil:
		return 0, fmt.Errorf("reading dimension: %w", err)
	}

	stored, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt dimension %q: %w", raw, err)
	}
	if dimension != 0 && dimension != stored {
		return 0, fmt.Errorf("store holds %d-dimensional vectors, embedder produces %d; reindex into a new store", stored, dimension)
	}
	return stored, nil
}

// CheckEmbedding reports whether notes were embedded under a different
// embedding configuration than the one identified by hash.
func (s *Store) CheckEmbedding(hash string) (*domain.EmbeddingCheck, error) {
	var stored string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = 'embedding_hash'`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading embedding hash: %w", err)
	}
	return domain.CompareEmbeddingHash(stored, hash), nil
}

// MarkEmbedding records hash as the configuration that produced the stored
// vectors.
func (s *Store) MarkEmbedding(hash string) error {
	_, err := s.db.Exec(`
		INSERT INTO store_meta (key, value) VALUES ('embedding_hash', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, hash)
	if err != nil {
		return fmt.Errorf("recording embedding hash: %w", err)
	}
	return nil
}

// Create inserts a new note at revision 1.
func (s *Store) Create(ctx context.Context, note domain.Note) (domain.Note, error) {
	if err := note.Embedding.Validate(s.dimension); err != nil {
		return domain.Note{}, err
	}

	note.Revision = 1
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, owner_id, content, embedding_state, embedding, embedding_error, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, note.ID, note.OwnerID, note.Content, string(note.Embedding.State),
		float32SliceToBytes(note.Embedding.Vector), note.Embedding.Reason,
		note.Revision, note.CreatedAt.UnixNano(), note.UpdatedAt.UnixNano())
	if err != nil {
		return domain.Note{}, fmt.Errorf("inserting note %s: %w", note.ID, err)
	}
	return note, nil
}

// Get returns the owner's note with the given ID.
func (s *Store) Get(ctx context.Context, ownerID, id string) (domain.Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, content, embedding_state, embedding, embedding_error, revision, created_at, updated_at
		FROM notes WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Note{}, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Note{}, fmt.Errorf("querying note %s: %w", id, err)
	}
	return note, nil
}

// Write replaces the note's content and embedding when the stored revision
// matches expectedRevision (0 skips the check).
func (s *Store) Write(ctx context.Context, note domain.Note, expectedRevision int64) (domain.Note, error) {
	if err := note.Embedding.Validate(s.dimension); err != nil {
		return domain.Note{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE notes SET
			content = ?,
			embedding_state = ?,
			embedding = ?,
			embedding_error = ?,
			updated_at = ?,
			revision = revision + 1
		WHERE id = ? AND owner_id = ? AND (? = 0 OR revision = ?)
		RETURNING id, owner_id, content, embedding_state, embedding, embedding_error, revision, created_at, updated_at
	`, note.Content, string(note.Embedding.State), float32SliceToBytes(note.Embedding.Vector),
		note.Embedding.Reason, note.UpdatedAt.UnixNano(),
		note.ID, note.OwnerID, expectedRevision, expectedRevision)

	written, err := scanNote(row)
	if err == nil {
		return written, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Note{}, fmt.Errorf("updating note %s: %w", note.ID, err)
	}

	current, err := s.Get(ctx, note.OwnerID, note.ID)
	if err != nil {
		return domain.Note{}, err
	}
	return domain.Note{}, fmt.Errorf("note %s at revision %d, expected %d: %w", note.ID, current.Revision, expectedRevision, domain.ErrConflict)
}

// Delete removes the owner's note.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns the owner's notes newest first.
func (s *Store) List(ctx context.Context, ownerID string, opts domain.ListOptions) ([]domain.Note, error) {
	query := `
		SELECT id, owner_id, content, embedding_state, embedding, embedding_error, revision, created_at, updated_at
		FROM notes WHERE owner_id = ?`
	args := []any{ownerID}
	if opts.State != "" {
		query += ` AND embedding_state = ?`
		args = append(args, string(opts.State))
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	notes := make([]domain.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// SimilaritySearch loads the owner's ready vectors and ranks them brute force.
func (s *Store) SimilaritySearch(ctx context.Context, ownerID string, query []float32, threshold float64, limit int) ([]domain.SimilarityResult, error) {
	if s.dimension > 0 && len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}
	if limit <= 0 {
		return []domain.SimilarityResult{}, nil
	}

	candidates, err := s.List(ctx, ownerID, domain.ListOptions{State: domain.EmbeddingReady})
	if err != nil {
		return nil, err
	}
	return retriever.Rank(ownerID, candidates, query, threshold, limit), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (domain.Note, error) {
	var (
		note      domain.Note
		state     string
		vector    []byte
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&note.ID, &note.OwnerID, &note.Content, &state, &vector,
		&note.Embedding.Reason, &note.Revision, &createdAt, &updatedAt)
	if err != nil {
		return domain.Note{}, err
	}
	note.Embedding.State = domain.EmbeddingState(state)
	note.Embedding.Vector = bytesToFloat32Slice(vector)
	note.CreatedAt = time.Unix(0, createdAt).UTC()
	note.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return note, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
