package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flarexio/copilot"
	"github.com/flarexio/copilot/persistence/sqlite/migrations"
	"github.com/flarexio/copilot/vector"
)

// Fixed width keeps lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db   *sql.DB
	path string
}

var _ copilot.Repository = (*Store)(nil)

// NewStore opens (or creates) copilot.db under dir and applies pending
// migrations.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, "copilot.db")

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, formatTime(time.Now())); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// ==================== Documents ====================

func (s *Store) CreateDocument(ctx context.Context, doc copilot.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, filename, source_type, status, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.ProjectID, nullString(doc.Filename), string(doc.SourceType), string(doc.Status),
		doc.ChunkCount, formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))

	if err != nil {
		return fmt.Errorf("creating document: %w", err)
	}

	return nil
}

const documentColumns = "id, project_id, filename, source_type, status, chunk_count, created_at, updated_at"

func (s *Store) GetDocument(ctx context.Context, id string) (*copilot.Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, copilot.ErrDocumentNotFound
		}

		return nil, err
	}

	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, projectID string, limit int, offset int) ([]copilot.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := make([]copilot.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}

		docs = append(docs, *doc)
	}

	return docs, rows.Err()
}

func (s *Store) SetDocumentStatus(ctx context.Context, id string, status copilot.DocumentStatus, chunkCount ...int) error {
	now := formatTime(time.Now())

	var (
		result sql.Result
		err    error
	)

	if len(chunkCount) > 0 {
		result, err = s.db.ExecContext(ctx,
			"UPDATE documents SET status = ?, chunk_count = ?, updated_at = ? WHERE id = ?",
			string(status), chunkCount[0], now, id)
	} else {
		result, err = s.db.ExecContext(ctx,
			"UPDATE documents SET status = ?, updated_at = ? WHERE id = ?",
			string(status), now, id)
	}

	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return copilot.ErrDocumentNotFound
	}

	return nil
}

// ==================== Chunks ====================

func (s *Store) PersistChunk(ctx context.Context, chunk copilot.Chunk) error {
	metadata, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling chunk metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, project_id, document_id, chunk_index, text, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, chunk_index) DO NOTHING
	`, chunk.ID, chunk.ProjectID, chunk.DocumentID, chunk.Index, chunk.Text,
		vector.Encode(chunk.Embedding), string(metadata), formatTime(chunk.CreatedAt))

	if err != nil {
		return fmt.Errorf("persisting chunk: %w", err)
	}

	return nil
}

const chunkColumns = "id, project_id, document_id, chunk_index, text, embedding, metadata, created_at"

func (s *Store) ChunksByProject(ctx context.Context, projectID string) ([]copilot.Chunk, error) {
	return s.queryChunks(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE project_id = ?", projectID)
}

func (s *Store) ChunksByDocument(ctx context.Context, documentID string) ([]copilot.Chunk, error) {
	return s.queryChunks(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? ORDER BY chunk_index", documentID)
}

func (s *Store) queryChunks(ctx context.Context, query string, args ...any) ([]copilot.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]copilot.Chunk, 0)
	for rows.Next() {
		var (
			chunk     copilot.Chunk
			embedding []byte
			metadata  string
			createdAt string
		)

		if err := rows.Scan(&chunk.ID, &chunk.ProjectID, &chunk.DocumentID, &chunk.Index,
			&chunk.Text, &embedding, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		chunk.Embedding = vector.Decode(embedding)

		if err := json.Unmarshal([]byte(metadata), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
		}

		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}

		chunk.CreatedAt = t
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// ==================== Queries ====================

func (s *Store) CreateQuery(ctx context.Context, query copilot.Query) error {
	citations, err := json.Marshal(nonNil(query.Citations))
	if err != nil {
		return fmt.Errorf("marshalling citations: %w", err)
	}

	related, err := json.Marshal(nonNil(query.RelatedDocuments))
	if err != nil {
		return fmt.Errorf("marshalling related documents: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queries (id, project_id, question, answer, citations, latency_ms, tokens_used, model, related_documents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, query.ID, query.ProjectID, query.Question, query.Answer, string(citations),
		query.LatencyMS, query.TokensUsed, query.Model, string(related), formatTime(query.CreatedAt))

	if err != nil {
		return fmt.Errorf("creating query: %w", err)
	}

	return nil
}

func (s *Store) GetQuery(ctx context.Context, id string) (*copilot.Query, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, question, answer, citations, latency_ms, tokens_used, model, related_documents, created_at
		FROM queries WHERE id = ?
	`, id)

	var (
		query     copilot.Query
		citations string
		related   string
		createdAt string
	)

	if err := row.Scan(&query.ID, &query.ProjectID, &query.Question, &query.Answer, &citations,
		&query.LatencyMS, &query.TokensUsed, &query.Model, &related, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, copilot.ErrQueryNotFound
		}

		return nil, fmt.Errorf("scanning query: %w", err)
	}

	if err := json.Unmarshal([]byte(citations), &query.Citations); err != nil {
		return nil, fmt.Errorf("unmarshalling citations: %w", err)
	}

	if err := json.Unmarshal([]byte(related), &query.RelatedDocuments); err != nil {
		return nil, fmt.Errorf("unmarshalling related documents: %w", err)
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	query.CreatedAt = t
	return &query, nil
}

func (s *Store) AddFeedback(ctx context.Context, feedback copilot.Feedback) error {
	var exists int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM queries WHERE id = ?", feedback.QueryID)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("checking query: %w", err)
	}

	if exists == 0 {
		return copilot.ErrQueryNotFound
	}

	var rating sql.NullInt64
	if feedback.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*feedback.Rating), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, query_id, rating, note, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, feedback.ID, feedback.QueryID, rating, nullString(feedback.Note), formatTime(feedback.CreatedAt))

	if err != nil {
		return fmt.Errorf("adding feedback: %w", err)
	}

	return nil
}

// ==================== Actions ====================

func (s *Store) CreateAction(ctx context.Context, action copilot.Action) error {
	payload, err := json.Marshal(action.Payload)
	if err != nil {
		return fmt.Errorf("marshalling action payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actions (id, project_id, type, payload, status, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, action.ID, action.ProjectID, string(action.Type), string(payload), string(action.Status),
		nullString(action.Result), formatTime(action.CreatedAt))

	if err != nil {
		return fmt.Errorf("creating action: %w", err)
	}

	return nil
}

func (s *Store) CompleteAction(ctx context.Context, id string, status copilot.ActionStatus, result string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE actions SET status = ?, result = ?, completed_at = ? WHERE id = ?",
		string(status), result, formatTime(time.Now()), id)

	if err != nil {
		return fmt.Errorf("completing action: %w", err)
	}

	return nil
}

// GetAction is used by operators and tests; the service never reads
// actions back.
func (s *Store) GetAction(ctx context.Context, id string) (*copilot.Action, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, type, payload, status, result, created_at, completed_at
		FROM actions WHERE id = ?
	`, id)

	var (
		action      copilot.Action
		payload     string
		result      sql.NullString
		createdAt   string
		completedAt sql.NullString
	)

	if err := row.Scan(&action.ID, &action.ProjectID, &action.Type, &payload, &action.Status,
		&result, &createdAt, &completedAt); err != nil {
		return nil, fmt.Errorf("scanning action: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &action.Payload); err != nil {
		return nil, fmt.Errorf("unmarshalling action payload: %w", err)
	}

	action.Result = result.String

	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	action.CreatedAt = t

	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}

		action.CompletedAt = &t
	}

	return &action, nil
}

// ==================== Metrics ====================

func (s *Store) MetricsInput(ctx context.Context, projectID string) (copilot.MetricsInput, error) {
	var in copilot.MetricsInput

	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM documents WHERE (? = '' OR project_id = ?)", projectID, projectID)
	if err := row.Scan(&in.Documents); err != nil {
		return in, fmt.Errorf("counting documents: %w", err)
	}

	row = s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM chunks WHERE (? = '' OR project_id = ?)", projectID, projectID)
	if err := row.Scan(&in.Chunks); err != nil {
		return in, fmt.Errorf("counting chunks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT latency_ms FROM queries WHERE (? = '' OR project_id = ?)", projectID, projectID)
	if err != nil {
		return in, fmt.Errorf("querying latencies: %w", err)
	}

	in.Latencies = make([]int64, 0)
	for rows.Next() {
		var latency int64
		if err := rows.Scan(&latency); err != nil {
			rows.Close()
			return in, err
		}

		in.Latencies = append(in.Latencies, latency)
	}

	rows.Close()
	if err := rows.Err(); err != nil {
		return in, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT f.rating FROM feedback f
		JOIN queries q ON q.id = f.query_id
		WHERE f.rating IS NOT NULL AND (? = '' OR q.project_id = ?)
	`, projectID, projectID)
	if err != nil {
		return in, fmt.Errorf("querying ratings: %w", err)
	}
	defer rows.Close()

	in.Ratings = make([]int, 0)
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return in, err
		}

		in.Ratings = append(in.Ratings, rating)
	}

	return in, rows.Err()
}

// ==================== Helpers ====================

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*copilot.Document, error) {
	var (
		doc       copilot.Document
		filename  sql.NullString
		createdAt string
		updatedAt string
	)

	if err := row.Scan(&doc.ID, &doc.ProjectID, &filename, &doc.SourceType, &doc.Status,
		&doc.ChunkCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc.Filename = filename.String

	var err error
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &doc, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}

	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}

	return items
}
