// Package history persists a queryable audit log of every answered
// query in SQLite.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/bull/advisor-rag/internal/history/migrations"
)

// ErrNotFound is returned when no record exists for the given ID.
var ErrNotFound = errors.New("history record not found")

// Store is the SQLite-backed query history. Safe for concurrent use;
// WAL mode lets readers proceed while a write is in flight.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the history database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".advisor", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "history.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
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
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
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
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Record writes one query and its sources in a single transaction.
// Either the record and all its sources land, or nothing does.
func (s *Store) Record(ctx context.Context, entry Entry) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO query_history
			(id, query_text, answer_text, top_k, response_time_ms, source_count, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, entry.QueryText, entry.AnswerText, entry.TopK,
		nullInt64(entry.ResponseTimeMS), len(entry.Sources),
		entry.Success, nullString(entry.ErrorMessage), now)
	if err != nil {
		return "", fmt.Errorf("inserting query record: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO query_sources
			(id, query_id, position, content_preview, similarity_score, file_name, page, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("preparing source insert: %w", err)
	}
	defer stmt.Close()

	for i, src := range entry.Sources {
		_, err := stmt.ExecContext(ctx, uuid.New().String(), id, i+1,
			truncatePreview(src.Content), src.SimilarityScore,
			src.FileName, nullInt(src.Page), now)
		if err != nil {
			return "", fmt.Errorf("inserting source %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return id, nil
}

// Get returns one record with its sources in retrieval order.
func (s *Store) Get(ctx context.Context, id string) (*Record, []Source, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, query_text, answer_text, top_k, response_time_ms, source_count, success, error_message, created_at
		FROM query_history WHERE id = ?
	`, id)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, nil, fmt.Errorf("querying record: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_id, position, content_preview, similarity_score, file_name, page, created_at
		FROM query_sources WHERE query_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		var page sql.NullInt64
		if err := rows.Scan(&src.ID, &src.QueryID, &src.Position, &src.ContentPreview,
			&src.SimilarityScore, &src.FileName, &page, &src.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scanning source: %w", err)
		}
		if page.Valid {
			p := int(page.Int64)
			src.Page = &p
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating sources: %w", err)
	}

	return record, sources, nil
}

// List returns a page of records, newest first, plus the total count.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Record, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM query_history").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting records: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_text, answer_text, top_k, response_time_ms, source_count, success, error_message, created_at
		FROM query_history
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating records: %w", err)
	}

	return records, total, nil
}

// Statistics aggregates over all recorded queries. The average response
// time considers only records that carry one.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0) FROM query_history
	`).Scan(&stats.TotalQueries, &stats.SuccessfulQueries)
	if err != nil {
		return nil, fmt.Errorf("counting queries: %w", err)
	}

	if stats.TotalQueries > 0 {
		stats.SuccessRatePercent = 100 * float64(stats.SuccessfulQueries) / float64(stats.TotalQueries)
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT AVG(response_time_ms) FROM query_history WHERE response_time_ms IS NOT NULL
	`).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("averaging response time: %w", err)
	}
	if avg.Valid {
		stats.AvgResponseTimeMS = &avg.Float64
	}

	return stats, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var responseTime sql.NullInt64
	var errorMessage sql.NullString
	if err := row.Scan(&r.ID, &r.QueryText, &r.AnswerText, &r.TopK, &responseTime,
		&r.SourceCount, &r.Success, &errorMessage, &r.CreatedAt); err != nil {
		return nil, err
	}
	if responseTime.Valid {
		r.ResponseTimeMS = &responseTime.Int64
	}
	if errorMessage.Valid {
		r.ErrorMessage = errorMessage.String
	}
	return &r, nil
}

func truncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength])
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
