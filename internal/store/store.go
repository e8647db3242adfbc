package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"convertupload/internal/config"
	"convertupload/internal/delivery"
)

// Run is one pipeline run's persisted record.
type Run struct {
	ID           string
	InputPath    string
	ArtifactPath string
	ShareLink    string
	State        string
	Rating       int
	ContactEmail string
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Finished reports whether the run has a recorded end time.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// DeliveryRecord is one recipient's send outcome for a run.
type DeliveryRecord struct {
	RunID     string
	Channel   string
	Recipient string
	Error     string
	SentAt    time.Time
}

// Store persists run history and delivery outcomes in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "history.db"))
}

// OpenPath connects to the history database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path reports the database file location.
func (s *Store) Path() string {
	return s.path
}

// BeginRun inserts a new run record and returns it.
func (s *Store) BeginRun(ctx context.Context, inputPath, state string) (*Run, error) {
	id := uuid.NewString()
	startedAt := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, state, started_at) VALUES (?, ?, ?, ?)`,
		id, inputPath, state, startedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, id)
}

// UpdateState records the run's latest pipeline state.
func (s *Store) UpdateState(ctx context.Context, runID, state string) error {
	return s.updateColumn(ctx, runID, "state", state)
}

// SetArtifact records the rendered artifact path.
func (s *Store) SetArtifact(ctx context.Context, runID, artifactPath string) error {
	return s.updateColumn(ctx, runID, "artifact_path", artifactPath)
}

// SetContact records the captured contact email.
func (s *Store) SetContact(ctx context.Context, runID, email string) error {
	return s.updateColumn(ctx, runID, "contact_email", email)
}

// SetRating records the guest's satisfaction rating.
func (s *Store) SetRating(ctx context.Context, runID string, rating int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE runs SET rating = ? WHERE id = ?", rating, runID)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	return requireRow(res, runID)
}

// FinishRun records the final state, share link and failure message.
func (s *Store) FinishRun(ctx context.Context, runID, state, shareLink, errMessage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, share_link = ?, error = ?, finished_at = ? WHERE id = ?`,
		state, shareLink, errMessage, time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, runID)
}

// RecordOutcomes persists one delivery row per recipient.
func (s *Store) RecordOutcomes(ctx context.Context, runID string, outcomes []delivery.Outcome) error {
	sentAt := time.Now().UTC().Format(time.RFC3339Nano)
	for _, outcome := range outcomes {
		errMessage := ""
		if outcome.Err != nil {
			errMessage = outcome.Err.Error()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO deliveries (run_id, channel, recipient, error, sent_at) VALUES (?, ?, ?, ?, ?)`,
			runID, string(outcome.Channel), outcome.Recipient, errMessage, sentAt,
		)
		if err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
	}
	return nil
}

// GetRun fetches one run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_path, artifact_path, share_link, state, rating,
            contact_email, error, started_at, finished_at
         FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// RecentRuns lists the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_path, artifact_path, share_link, state, rating,
            contact_email, error, started_at, finished_at
         FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Deliveries lists the send outcomes recorded for one run.
func (s *Store) Deliveries(ctx context.Context, runID string) ([]DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, channel, recipient, error, sent_at
         FROM deliveries WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var records []DeliveryRecord
	for rows.Next() {
		var record DeliveryRecord
		var sentAt string
		if err := rows.Scan(&record.RunID, &record.Channel, &record.Recipient, &record.Error, &sentAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		record.SentAt, _ = time.Parse(time.RFC3339Nano, sentAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt, finishedAt string
	err := row.Scan(&run.ID, &run.InputPath, &run.ArtifactPath, &run.ShareLink,
		&run.State, &run.Rating, &run.ContactEmail, &run.Error, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if finishedAt != "" {
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	}
	return &run, nil
}

func (s *Store) updateColumn(ctx context.Context, runID, column, value string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("UPDATE runs SET %s = ? WHERE id = ?", column), value, runID)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	return requireRow(res, runID)
}

func requireRow(res sql.Result, runID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}
