package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// SQLiteConfig configures the SQLite record store.
type SQLiteConfig struct {
	// DatabasePath is the SQLite file path; ":memory:" for ephemeral.
	DatabasePath string

	// Retention is how long prediction/explanation/snapshot records stay
	// readable. <= 0 disables expiry.
	Retention time.Duration
}

// SQLiteStore implements RecordStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	retention time.Duration
}

// NewSQLiteStore creates a SQLite record store.
func NewSQLiteStore(config SQLiteConfig) (*SQLiteStore, error) {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = ".data/aiengine.db"
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("record store init: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("record store init: failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, retention: config.Retention}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			kind TEXT NOT NULL,
			task_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (kind, task_id)
		);

		CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);

		CREATE TABLE IF NOT EXISTS adaptation_states (
			domain TEXT NOT NULL,
			version INTEGER NOT NULL,
			version_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (domain, version)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("record store init: failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) putRecord(ctx context.Context, kind, taskID string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("record store: failed to serialize %s record: %w", kind, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records (kind, task_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		kind, taskID, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record store: failed to write %s record: %w", kind, err)
	}
	return nil
}

func (s *SQLiteStore) getRecord(ctx context.Context, kind, taskID string, out any) error {
	var payload []byte
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at FROM records WHERE kind = ? AND task_id = ?`,
		kind, taskID).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return shared.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("record store: failed to read %s record: %w", kind, err)
	}

	if s.retention > 0 && time.Since(time.UnixMilli(createdAt)) > s.retention {
		return shared.ErrRecordNotFound
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("record store: failed to deserialize %s record: %w", kind, err)
	}
	return nil
}

// PutPrediction implements RecordStore.
func (s *SQLiteStore) PutPrediction(ctx context.Context, prediction *shared.Prediction) error {
	return s.putRecord(ctx, "prediction", prediction.TaskID, prediction)
}

// GetPrediction implements RecordStore.
func (s *SQLiteStore) GetPrediction(ctx context.Context, taskID string) (*shared.Prediction, error) {
	var prediction shared.Prediction
	if err := s.getRecord(ctx, "prediction", taskID, &prediction); err != nil {
		return nil, err
	}
	return &prediction, nil
}

// PutExplanation implements RecordStore.
func (s *SQLiteStore) PutExplanation(ctx context.Context, explanation *shared.Explanation) error {
	return s.putRecord(ctx, "explanation", explanation.TaskID, explanation)
}

// GetExplanation implements RecordStore.
func (s *SQLiteStore) GetExplanation(ctx context.Context, taskID string) (*shared.Explanation, error) {
	var explanation shared.Explanation
	if err := s.getRecord(ctx, "explanation", taskID, &explanation); err != nil {
		return nil, err
	}
	return &explanation, nil
}

// PutSnapshot implements RecordStore.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, snapshot *shared.ActivationSnapshot) error {
	return s.putRecord(ctx, "snapshot", snapshot.TaskID, snapshot)
}

// GetSnapshot implements RecordStore.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, taskID string) (*shared.ActivationSnapshot, error) {
	var snapshot shared.ActivationSnapshot
	if err := s.getRecord(ctx, "snapshot", taskID, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// PutState implements RecordStore. Every version is kept; LatestState
// reads the highest.
func (s *SQLiteStore) PutState(ctx context.Context, state *adaptation.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("record store: failed to serialize adaptation state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO adaptation_states (domain, version, version_id, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(state.Domain), state.Version, state.VersionID, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record store: failed to write adaptation state: %w", err)
	}
	return nil
}

// LatestState implements RecordStore.
func (s *SQLiteStore) LatestState(ctx context.Context, domain shared.DomainType) (*adaptation.State, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM adaptation_states WHERE domain = ? ORDER BY version DESC LIMIT 1`,
		string(domain)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("record store: failed to read adaptation state: %w", err)
	}

	var state adaptation.State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("record store: failed to deserialize adaptation state: %w", err)
	}
	return &state, nil
}

// Close implements RecordStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
