package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// PostgresConfig configures the PostgreSQL record store. Empty fields fall
// back to the standard PG* environment variables.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSL      bool

	// Retention is how long task records stay readable. <= 0 disables
	// expiry.
	Retention time.Duration
}

// PostgresStore implements RecordStore using PostgreSQL, for deployments
// where multiple engine processes share one durable store.
type PostgresStore struct {
	db        *sql.DB
	retention time.Duration
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func buildConnectionString(config PostgresConfig) string {
	if config.Host == "" {
		config.Host = getEnvOrDefault("PGHOST", "localhost")
	}
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.User == "" {
		config.User = getEnvOrDefault("PGUSER", "postgres")
	}
	if config.Password == "" {
		config.Password = os.Getenv("PGPASSWORD")
	}
	if config.Database == "" {
		config.Database = os.Getenv("PGDATABASE")
	}

	sslMode := "disable"
	if config.SSL {
		sslMode = "require"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Database, sslMode,
	)
	if config.Password != "" {
		connStr += fmt.Sprintf(" password=%s", config.Password)
	}
	return connStr
}

// NewPostgresStore connects to PostgreSQL and prepares the schema.
func NewPostgresStore(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", buildConnectionString(config))
	if err != nil {
		return nil, fmt.Errorf("record store init: failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("record store init: failed to reach postgres: %w", err)
	}

	s := &PostgresStore{db: db, retention: config.Retention}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS aiengine_records (
			kind TEXT NOT NULL,
			task_id TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (kind, task_id)
		);

		CREATE INDEX IF NOT EXISTS idx_aiengine_records_created ON aiengine_records(created_at);

		CREATE TABLE IF NOT EXISTS aiengine_adaptation_states (
			domain TEXT NOT NULL,
			version BIGINT NOT NULL,
			version_id TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (domain, version)
		);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("record store init: failed to create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) putRecord(ctx context.Context, kind, taskID string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("record store: failed to serialize %s record: %w", kind, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO aiengine_records (kind, task_id, payload, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (kind, task_id) DO UPDATE SET payload = $3, created_at = $4`,
		kind, taskID, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record store: failed to write %s record: %w", kind, err)
	}
	return nil
}

func (s *PostgresStore) getRecord(ctx context.Context, kind, taskID string, out any) error {
	var payload []byte
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at FROM aiengine_records WHERE kind = $1 AND task_id = $2`,
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
func (s *PostgresStore) PutPrediction(ctx context.Context, prediction *shared.Prediction) error {
	return s.putRecord(ctx, "prediction", prediction.TaskID, prediction)
}

// GetPrediction implements RecordStore.
func (s *PostgresStore) GetPrediction(ctx context.Context, taskID string) (*shared.Prediction, error) {
	var prediction shared.Prediction
	if err := s.getRecord(ctx, "prediction", taskID, &prediction); err != nil {
		return nil, err
	}
	return &prediction, nil
}

// PutExplanation implements RecordStore.
func (s *PostgresStore) PutExplanation(ctx context.Context, explanation *shared.Explanation) error {
	return s.putRecord(ctx, "explanation", explanation.TaskID, explanation)
}

// GetExplanation implements RecordStore.
func (s *PostgresStore) GetExplanation(ctx context.Context, taskID string) (*shared.Explanation, error) {
	var explanation shared.Explanation
	if err := s.getRecord(ctx, "explanation", taskID, &explanation); err != nil {
		return nil, err
	}
	return &explanation, nil
}

// PutSnapshot implements RecordStore.
func (s *PostgresStore) PutSnapshot(ctx context.Context, snapshot *shared.ActivationSnapshot) error {
	return s.putRecord(ctx, "snapshot", snapshot.TaskID, snapshot)
}

// GetSnapshot implements RecordStore.
func (s *PostgresStore) GetSnapshot(ctx context.Context, taskID string) (*shared.ActivationSnapshot, error) {
	var snapshot shared.ActivationSnapshot
	if err := s.getRecord(ctx, "snapshot", taskID, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// PutState implements RecordStore.
func (s *PostgresStore) PutState(ctx context.Context, state *adaptation.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("record store: failed to serialize adaptation state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO aiengine_adaptation_states (domain, version, version_id, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (domain, version) DO NOTHING`,
		string(state.Domain), state.Version, state.VersionID, payload, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record store: failed to write adaptation state: %w", err)
	}
	return nil
}

// LatestState implements RecordStore.
func (s *PostgresStore) LatestState(ctx context.Context, domain shared.DomainType) (*adaptation.State, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM aiengine_adaptation_states WHERE domain = $1 ORDER BY version DESC LIMIT 1`,
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
