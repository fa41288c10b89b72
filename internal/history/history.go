package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ydb-platform/ydb-go-sdk/v3"
	"github.com/ydb-platform/ydb-go-sdk/v3/table"
	"github.com/ydb-platform/ydb-go-sdk/v3/table/result/named"
	"github.com/ydb-platform/ydb-go-sdk/v3/table/types"
	"go.uber.org/zap"
)

// Config holds the YDB connection settings for the summary history store.
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Endpoint is a YDB connection string, e.g. grpc://localhost:2136/local.
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// Table is the history table name inside the database.
	Table string `json:"table" yaml:"table" mapstructure:"table"`

	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`
}

// DefaultConfig returns a disabled history store pointed at a local YDB.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		Endpoint:       "grpc://localhost:2136/local",
		Table:          "summary_history",
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 15 * time.Second,
	}
}

// Snapshot is one recorded summary state.
type Snapshot struct {
	Object     string          `json:"object"`
	Key        string          `json:"key"`
	RecordedAt time.Time       `json:"recorded_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Store keeps time-stamped copies of summaries in YDB so that utilization
// trends survive summary overwrites in the coordination store.
type Store struct {
	driver  *ydb.Driver
	table   string
	timeout time.Duration
	logger  *zap.Logger
}

// New connects to YDB and ensures the history table exists. It returns a nil
// store without error when history is disabled.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("history endpoint is required")
	}
	if cfg.Table == "" {
		cfg.Table = "summary_history"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	driver, err := ydb.Open(connectCtx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to YDB at %s: %w", cfg.Endpoint, err)
	}

	s := &Store{
		driver:  driver,
		table:   cfg.Table,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}

	if err := s.ensureTable(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	logger.Info("summary history store ready",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("table", cfg.Table),
	)
	return s, nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			object Utf8,
			key Utf8,
			recorded_at Timestamp,
			payload Json,
			PRIMARY KEY (object, key, recorded_at)
		)`, s.table)

	err := s.driver.Table().Do(ctx, func(ctx context.Context, session table.Session) error {
		return session.ExecuteSchemeQuery(ctx, stmt)
	})
	if err != nil {
		return fmt.Errorf("failed to create history table %s: %w", s.table, err)
	}
	return nil
}

// Record stores one snapshot of a summary object. The payload must be
// JSON-serializable.
func (s *Store) Record(ctx context.Context, object, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal history payload for %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		DECLARE $object AS Utf8;
		DECLARE $key AS Utf8;
		DECLARE $recorded_at AS Timestamp;
		DECLARE $payload AS Json;
		UPSERT INTO %s (object, key, recorded_at, payload)
		VALUES ($object, $key, $recorded_at, $payload)`, s.table)

	params := table.NewQueryParameters(
		table.ValueParam("$object", types.UTF8Value(object)),
		table.ValueParam("$key", types.UTF8Value(key)),
		table.ValueParam("$recorded_at", types.TimestampValueFromTime(time.Now().UTC())),
		table.ValueParam("$payload", types.JSONValueFromBytes(data)),
	)

	err = s.driver.Table().Do(ctx, func(ctx context.Context, session table.Session) error {
		_, _, err := session.Execute(ctx, table.DefaultTxControl(), query, params)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record history for %s: %w", key, err)
	}
	return nil
}

// Recent returns up to limit snapshots of the given summary key, most recent
// first.
func (s *Store) Recent(ctx context.Context, object, key string, limit uint64) ([]Snapshot, error) {
	if limit == 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		DECLARE $object AS Utf8;
		DECLARE $key AS Utf8;
		DECLARE $limit AS Uint64;
		SELECT object, key, recorded_at, payload
		FROM %s
		WHERE object = $object AND key = $key
		ORDER BY recorded_at DESC
		LIMIT $limit`, s.table)

	params := table.NewQueryParameters(
		table.ValueParam("$object", types.UTF8Value(object)),
		table.ValueParam("$key", types.UTF8Value(key)),
		table.ValueParam("$limit", types.Uint64Value(limit)),
	)

	var snapshots []Snapshot
	err := s.driver.Table().Do(ctx, func(ctx context.Context, session table.Session) error {
		_, res, err := session.Execute(ctx, table.DefaultTxControl(), query, params)
		if err != nil {
			return err
		}
		defer res.Close()

		snapshots = snapshots[:0]
		for res.NextResultSet(ctx) {
			for res.NextRow() {
				var (
					snap    Snapshot
					payload string
				)
				if err := res.ScanNamed(
					named.OptionalWithDefault("object", &snap.Object),
					named.OptionalWithDefault("key", &snap.Key),
					named.OptionalWithDefault("recorded_at", &snap.RecordedAt),
					named.OptionalWithDefault("payload", &payload),
				); err != nil {
					return err
				}
				snap.Payload = json.RawMessage(payload)
				snapshots = append(snapshots, snap)
			}
		}
		return res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", key, err)
	}
	return snapshots, nil
}

// Close releases the YDB driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
