package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderstack/order-agent/internal/models"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresHistory persists pipeline runs in PostgreSQL.
type PostgresHistory struct {
	pool   pgPool
	table  string
	logger *slog.Logger
}

// PostgresConfig configures the run history database.
type PostgresConfig struct {
	DSN         string
	Table       string
	MaxConns    int32
	ConnectWait time.Duration
}

// NewPostgresHistory connects, verifies the connection and ensures the schema exists.
func NewPostgresHistory(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresHistory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Table == "" {
		cfg.Table = "order_runs"
	}
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid history table name %q", cfg.Table)
	}
	if cfg.ConnectWait <= 0 {
		cfg.ConnectWait = 10 * time.Second
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse history dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectWait)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect history db: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	h := &PostgresHistory{pool: pool, table: cfg.Table, logger: logger}
	if err := h.EnsureSchema(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return h, nil
}

// EnsureSchema creates the history table and index when missing.
func (h *PostgresHistory) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id        TEXT PRIMARY KEY,
			query         TEXT NOT NULL,
			success       BOOLEAN NOT NULL,
			error         TEXT NOT NULL DEFAULT '',
			total_parsed  INTEGER NOT NULL DEFAULT 0,
			total_matched INTEGER NOT NULL DEFAULT 0,
			response      JSONB NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, h.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_created_at_idx ON %s (created_at DESC)`, h.table, h.table),
	}
	for _, stmt := range stmts {
		if _, err := h.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure history schema: %w", err)
		}
	}
	return nil
}

// SaveRun inserts a run record. Re-saving an existing run id is a no-op.
func (h *PostgresHistory) SaveRun(ctx context.Context, rec models.RunRecord) error {
	payload, err := json.Marshal(rec.Response)
	if err != nil {
		return fmt.Errorf("marshal run response: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = h.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (run_id, query, success, error, total_parsed, total_matched, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO NOTHING
	`, h.table), rec.RunID, rec.Query, rec.Success, rec.Error, rec.TotalParsed, rec.TotalMatched, payload, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	return nil
}

// ListRuns returns runs newest first with offset-based pagination.
func (h *PostgresHistory) ListRuns(ctx context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error) {
	limit, offset := pageWindow(req)
	sql, args := buildRunsQuery(h.table, req, limit, offset)

	rows, err := h.pool.Query(ctx, sql, args...)
	if err != nil {
		return models.ListRunsResponse{}, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.RunRecord, 0, limit)
	for rows.Next() {
		var (
			rec     models.RunRecord
			payload []byte
		)
		if err := rows.Scan(&rec.RunID, &rec.Query, &rec.Success, &rec.Error,
			&rec.TotalParsed, &rec.TotalMatched, &payload, &rec.CreatedAt); err != nil {
			return models.ListRunsResponse{}, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.Response); err != nil {
			h.logger.Warn("run response unreadable", slog.String("run_id", rec.RunID), slog.Any("error", err))
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return models.ListRunsResponse{}, fmt.Errorf("iterate runs: %w", err)
	}

	return models.ListRunsResponse{
		Runs:          runs,
		NextPageToken: nextPageToken(offset, limit, len(runs)),
	}, nil
}

// Close releases the connection pool.
func (h *PostgresHistory) Close() {
	if h != nil && h.pool != nil {
		h.pool.Close()
	}
}
