package invoice

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ishantai95/invoicebot/internal/session"
)

const statsQuery = `
SELECT
    COUNT(*) AS total_invoice,
    COALESCE(SUM("totalAmount"), 0) AS total_amount,
    COALESCE(MIN("issueDate")::text, '') AS first_invoice,
    COALESCE(MAX("issueDate")::text, '') AS last_invoice,
    COALESCE(STRING_AGG(DISTINCT status, ', '), '') AS statuses,
    COALESCE(STRING_AGG(DISTINCT currency, ', '), '') AS currencies
FROM invoice
WHERE "customerName" = $1`

// PostgresStore executes invoice lookups and generated queries against
// PostgreSQL through the pgx stdlib driver.
type PostgresStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	QueryTimeout time.Duration
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("invoice store dsn is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open invoice db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping invoice db: %w", err)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PostgresStore{db: db, queryTimeout: timeout}, nil
}

// NewPostgresStoreWithDB wraps an existing handle. Used by tests.
func NewPostgresStoreWithDB(db *sql.DB, queryTimeout time.Duration) *PostgresStore {
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &PostgresStore{db: db, queryTimeout: queryTimeout}
}

func (s *PostgresStore) CustomerExists(ctx context.Context, customerName string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoice WHERE "customerName" = $1`,
		customerName,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check customer exists: %w", err)
	}
	return count > 0, nil
}

func (s *PostgresStore) CustomerStats(ctx context.Context, customerName string) (session.ProfileStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var stats session.ProfileStats
	err := s.db.QueryRowContext(ctx, statsQuery, customerName).Scan(
		&stats.TotalInvoices,
		&stats.TotalAmount,
		&stats.FirstInvoice,
		&stats.LastInvoice,
		&stats.Statuses,
		&stats.Currencies,
	)
	if err != nil {
		return session.ProfileStats{}, fmt.Errorf("query customer stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) Execute(ctx context.Context, query string) (QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return QueryResult{}, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return QueryResult{}, fmt.Errorf("read result columns: %w", err)
	}

	result := QueryResult{SQL: query, Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return QueryResult{}, fmt.Errorf("scan result row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("iterate result rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// normalizeValue maps driver types to JSON-friendly values so rows can be
// serialized for the response composer and the API payload.
func normalizeValue(v any) any {
	switch value := v.(type) {
	case []byte:
		return string(value)
	case time.Time:
		return value.Format(time.RFC3339)
	default:
		return v
	}
}
