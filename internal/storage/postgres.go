package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/dagwatch/dagwatch/internal/platform/logging"
)

// PostgresStore keeps documents in a single keyed jsonb table. It offers the
// same whole-document semantics as the file store for deployments that want
// the collections in a database instead of on local disk.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logging.Logger
}

func OpenPostgresStore(dsn string, logger *logging.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = logging.Default()
	}

	db, err := otelsqlx.Connect("postgres", dsn, otelsql.WithDBName(dbNameFromDSN(dsn)))
	if err != nil {
		return nil, fmt.Errorf("connect document store: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Read(ctx context.Context, key string, target any) bool {
	var payload []byte
	err := s.db.GetContext(ctx, &payload,
		`SELECT payload FROM documents WHERE key = $1`, key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "read document failed, using fallback", "key", key, "error", err)
		}
		return false
	}

	if err := sonic.Unmarshal(payload, target); err != nil {
		s.logger.WarnContext(ctx, "document is not valid JSON, using fallback", "key", key, "error", err)
		return false
	}
	return true
}

func (s *PostgresStore) Write(ctx context.Context, key string, value any) error {
	raw, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal document %q: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (key, payload, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		key, raw)
	if err != nil {
		return fmt.Errorf("write document %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) LastModified(ctx context.Context, key string) (time.Time, bool) {
	var updatedAt time.Time
	err := s.db.GetContext(ctx, &updatedAt,
		`SELECT updated_at FROM documents WHERE key = $1`, key)
	if err != nil {
		return time.Time{}, false
	}
	return updatedAt.UTC(), true
}

func dbNameFromDSN(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		name := trimmed[idx+1:]
		if q := strings.Index(name, "?"); q >= 0 {
			name = name[:q]
		}
		if name != "" {
			return name
		}
	}
	return "documents"
}
