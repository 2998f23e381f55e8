package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/askew/internal/config"
	"github.com/spec-kit/askew/internal/domain"
	"github.com/spec-kit/askew/internal/persistence"
)

const pgUniqueViolation = "23505"

// Querier is the part of a pgx pool the repository runs its statements on.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type pgHandle struct {
	Querier
}

type postgresRecordRepository struct {
	schema    domain.Schema
	namespace string
	table     string
	cfg       config.PostgresConfig
	logger    *zap.Logger
	now       func() time.Time

	db atomic.Pointer[pgHandle]
}

// NewPostgresRecordRepository returns a repository storing documents as JSONB
// rows of a table named after the collection inside the namespace schema.
func NewPostgresRecordRepository(schema domain.Schema, namespace string, cfg config.PostgresConfig, logger *zap.Logger) RecordRepository {
	return &postgresRecordRepository{
		schema:    schema,
		namespace: namespace,
		table:     persistence.CollectionTable(namespace, schema),
		cfg:       cfg,
		logger:    logger.With(zap.String("collection", schema.Collection)),
		now:       time.Now,
	}
}

func (r *postgresRecordRepository) Connect(ctx context.Context) error {
	pg, err := persistence.NewPostgres(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	migrations := persistence.CollectionMigrations(r.namespace, r.schema)
	if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrations, r.logger); err != nil {
		pg.Close()
		return err
	}
	r.use(pg.PoolHandle())
	return nil
}

// use makes the repository run its statements on db.
func (r *postgresRecordRepository) use(db Querier) {
	r.db.Store(&pgHandle{Querier: db})
}

func (r *postgresRecordRepository) Ping(ctx context.Context) error {
	db := r.db.Load()
	if db == nil {
		return ErrStoreUnavailable
	}
	return db.Ping(ctx)
}

func (r *postgresRecordRepository) List(ctx context.Context, limit int) ([]domain.Document, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrStoreUnavailable
	}

	query := fmt.Sprintf(`
        SELECT id::text, fields, created_at, updated_at
        FROM %s ORDER BY seq DESC LIMIT $1`, r.table)

	rows, err := db.Query(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.Fields, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *postgresRecordRepository) Insert(ctx context.Context, fields map[string]string) (domain.Document, error) {
	db := r.db.Load()
	if db == nil {
		return domain.Document{}, ErrStoreUnavailable
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (fields, created_at, updated_at)
        VALUES ($1, $2, $2)
        RETURNING id::text, fields, created_at, updated_at`, r.table)

	var doc domain.Document
	err := db.QueryRow(ctx, query, fields, domain.StoreTime(r.now())).
		Scan(&doc.ID, &doc.Fields, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return domain.Document{}, r.mapError(err)
	}
	return doc, nil
}

func (r *postgresRecordRepository) Close() {
	if db := r.db.Load(); db != nil {
		db.Close()
	}
}

func (r *postgresRecordRepository) mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &ConstraintError{Field: r.constraintField(pgErr.ConstraintName), Err: err}
	}
	return err
}

// constraintField recovers the field name from an index named <collection>_<field>_key.
func (r *postgresRecordRepository) constraintField(constraint string) string {
	for _, f := range r.schema.UniqueFields() {
		if constraint == fmt.Sprintf("%s_%s_key", r.schema.Collection, strings.ToLower(f)) {
			return f
		}
	}
	return ""
}
