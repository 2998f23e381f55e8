package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/askew/internal/domain"
)

// Migration is one idempotent DDL statement.
type Migration struct {
	Name string
	SQL  string
}

// Execer is the subset of pgxpool.Pool used to apply migrations.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// CollectionTable returns the sanitized, schema-qualified table name of a collection.
func CollectionTable(namespace string, schema domain.Schema) string {
	return pgx.Identifier{namespace, schema.Collection}.Sanitize()
}

// CollectionMigrations returns the statements that create the namespace, the
// collection table and one unique expression index per unique field.
func CollectionMigrations(namespace string, schema domain.Schema) []Migration {
	table := CollectionTable(namespace, schema)
	migrations := []Migration{
		{
			Name: "create_schema_" + namespace,
			SQL:  fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{namespace}.Sanitize()),
		},
		{
			Name: "create_table_" + schema.Collection,
			SQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    seq BIGSERIAL PRIMARY KEY,
    id UUID NOT NULL UNIQUE DEFAULT gen_random_uuid(),
    fields JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`, table),
		},
	}

	for _, field := range schema.UniqueFields() {
		index := fmt.Sprintf("%s_%s_key", schema.Collection, strings.ToLower(field))
		migrations = append(migrations, Migration{
			Name: "create_index_" + index,
			SQL: fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ((fields->>%s))",
				pgx.Identifier{index}.Sanitize(), table, quoteLiteral(field)),
		})
	}
	return migrations
}

// RunMigrations applies the migrations in order.
func RunMigrations(ctx context.Context, db Execer, migrations []Migration, logger *zap.Logger) error {
	if db == nil {
		return fmt.Errorf("no postgres pool available")
	}

	for _, m := range migrations {
		logger.Debug("applying migration", zap.String("name", m.Name))
		if _, err := db.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}

	logger.Info("migrations applied", zap.Int("count", len(migrations)))
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
