package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/askew/internal/domain"
)

type recordingExecer struct {
	statements []string
	failOn     int
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	if r.failOn > 0 && len(r.statements) == r.failOn {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	return pgconn.NewCommandTag("OK"), nil
}

func TestCollectionMigrationsUsers(t *testing.T) {
	migrations := CollectionMigrations("askew", domain.UsersSchema)
	require.Len(t, migrations, 3)

	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "askew"`, migrations[0].SQL)
	assert.Contains(t, migrations[1].SQL, `CREATE TABLE IF NOT EXISTS "askew"."users"`)
	assert.Contains(t, migrations[1].SQL, "seq BIGSERIAL PRIMARY KEY")
	assert.Equal(t,
		`CREATE UNIQUE INDEX IF NOT EXISTS "users_email_key" ON "askew"."users" ((fields->>'email'))`,
		migrations[2].SQL)
}

func TestCollectionMigrationsProjectsHasNoIndex(t *testing.T) {
	migrations := CollectionMigrations("askew", domain.ProjectsSchema)
	assert.Len(t, migrations, 2)
	assert.Equal(t, `"askew"."projects"`, CollectionTable("askew", domain.ProjectsSchema))
}

func TestRunMigrations(t *testing.T) {
	logger := zap.NewNop()
	migrations := CollectionMigrations("askew", domain.UsersSchema)

	t.Run("applies in order", func(t *testing.T) {
		db := &recordingExecer{}
		require.NoError(t, RunMigrations(context.Background(), db, migrations, logger))
		require.Len(t, db.statements, len(migrations))
		for i, m := range migrations {
			assert.Equal(t, m.SQL, db.statements[i])
		}
	})

	t.Run("stops at first failure", func(t *testing.T) {
		db := &recordingExecer{failOn: 2}
		err := RunMigrations(context.Background(), db, migrations, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), migrations[1].Name)
		assert.Len(t, db.statements, 2)
	})

	t.Run("nil pool", func(t *testing.T) {
		assert.Error(t, RunMigrations(context.Background(), nil, migrations, logger))
	})
}
