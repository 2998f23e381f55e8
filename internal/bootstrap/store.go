package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/askew/internal/config"
	"github.com/spec-kit/askew/internal/domain"
	"github.com/spec-kit/askew/internal/persistence"
	"github.com/spec-kit/askew/internal/repository"
)

// NewRecordRepository selects the store backend named by cfg.Store.Driver.
// Nothing is dialed until the repository is connected.
func NewRecordRepository(cfg *config.Config, schema domain.Schema, logger *zap.Logger) (repository.RecordRepository, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return repository.NewPostgresRecordRepository(schema, cfg.Store.DBName, cfg.Postgres, logger), nil
	case config.DriverRedis:
		client := persistence.NewRedis(cfg.Redis, logger)
		return repository.NewRedisRecordRepository(schema, cfg.Store.DBName, client, logger), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
