package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/askew/internal/config"
	"github.com/spec-kit/askew/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"APP_NAME", "PORT", "APP_PORT", "STORE_DRIVER", "REDIS_DB", "HTTP_REQUEST_TIMEOUT_SECONDS"} {
		t.Setenv(key, "")
	}
}

func TestGatewayHasNoRequestDeadline(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(gatewayDefaults("3000"))
	require.NoError(t, err)
	assert.Equal(t, "gateway", cfg.App.Name)
	assert.Equal(t, "3000", cfg.App.Port)
	assert.Zero(t, cfg.App.RequestTimeout())
}

func TestResourceServicesKeepRequestDeadline(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(resourceDefaults(domain.ProjectsSchema, "3002"))
	require.NoError(t, err)
	assert.Equal(t, "projects-service", cfg.App.Name)
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
}
