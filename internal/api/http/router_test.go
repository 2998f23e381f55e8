package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/askew/internal/api/http/handlers"
	"github.com/spec-kit/askew/internal/config"
	"github.com/spec-kit/askew/internal/domain"
	"github.com/spec-kit/askew/internal/gateway"
	"github.com/spec-kit/askew/internal/observability"
	"github.com/spec-kit/askew/internal/persistence"
	"github.com/spec-kit/askew/internal/repository"
	"github.com/spec-kit/askew/internal/service"
)

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newResourceApp(t *testing.T, schema domain.Schema) (*fiber.App, *service.ResourceService) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := persistence.NewRedis(config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	repo := repository.NewRedisRecordRepository(schema, "test", client, zap.NewNop())
	t.Cleanup(repo.Close)

	metrics := observability.NewMetrics(schema.Service)
	svc := service.NewResourceService(schema, service.ResourceDependencies{Repo: repo, Metrics: metrics})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Path:     schema.Path(),
		Health:   handlers.NewHealthHandler("test", svc),
		Resource: handlers.NewResourceHandler(svc),
		Metrics:  metrics,
	})
	return app, svc
}

func send(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decodeError(t *testing.T, raw []byte) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestResourceServiceBeforeStart(t *testing.T) {
	app, _ := newResourceApp(t, domain.UsersSchema)

	status, raw := send(t, app, fiber.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"service":"users-service","status":"starting"}`, string(raw))

	status, raw = send(t, app, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", decodeError(t, raw).Error.Code)

	status, raw = send(t, app, fiber.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "STORE_UNAVAILABLE", decodeError(t, raw).Error.Code)

	status, _ = send(t, app, fiber.MethodGet, "/users", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestUsersEndpoints(t *testing.T) {
	app, svc := newResourceApp(t, domain.UsersSchema)
	require.NoError(t, svc.Start(context.Background()))

	status, raw := send(t, app, fiber.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"service":"users-service","status":"ok"}`, string(raw))

	status, _ = send(t, app, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, raw = send(t, app, fiber.MethodGet, "/users", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "[]", string(raw))

	status, raw = send(t, app, fiber.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com","role":"ignored"}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Regexp(t, `^\{"id":"[^"]+","name":"Ada","email":"ada@example.com","createdAt":"\d{4}-\d\d-\d\dT\d\d:\d\d:\d\d\.\d{3}Z","updatedAt":"[^"]+"\}$`, string(raw))

	status, raw = send(t, app, fiber.MethodPost, "/users", `{"name":"Other","email":"ada@example.com"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	conflict := decodeError(t, raw)
	assert.Equal(t, "CONFLICT", conflict.Error.Code)
	assert.Equal(t, "email already exists", conflict.Error.Message)

	status, raw = send(t, app, fiber.MethodPost, "/users", `{"name":"Bob"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "name and email are required", decodeError(t, raw).Error.Message)

	status, raw = send(t, app, fiber.MethodPost, "/users", `{"name":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid payload", decodeError(t, raw).Error.Message)

	status, raw = send(t, app, fiber.MethodPost, "/users", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", decodeError(t, raw).Error.Code)

	status, raw = send(t, app, fiber.MethodGet, "/users", "")
	assert.Equal(t, fiber.StatusOK, status)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Ada", list[0]["name"])
	assert.NotContains(t, list[0], "role")
}

func TestProjectsEndpointDefaults(t *testing.T) {
	app, svc := newResourceApp(t, domain.ProjectsSchema)
	require.NoError(t, svc.Start(context.Background()))

	status, raw := send(t, app, fiber.MethodPost, "/projects", `{"name":"X"}`)
	require.Equal(t, fiber.StatusCreated, status)
	var created map[string]any
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Contains(t, created, "ownerEmail")
	assert.Nil(t, created["ownerEmail"])
	assert.Equal(t, "active", created["status"])

	for _, body := range []string{`{"name":"Y","status":"archived"}`, `{"name":"Z","status":42}`} {
		status, raw = send(t, app, fiber.MethodPost, "/projects", body)
		require.Equal(t, fiber.StatusCreated, status, string(raw))
		require.NoError(t, json.Unmarshal(raw, &created))
		assert.Equal(t, "active", created["status"])
	}

	status, raw = send(t, app, fiber.MethodGet, "/projects", "")
	require.Equal(t, fiber.StatusOK, status)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 3)
	for _, project := range list {
		assert.Equal(t, "active", project["status"])
	}

	status, raw = send(t, app, fiber.MethodPost, "/projects", `{"ownerEmail":"a@example.com"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "name is required", decodeError(t, raw).Error.Message)
}

func TestRequestIDAndMetrics(t *testing.T) {
	app, _ := newResourceApp(t, domain.UsersSchema)

	req := httptest.NewRequest(fiber.MethodGet, "/health", nil)
	req.Header.Set(observability.HeaderRequestID, "rid-7")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "rid-7", resp.Header.Get(observability.HeaderRequestID))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get(observability.HeaderRequestID))

	status, raw := send(t, app, fiber.MethodGet, "/metrics", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "askew_http_requests_total")
	assert.Contains(t, string(raw), `path="/health"`)
}

func TestUnknownRouteRendersErrorBody(t *testing.T) {
	app, _ := newResourceApp(t, domain.UsersSchema)

	status, raw := send(t, app, fiber.MethodGet, "/nope", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", decodeError(t, raw).Error.Code)
}

func TestGatewayDashboardEndToEnd(t *testing.T) {
	usersApp, usersSvc := newResourceApp(t, domain.UsersSchema)
	projectsApp, projectsSvc := newResourceApp(t, domain.ProjectsSchema)
	require.NoError(t, usersSvc.Start(context.Background()))
	require.NoError(t, projectsSvc.Start(context.Background()))

	usersServer := httptest.NewServer(adaptor.FiberApp(usersApp))
	t.Cleanup(usersServer.Close)
	projectsServer := httptest.NewServer(adaptor.FiberApp(projectsApp))
	t.Cleanup(projectsServer.Close)

	users := gateway.NewServiceClient(gateway.ClientOptions{Name: "users", BaseURL: usersServer.URL, Resource: "/users"})
	projects := gateway.NewServiceClient(gateway.ClientOptions{Name: "projects", BaseURL: projectsServer.URL, Resource: "/projects"})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	RegisterGatewayRoutes(app, GatewayRouteConfig{
		Dashboard: handlers.NewDashboardHandler(gateway.NewDashboard(users, projects)),
		Proxy:     gateway.NewProxy(gateway.DefaultRoutes(usersServer.URL, projectsServer.URL), 0, nil, nil),
	})

	status, raw := send(t, app, fiber.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"service":"gateway","status":"ok"}`, string(raw))

	var view gateway.View
	status, raw = send(t, app, fiber.MethodPost, "/api/dashboard/refresh", "")
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Equal(t, gateway.HealthView{Users: "ok", Projects: "ok"}, view.Health)
	assert.NotNil(t, view.RefreshedAt)

	status, raw = send(t, app, fiber.MethodPost, "/api/dashboard/users", `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Equal(t, 1, view.Totals.Users)
	assert.Equal(t, gateway.UserForm{}, view.UserForm)

	status, raw = send(t, app, fiber.MethodPost, "/api/dashboard/users", `{"name":"Eve","email":"ada@example.com"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Equal(t, "email already exists", view.Error)
	assert.Equal(t, gateway.UserForm{Name: "Eve", Email: "ada@example.com"}, view.UserForm)
	assert.Equal(t, 1, view.Totals.Users)

	status, raw = send(t, app, fiber.MethodPost, "/api/dashboard/projects", `{"name":"Apollo"}`)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Equal(t, 1, view.Totals.Projects)
	assert.Empty(t, view.Error)

	status, raw = send(t, app, fiber.MethodGet, "/api/users", "")
	assert.Equal(t, fiber.StatusOK, status)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list, 1)

	status, raw = send(t, app, fiber.MethodGet, "/api/project-health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"service":"projects-service","status":"ok"}`, string(raw))

	status, raw = send(t, app, fiber.MethodGet, "/api/dashboard", "")
	assert.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.Equal(t, gateway.Totals{Users: 1, Projects: 1}, view.Totals)
}

func TestGatewayRefreshFailureReturnsBadGateway(t *testing.T) {
	users := gateway.NewServiceClient(gateway.ClientOptions{Name: "users", BaseURL: "http://127.0.0.1:1", Resource: "/users"})
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	RegisterGatewayRoutes(app, GatewayRouteConfig{
		Dashboard: handlers.NewDashboardHandler(gateway.NewDashboard(users, users)),
		Proxy:     gateway.NewProxy(nil, 0, nil, nil),
	})

	status, raw := send(t, app, fiber.MethodPost, "/api/dashboard/refresh", "")
	assert.Equal(t, fiber.StatusBadGateway, status)
	var view gateway.View
	require.NoError(t, json.Unmarshal(raw, &view))
	assert.NotEmpty(t, view.Error)
	assert.Equal(t, gateway.HealthView{Users: gateway.HealthUnknown, Projects: gateway.HealthUnknown}, view.Health)
}
