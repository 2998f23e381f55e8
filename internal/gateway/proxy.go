package gateway

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	"github.com/spec-kit/askew/internal/observability"
	apperrors "github.com/spec-kit/askew/pkg/util/errorutil"
)

// Route forwards every request under Prefix to Target after rewriting the path.
type Route struct {
	Upstream string
	Prefix   string
	Target   string
	Rewrite  func(path string) string
}

// To rewrites any path to a fixed one.
func To(path string) func(string) string {
	return func(string) string { return path }
}

// StripPrefix removes prefix from the incoming path.
func StripPrefix(prefix string) func(string) string {
	return func(path string) string { return strings.TrimPrefix(path, prefix) }
}

// DefaultRoutes is the gateway routing table for the two resource services.
func DefaultRoutes(usersURL, projectsURL string) []Route {
	return []Route{
		{Upstream: "users", Prefix: "/api/user-health", Target: usersURL, Rewrite: To("/health")},
		{Upstream: "projects", Prefix: "/api/project-health", Target: projectsURL, Rewrite: To("/health")},
		{Upstream: "users", Prefix: "/api/users", Target: usersURL, Rewrite: StripPrefix("/api")},
		{Upstream: "projects", Prefix: "/api/projects", Target: projectsURL, Rewrite: StripPrefix("/api")},
	}
}

// Proxy forwards requests to upstream services unchanged apart from the path.
type Proxy struct {
	routes  []Route
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewProxy builds a proxy over routes. A zero timeout leaves it to the transport.
func NewProxy(routes []Route, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{routes: routes, timeout: timeout, metrics: metrics, logger: logger}
}

// Register mounts every route, including its sub-paths, for all methods.
func (p *Proxy) Register(router fiber.Router) {
	for _, route := range p.routes {
		handler := p.handler(route)
		router.All(route.Prefix, handler)
		router.All(route.Prefix+"/*", handler)
	}
}

func (p *Proxy) handler(route Route) fiber.Handler {
	return func(c *fiber.Ctx) error {
		target := TargetURL(route, c.Path(), string(c.Request().URI().QueryString()))

		var err error
		if p.timeout > 0 {
			err = proxy.DoTimeout(c, target, p.timeout)
		} else {
			err = proxy.Do(c, target)
		}
		p.metrics.RecordUpstream(route.Upstream, "proxy", err)
		if err != nil {
			p.logger.Warn("proxy failed",
				zap.String("request_id", observability.RequestIDFrom(c)),
				zap.String("target", target),
				zap.Error(err))
			return apperrors.NewBadGateway(route.Upstream+" service unavailable", err)
		}
		return nil
	}
}

// TargetURL builds the upstream URL for an incoming path and raw query.
func TargetURL(route Route, path, query string) string {
	target := route.Target + route.Rewrite(path)
	if query != "" {
		target += "?" + query
	}
	return target
}
