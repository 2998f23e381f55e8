package observability

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeaderRequestID carries the request id between the gateway and the services.
const HeaderRequestID = "X-Request-Id"

const requestIDLocal = "request_id"

type requestIDKey struct{}

// ContextWithRequestID stores a request id on ctx.
func ContextWithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// RequestIDFromContext extracts the request id stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// RequestID ensures every request has a stable id: the incoming X-Request-Id
// header when present, a fresh UUID otherwise. The id is echoed on the response
// and stored on the user context.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := strings.Clone(strings.TrimSpace(c.Get(HeaderRequestID)))
		if rid == "" {
			rid = uuid.NewString()
			c.Request().Header.Set(HeaderRequestID, rid)
		}
		c.Locals(requestIDLocal, rid)
		c.SetUserContext(ContextWithRequestID(c.UserContext(), rid))
		c.Set(HeaderRequestID, rid)
		return c.Next()
	}
}

// RequestIDFrom returns the id assigned by RequestID, if any.
func RequestIDFrom(c *fiber.Ctx) string {
	if rid, ok := c.Locals(requestIDLocal).(string); ok {
		return rid
	}
	return ""
}

// RequestLogger logs each request and feeds the request metrics.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		route := c.Route().Path
		if route == "" {
			route = c.Path()
		}
		metrics.RecordRequest(route, c.Method(), status, latency)

		logger.Info("request",
			zap.String("request_id", RequestIDFrom(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		)
		return err
	}
}
