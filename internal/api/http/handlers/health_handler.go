package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/askew/internal/service"
)

// HealthHandler responds to health, liveness and readiness probes.
type HealthHandler struct {
	version string
	service *service.ResourceService
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(version string, svc *service.ResourceService) *HealthHandler {
	return &HealthHandler{version: version, service: svc}
}

// Health handles GET /health. It never fails: the status is "starting" until
// the store is ready.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(h.service.Health())
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.service.Schema().Service,
		"version": h.version,
	})
}

// Ready reports service readiness by checking the store.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.service.Ready(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "store unavailable",
				"details": fiber.Map{
					"state": h.service.State().String(),
					"store": err.Error(),
				},
			},
		})
	}

	return c.JSON(fiber.Map{
		"status":       "ready",
		"dependencies": fiber.Map{"store": "ok"},
	})
}
