package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/askew/internal/gateway"
	apperrors "github.com/spec-kit/askew/pkg/util/errorutil"
)

// DashboardHandler serves the gateway's aggregated view.
type DashboardHandler struct {
	dashboard *gateway.Dashboard
}

// NewDashboardHandler wires the dashboard.
func NewDashboardHandler(dashboard *gateway.Dashboard) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Health handles GET /health of the gateway itself.
func (h *DashboardHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"service": "gateway", "status": "ok"})
}

// View handles GET /api/dashboard.
func (h *DashboardHandler) View(c *fiber.Ctx) error {
	return c.JSON(h.dashboard.Snapshot())
}

// Refresh handles POST /api/dashboard/refresh.
func (h *DashboardHandler) Refresh(c *fiber.Ctx) error {
	view, err := h.dashboard.RefreshAll(c.UserContext())
	return respondView(c, view, err)
}

// CreateUser handles POST /api/dashboard/users.
func (h *DashboardHandler) CreateUser(c *fiber.Ctx) error {
	var form gateway.UserForm
	if err := c.BodyParser(&form); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.dashboard.CreateUser(c.UserContext(), form)
	return respondView(c, view, err)
}

// CreateProject handles POST /api/dashboard/projects.
func (h *DashboardHandler) CreateProject(c *fiber.Ctx) error {
	var form gateway.ProjectForm
	if err := c.BodyParser(&form); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.dashboard.CreateProject(c.UserContext(), form)
	return respondView(c, view, err)
}

// respondView always renders the view; a failure only changes the status.
// Upstream client errors keep their status, everything else is a 502.
func respondView(c *fiber.Ctx, view gateway.View, err error) error {
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
		var upstreamErr *gateway.UpstreamError
		if errors.As(err, &upstreamErr) && upstreamErr.Status >= 400 && upstreamErr.Status < 500 {
			status = upstreamErr.Status
		}
	}
	return c.Status(status).JSON(view)
}
