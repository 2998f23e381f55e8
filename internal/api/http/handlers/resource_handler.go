package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/askew/internal/service"
	apperrors "github.com/spec-kit/askew/pkg/util/errorutil"
)

// ResourceHandler exposes list and create endpoints of one collection.
type ResourceHandler struct {
	service *service.ResourceService
}

// NewResourceHandler constructs handler.
func NewResourceHandler(svc *service.ResourceService) *ResourceHandler {
	return &ResourceHandler{service: svc}
}

// List handles GET /<collection>.
func (h *ResourceHandler) List(c *fiber.Ctx) error {
	records, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(records)
}

// Create handles POST /<collection>.
func (h *ResourceHandler) Create(c *fiber.Ctx) error {
	input, err := decodeObject(c)
	if err != nil {
		return err
	}

	record, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(record)
}

// decodeObject reads a JSON object body. Empty and non-JSON bodies decode to
// an empty object so that validation reports the missing fields.
func decodeObject(c *fiber.Ctx) (map[string]any, error) {
	input := map[string]any{}
	if len(c.Body()) == 0 || !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationJSON) {
		return input, nil
	}
	if err := c.BodyParser(&input); err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}
