package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/luiscanel/service-desk/pkg/util/errorutil"
)

// resourceID reads the :id path parameter. Ids are UUIDs, so anything else
// cannot name an existing row.
func resourceID(c *fiber.Ctx, resource string) (string, error) {
	raw := c.Params("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperrors.NewNotFound(resource, map[string]any{"id": raw})
	}
	return id.String(), nil
}
