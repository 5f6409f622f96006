package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/luiscanel/service-desk/internal/api/dto"
	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/service"
	apperrors "github.com/luiscanel/service-desk/pkg/util/errorutil"
)

// SlaPoliciesHandler exposes policy management.
type SlaPoliciesHandler struct {
	service *service.SlaPolicyService
}

// NewSlaPoliciesHandler constructs handler.
func NewSlaPoliciesHandler(policyService *service.SlaPolicyService) *SlaPoliciesHandler {
	return &SlaPoliciesHandler{service: policyService}
}

// List GET /sla/policies.
func (h *SlaPoliciesHandler) List(c *fiber.Ctx) error {
	policies, err := h.service.ListPolicies(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.SlaPolicyResponse, 0, len(policies))
	for i := range policies {
		resp = append(resp, policyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Get GET /sla/policies/:id.
func (h *SlaPoliciesHandler) Get(c *fiber.Ctx) error {
	id, err := resourceID(c, "sla policy")
	if err != nil {
		return err
	}
	policy, err := h.service.GetPolicy(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policyResponse(policy)})
}

// Create POST /sla/policies.
func (h *SlaPoliciesHandler) Create(c *fiber.Ctx) error {
	var req dto.SlaPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	policy, err := h.service.CreatePolicy(c.UserContext(), service.SlaPolicyInput{
		Name:                req.Name,
		Description:         req.Description,
		Priority:            req.Priority,
		ResponseTimeHours:   req.ResponseTimeHours,
		ResolutionTimeHours: req.ResolutionTimeHours,
		IsActive:            req.IsActive,
		NotifyOnBreach:      req.NotifyOnBreach,
		EscalationEmail:     req.EscalationEmail,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": policyResponse(policy)})
}

// Update PUT /sla/policies/:id.
func (h *SlaPoliciesHandler) Update(c *fiber.Ctx) error {
	var req dto.SlaPolicyUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	id, err := resourceID(c, "sla policy")
	if err != nil {
		return err
	}
	policy, err := h.service.UpdatePolicy(c.UserContext(), id, service.SlaPolicyPatch{
		Name:                req.Name,
		Description:         req.Description,
		Priority:            req.Priority,
		ResponseTimeHours:   req.ResponseTimeHours,
		ResolutionTimeHours: req.ResolutionTimeHours,
		IsActive:            req.IsActive,
		NotifyOnBreach:      req.NotifyOnBreach,
		EscalationEmail:     req.EscalationEmail,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policyResponse(policy)})
}

// Delete DELETE /sla/policies/:id.
func (h *SlaPoliciesHandler) Delete(c *fiber.Ctx) error {
	id, err := resourceID(c, "sla policy")
	if err != nil {
		return err
	}
	if err := h.service.DeletePolicy(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func policyResponse(policy *domain.SlaPolicy) dto.SlaPolicyResponse {
	return dto.SlaPolicyResponse{
		ID:                  policy.ID,
		Name:                policy.Name,
		Description:         policy.Description,
		Priority:            policy.Priority,
		ResponseTimeHours:   policy.ResponseTimeHours,
		ResolutionTimeHours: policy.ResolutionTimeHours,
		IsActive:            policy.IsActive,
		NotifyOnBreach:      policy.NotifyOnBreach,
		EscalationEmail:     policy.EscalationEmail,
		CreatedAt:           policy.CreatedAt,
		UpdatedAt:           policy.UpdatedAt,
	}
}
