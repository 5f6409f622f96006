package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/repository"
	"github.com/luiscanel/service-desk/internal/sla"
	apperrors "github.com/luiscanel/service-desk/pkg/util/errorutil"
)

// PolicyChangePublisher announces policy mutations to other instances.
type PolicyChangePublisher interface {
	PublishPolicyChange(ctx context.Context, policyID string) error
}

// SlaPolicyService manages SLA policies and keeps the catalog in sync.
type SlaPolicyService struct {
	policies  repository.SlaPolicyRepository
	catalog   *sla.Catalog
	publisher PolicyChangePublisher
	logger    *zap.Logger
}

// SlaPolicyDependencies bundles collaborators for the policy service.
type SlaPolicyDependencies struct {
	PolicyRepo repository.SlaPolicyRepository
	Catalog    *sla.Catalog
	Publisher  PolicyChangePublisher
	Logger     *zap.Logger
}

// SlaPolicyInput describes a policy to create.
type SlaPolicyInput struct {
	Name                string                `yaml:"name"`
	Description         string                `yaml:"description"`
	Priority            domain.TicketPriority `yaml:"priority"`
	ResponseTimeHours   float64               `yaml:"response_time_hours"`
	ResolutionTimeHours float64               `yaml:"resolution_time_hours"`
	IsActive            *bool                 `yaml:"is_active"`
	NotifyOnBreach      *bool                 `yaml:"notify_on_breach"`
	EscalationEmail     *string               `yaml:"escalation_email"`
}

// SlaPolicyPatch describes a partial policy update; nil fields are left unchanged.
type SlaPolicyPatch struct {
	Name                *string
	Description         *string
	Priority            *domain.TicketPriority
	ResponseTimeHours   *float64
	ResolutionTimeHours *float64
	IsActive            *bool
	NotifyOnBreach      *bool
	EscalationEmail     *string
}

// defaultPolicies are installed when the policy store is empty.
var defaultPolicies = []SlaPolicyInput{
	{Name: "Critical", Priority: domain.TicketPriorityCritical, ResponseTimeHours: 1, ResolutionTimeHours: 4,
		Description: "Issues that stop business operations"},
	{Name: "High", Priority: domain.TicketPriorityHigh, ResponseTimeHours: 4, ResolutionTimeHours: 24,
		Description: "High priority issues"},
	{Name: "Medium", Priority: domain.TicketPriorityMedium, ResponseTimeHours: 8, ResolutionTimeHours: 48,
		Description: "Medium priority issues"},
	{Name: "Low", Priority: domain.TicketPriorityLow, ResponseTimeHours: 24, ResolutionTimeHours: 72,
		Description: "Low priority issues"},
}

// NewSlaPolicyService constructs the service.
func NewSlaPolicyService(deps SlaPolicyDependencies) *SlaPolicyService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlaPolicyService{
		policies:  deps.PolicyRepo,
		catalog:   deps.Catalog,
		publisher: deps.Publisher,
		logger:    logger,
	}
}

// RefreshCatalog reloads the in-memory catalog from the store.
func (s *SlaPolicyService) RefreshCatalog(ctx context.Context) error {
	return s.catalog.Refresh(ctx, s.policies)
}

// ListPolicies returns every policy, most urgent priority first and newest first within a priority.
func (s *SlaPolicyService) ListPolicies(ctx context.Context) ([]domain.SlaPolicy, error) {
	policies, err := s.policies.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	sort.SliceStable(policies, func(i, j int) bool {
		ri, rj := policies[i].Priority.Rank(), policies[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return policies[i].CreatedAt.After(policies[j].CreatedAt)
	})
	return policies, nil
}

// GetPolicy fetches a policy by id.
func (s *SlaPolicyService) GetPolicy(ctx context.Context, id string) (*domain.SlaPolicy, error) {
	policy, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, policyNotFound(err, id)
	}
	return policy, nil
}

// CreatePolicy validates and stores a new policy.
func (s *SlaPolicyService) CreatePolicy(ctx context.Context, input SlaPolicyInput) (*domain.SlaPolicy, error) {
	policy := &domain.SlaPolicy{
		Name:                strings.TrimSpace(input.Name),
		Description:         strings.TrimSpace(input.Description),
		Priority:            input.Priority,
		ResponseTimeHours:   input.ResponseTimeHours,
		ResolutionTimeHours: input.ResolutionTimeHours,
		IsActive:            boolOr(input.IsActive, true),
		NotifyOnBreach:      boolOr(input.NotifyOnBreach, true),
		EscalationEmail:     normalizeEmail(input.EscalationEmail),
	}
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.afterChange(ctx, policy.ID, func() { s.catalog.Upsert(*policy) })
	s.logger.Info("sla policy created",
		zap.String("policy_id", policy.ID),
		zap.String("priority", string(policy.Priority)))
	return policy, nil
}

// UpdatePolicy applies a partial update. Open tickets are re-evaluated against
// the new values on their next evaluation; breach flags are kept.
func (s *SlaPolicyService) UpdatePolicy(ctx context.Context, id string, patch SlaPolicyPatch) (*domain.SlaPolicy, error) {
	policy, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return nil, policyNotFound(err, id)
	}
	if patch.Name != nil {
		policy.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		policy.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		policy.Priority = *patch.Priority
	}
	if patch.ResponseTimeHours != nil {
		policy.ResponseTimeHours = *patch.ResponseTimeHours
	}
	if patch.ResolutionTimeHours != nil {
		policy.ResolutionTimeHours = *patch.ResolutionTimeHours
	}
	if patch.IsActive != nil {
		policy.IsActive = *patch.IsActive
	}
	if patch.NotifyOnBreach != nil {
		policy.NotifyOnBreach = *patch.NotifyOnBreach
	}
	if patch.EscalationEmail != nil {
		policy.EscalationEmail = normalizeEmail(patch.EscalationEmail)
	}
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}
	if err := s.policies.Update(ctx, policy); err != nil {
		return nil, policyNotFound(err, id)
	}
	s.afterChange(ctx, policy.ID, func() { s.catalog.Upsert(*policy) })
	return policy, nil
}

// DeletePolicy removes a policy.
func (s *SlaPolicyService) DeletePolicy(ctx context.Context, id string) error {
	if err := s.policies.Delete(ctx, id); err != nil {
		return policyNotFound(err, id)
	}
	s.afterChange(ctx, id, func() { s.catalog.Remove(id) })
	return nil
}

// EnsureDefaultPolicies installs the default policy set when no policy exists.
func (s *SlaPolicyService) EnsureDefaultPolicies(ctx context.Context) (int, error) {
	count, err := s.policies.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count sla policies: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	for _, input := range defaultPolicies {
		if _, err := s.CreatePolicy(ctx, input); err != nil {
			return 0, fmt.Errorf("seed %s policy: %w", input.Priority, err)
		}
	}
	s.logger.Info("default sla policies installed", zap.Int("count", len(defaultPolicies)))
	return len(defaultPolicies), nil
}

type policyFile struct {
	Policies []SlaPolicyInput `yaml:"policies"`
}

// SeedFromFile upserts the policies listed in a YAML file, matching existing
// policies by name and priority.
func (s *SlaPolicyService) SeedFromFile(ctx context.Context, path string) (created, updated int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, 0, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	existing, err := s.policies.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list sla policies: %w", err)
	}
	byKey := make(map[string]domain.SlaPolicy, len(existing))
	for _, policy := range existing {
		byKey[seedKey(policy.Name, policy.Priority)] = policy
	}

	for _, input := range file.Policies {
		current, ok := byKey[seedKey(input.Name, input.Priority)]
		if !ok {
			if _, err := s.CreatePolicy(ctx, input); err != nil {
				return created, updated, fmt.Errorf("create %q: %w", input.Name, err)
			}
			created++
			continue
		}
		patch := SlaPolicyPatch{
			Description:         &input.Description,
			ResponseTimeHours:   &input.ResponseTimeHours,
			ResolutionTimeHours: &input.ResolutionTimeHours,
			IsActive:            input.IsActive,
			NotifyOnBreach:      input.NotifyOnBreach,
			EscalationEmail:     input.EscalationEmail,
		}
		if _, err := s.UpdatePolicy(ctx, current.ID, patch); err != nil {
			return created, updated, fmt.Errorf("update %q: %w", input.Name, err)
		}
		updated++
	}
	return created, updated, nil
}

func (s *SlaPolicyService) afterChange(ctx context.Context, policyID string, apply func()) {
	apply()
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPolicyChange(ctx, policyID); err != nil {
		s.logger.Warn("publish policy change failed", zap.String("policy_id", policyID), zap.Error(err))
	}
}

func validatePolicy(policy *domain.SlaPolicy) error {
	if !policy.Priority.Valid() {
		return apperrors.NewUnprocessable("UNKNOWN_PRIORITY",
			fmt.Sprintf("unknown priority %q", string(policy.Priority)),
			map[string]any{"priority": fmt.Sprintf("must be one of %s", priorityList())})
	}
	details := map[string]any{}
	if policy.Name == "" {
		details["name"] = "required"
	}
	hoursRule := fmt.Sprintf("must be greater than 0 and at most %g", domain.MaxPolicyHours)
	if !domain.ValidPolicyHours(policy.ResponseTimeHours) {
		details["response_time_hours"] = hoursRule
	}
	if !domain.ValidPolicyHours(policy.ResolutionTimeHours) {
		details["resolution_time_hours"] = hoursRule
	}
	if policy.EscalationEmail != nil {
		if _, err := mail.ParseAddress(*policy.EscalationEmail); err != nil {
			details["escalation_email"] = "invalid address"
		}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid sla policy", details)
	}
	return nil
}

func policyNotFound(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("sla policy", map[string]any{"policy_id": id})
	}
	return apperrors.MapError(err)
}

func priorityList() string {
	names := make([]string, 0, len(domain.TicketPriorities))
	for _, p := range domain.TicketPriorities {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

func seedKey(name string, priority domain.TicketPriority) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + string(priority)
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*email)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
