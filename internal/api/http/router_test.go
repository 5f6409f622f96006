package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/luiscanel/service-desk/internal/api/http/handlers"
	"github.com/luiscanel/service-desk/internal/auth"
	"github.com/luiscanel/service-desk/internal/config"
	"github.com/luiscanel/service-desk/internal/domain"
	"github.com/luiscanel/service-desk/internal/events"
	"github.com/luiscanel/service-desk/internal/observability"
	"github.com/luiscanel/service-desk/internal/service"
	"github.com/luiscanel/service-desk/internal/sla"
)

var start = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

type testServer struct {
	app    *fiber.App
	clock  *clock
	tokens map[domain.StaffRole]string
}

func newTestServer(t *testing.T, redis handlers.Pinger) *testServer {
	t.Helper()
	clk := &clock{now: start}
	tickets := &memTickets{clock: clk, rows: map[string]domain.Ticket{}}
	policies := &memPolicies{clock: clk, rows: map[string]domain.SlaPolicy{}}
	messages := &memMessages{clock: clk}

	hash, err := auth.HashPassword("long-enough", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	staff := memStaff{
		"s-agent": {ID: "s-agent", Name: "Agent", Email: "agent@example.com", PasswordHash: hash, Role: domain.StaffRoleAgent, Active: true},
		"s-lead":  {ID: "s-lead", Name: "Lead", Email: "lead@example.com", PasswordHash: hash, Role: domain.StaffRoleTeamLead, Active: true},
		"s-admin": {ID: "s-admin", Name: "Admin", Email: "admin@example.com", PasswordHash: hash, Role: domain.StaffRoleAdmin, Active: true},
	}

	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 15, BcryptCost: 4}}
	authService := service.NewAuthService(cfg, service.AuthDependencies{StaffRepo: staff})

	catalog := sla.NewCatalog()
	engine := sla.NewEngine(sla.DefaultWarningPercent)
	dispatcher := events.NewInMemoryDispatcher(nil)
	metrics := observability.NewMetrics()

	policyService := service.NewSlaPolicyService(service.SlaPolicyDependencies{PolicyRepo: policies, Catalog: catalog})
	if _, err := policyService.EnsureDefaultPolicies(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  tickets,
		MessageRepo: messages,
		Catalog:     catalog,
		Engine:      engine,
		Dispatcher:  dispatcher,
		Clock:       clk.Now,
	})
	monitor := service.NewSlaMonitorService(service.SlaMonitorDependencies{
		TicketRepo: tickets,
		Catalog:    catalog,
		Engine:     engine,
		Notifier:   sla.NewNotifier(tickets, service.NewBreachPublisher(dispatcher), nil),
		Metrics:    metrics,
		Clock:      clk.Now,
	})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("service-desk", "test", pinger{}, redis),
		Staff:          handlers.NewStaffHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, monitor),
		SlaPolicies:    handlers.NewSlaPoliciesHandler(policyService),
		SlaMonitor:     handlers.NewSlaMonitorHandler(monitor, metrics, queueDepth(3)),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), staff).Handle,
	})

	srv := &testServer{app: app, clock: clk, tokens: map[domain.StaffRole]string{}}
	for _, s := range staff {
		role := s.Role
		token, _, err := authService.TokenManager().GenerateToken(s.ID, domain.SubjectTypeStaff, &role)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		srv.tokens[role] = token
	}
	return srv
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, role domain.StaffRole, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[role])
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

type slaStatus struct {
	Status     string   `json:"status"`
	Phase      *string  `json:"phase"`
	Remaining  *float64 `json:"remaining"`
	Percentage float64  `json:"percentage"`
	Resolved   bool     `json:"resolved"`
}

func (s *testServer) createTicket(t *testing.T, priority domain.TicketPriority) string {
	t.Helper()
	status, env := s.do(t, fiber.MethodPost, "/tickets", domain.StaffRoleAgent, map[string]any{
		"requester_email": "customer@example.com",
		"title":           "Cannot log in",
		"priority":        priority,
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create ticket: %d %+v", status, env.Error)
	}
	return decode[struct {
		ID string `json:"id"`
	}](t, env).ID
}

func TestHealthLive(t *testing.T) {
	srv := newTestServer(t, pinger{})
	status, _ := srv.do(t, fiber.MethodGet, "/health/live", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("status %d", status)
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	srv := newTestServer(t, pinger{err: errors.New("connection refused")})
	status, env := srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	if status != fiber.StatusServiceUnavailable || env.Error == nil || env.Error.Code != "DEPENDENCY_UNAVAILABLE" {
		t.Fatalf("status %d env %+v", status, env.Error)
	}
}

func TestStaffLogin(t *testing.T) {
	srv := newTestServer(t, pinger{})
	status, env := srv.do(t, fiber.MethodPost, "/auth/staff/login", "", map[string]string{
		"email": "agent@example.com", "password": "long-enough",
	})
	if status != fiber.StatusOK {
		t.Fatalf("login status %d %+v", status, env.Error)
	}
	status, env = srv.do(t, fiber.MethodPost, "/auth/staff/login", "", map[string]string{
		"email": "agent@example.com", "password": "nope-nope",
	})
	if status != fiber.StatusUnauthorized || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("bad login status %d %+v", status, env.Error)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, pinger{})
	status, env := srv.do(t, fiber.MethodGet, "/sla/policies", "", nil)
	if status != fiber.StatusUnauthorized || env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("status %d env %+v", status, env.Error)
	}
}

func TestSlaStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, pinger{})
	id := srv.createTicket(t, domain.TicketPriorityHigh)

	status, env := srv.do(t, fiber.MethodGet, "/tickets/"+id+"/sla-status", domain.StaffRoleAgent, nil)
	if status != fiber.StatusOK {
		t.Fatalf("status %d %+v", status, env.Error)
	}
	got := decode[slaStatus](t, env)
	if got.Status != "ok" || got.Remaining == nil || *got.Remaining != 4*3600 {
		t.Fatalf("fresh ticket %+v", got)
	}

	srv.clock.Advance(5 * time.Hour)
	_, env = srv.do(t, fiber.MethodGet, "/tickets/"+id+"/sla-status", domain.StaffRoleAgent, nil)
	got = decode[slaStatus](t, env)
	if got.Status != "breached" || *got.Remaining != -3600 || got.Percentage != 100 {
		t.Fatalf("overdue ticket %+v", got)
	}
	if got.Phase == nil || *got.Phase != "response" {
		t.Fatalf("phase %v", got.Phase)
	}
}

func TestSlaStatusWithoutPolicyHasNullRemaining(t *testing.T) {
	srv := newTestServer(t, pinger{})
	_, env := srv.do(t, fiber.MethodGet, "/sla/policies", domain.StaffRoleAgent, nil)
	for _, p := range decode[[]struct {
		ID       string `json:"id"`
		Priority string `json:"priority"`
	}](t, env) {
		if p.Priority != string(domain.TicketPriorityLow) {
			continue
		}
		if status, _ := srv.do(t, fiber.MethodDelete, "/sla/policies/"+p.ID, domain.StaffRoleAdmin, nil); status != fiber.StatusNoContent {
			t.Fatalf("delete status %d", status)
		}
	}

	id := srv.createTicket(t, domain.TicketPriorityLow)
	_, env = srv.do(t, fiber.MethodGet, "/tickets/"+id+"/sla-status", domain.StaffRoleAgent, nil)
	got := decode[slaStatus](t, env)
	if got.Status != "no_sla" || got.Remaining != nil || got.Phase != nil {
		t.Fatalf("no policy ticket %+v", got)
	}
}

func TestPolicyManagementRequiresAdmin(t *testing.T) {
	srv := newTestServer(t, pinger{})
	body := map[string]any{
		"name": "Urgent", "priority": "high", "response_time_hours": 0.5, "resolution_time_hours": 2,
	}
	if status, _ := srv.do(t, fiber.MethodPost, "/sla/policies", domain.StaffRoleAgent, body); status != fiber.StatusForbidden {
		t.Fatalf("agent create status %d", status)
	}
	status, env := srv.do(t, fiber.MethodPost, "/sla/policies", domain.StaffRoleAdmin, body)
	if status != fiber.StatusCreated {
		t.Fatalf("admin create status %d %+v", status, env.Error)
	}
	created := decode[struct {
		ID                string  `json:"id"`
		ResponseTimeHours float64 `json:"response_time_hours"`
	}](t, env)
	if created.ResponseTimeHours != 0.5 {
		t.Fatalf("created %+v", created)
	}

	status, env = srv.do(t, fiber.MethodPut, "/sla/policies/"+created.ID, domain.StaffRoleAdmin, map[string]any{"resolution_time_hours": 3})
	if status != fiber.StatusOK {
		t.Fatalf("update status %d %+v", status, env.Error)
	}
	status, env = srv.do(t, fiber.MethodGet, "/sla/policies/missing", domain.StaffRoleAgent, nil)
	if status != fiber.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("missing policy %d %+v", status, env.Error)
	}
}

func TestUnknownPriorityIsUnprocessable(t *testing.T) {
	srv := newTestServer(t, pinger{})
	status, env := srv.do(t, fiber.MethodPost, "/sla/policies", domain.StaffRoleAdmin, map[string]any{
		"name": "Urgent", "priority": "urgent", "response_time_hours": 1, "resolution_time_hours": 2,
	})
	if status != fiber.StatusUnprocessableEntity || env.Error.Code != "UNKNOWN_PRIORITY" {
		t.Fatalf("policy status %d %+v", status, env.Error)
	}

	status, env = srv.do(t, fiber.MethodPost, "/tickets", domain.StaffRoleAgent, map[string]any{
		"requester_email": "customer@example.com", "title": "x", "priority": "urgent",
	})
	if status != fiber.StatusUnprocessableEntity || env.Error.Code != "UNKNOWN_PRIORITY" {
		t.Fatalf("ticket status %d %+v", status, env.Error)
	}
}

func TestTicketWorkflow(t *testing.T) {
	srv := newTestServer(t, pinger{})
	id := srv.createTicket(t, domain.TicketPriorityMedium)

	srv.clock.Advance(time.Hour)
	if status, env := srv.do(t, fiber.MethodPost, "/tickets/"+id+"/replies", domain.StaffRoleAgent, map[string]any{"body": "Looking into it"}); status != fiber.StatusCreated {
		t.Fatalf("reply status %d %+v", status, env.Error)
	}

	if status, _ := srv.do(t, fiber.MethodPatch, "/tickets/"+id+"/priority", domain.StaffRoleAgent, map[string]any{"priority": "high"}); status != fiber.StatusForbidden {
		t.Fatalf("agent priority change status %d", status)
	}
	if status, env := srv.do(t, fiber.MethodPatch, "/tickets/"+id+"/priority", domain.StaffRoleTeamLead, map[string]any{"priority": "high"}); status != fiber.StatusOK {
		t.Fatalf("lead priority change status %d %+v", status, env.Error)
	}

	_, env := srv.do(t, fiber.MethodGet, "/tickets/"+id+"/sla-deadlines", domain.StaffRoleAgent, nil)
	deadlines := decode[struct {
		ResponseDeadline   time.Time `json:"response_deadline"`
		ResolutionDeadline time.Time `json:"resolution_deadline"`
	}](t, env)
	if !deadlines.ResponseDeadline.Equal(start.Add(4*time.Hour)) || !deadlines.ResolutionDeadline.Equal(start.Add(24*time.Hour)) {
		t.Fatalf("deadlines %+v", deadlines)
	}

	if status, env := srv.do(t, fiber.MethodPost, "/tickets/"+id+"/resolve", domain.StaffRoleAgent, nil); status != fiber.StatusOK {
		t.Fatalf("resolve status %d %+v", status, env.Error)
	}
	status, env := srv.do(t, fiber.MethodPost, "/tickets/"+id+"/resolve", domain.StaffRoleAgent, nil)
	if status != fiber.StatusConflict || env.Error.Code != "CONFLICT" {
		t.Fatalf("second resolve %d %+v", status, env.Error)
	}

	_, env = srv.do(t, fiber.MethodGet, "/tickets/"+id, domain.StaffRoleAgent, nil)
	detail := decode[struct {
		Status   string `json:"status"`
		Messages []struct {
			Body string `json:"body"`
		} `json:"messages"`
	}](t, env)
	if detail.Status != string(domain.TicketStatusResolved) || len(detail.Messages) != 1 {
		t.Fatalf("detail %+v", detail)
	}

	srv.clock.Advance(100 * time.Hour)
	_, env = srv.do(t, fiber.MethodGet, "/tickets/"+id+"/sla-status", domain.StaffRoleAgent, nil)
	got := decode[slaStatus](t, env)
	if !got.Resolved || got.Status != "ok" || *got.Remaining != 23*3600 {
		t.Fatalf("frozen status %+v", got)
	}
}

func TestMonitorEndpoints(t *testing.T) {
	srv := newTestServer(t, pinger{})
	srv.createTicket(t, domain.TicketPriorityCritical)
	srv.createTicket(t, domain.TicketPriorityHigh)
	srv.clock.Advance(2 * time.Hour)

	status, env := srv.do(t, fiber.MethodGet, "/sla/monitor/stats", domain.StaffRoleAgent, nil)
	if status != fiber.StatusOK {
		t.Fatalf("stats status %d", status)
	}
	stats := decode[struct {
		Total          int     `json:"total"`
		Breached       int     `json:"breached"`
		ComplianceRate float64 `json:"compliance_rate"`
	}](t, env)
	if stats.Total != 2 || stats.Breached != 1 || stats.ComplianceRate != 50 {
		t.Fatalf("stats %+v", stats)
	}

	_, env = srv.do(t, fiber.MethodGet, "/sla/monitor/near-breach", domain.StaffRoleAgent, nil)
	if near := decode[[]map[string]any](t, env); len(near) != 1 {
		t.Fatalf("near breach %+v", near)
	}
	_, env = srv.do(t, fiber.MethodGet, "/sla/monitor/breached", domain.StaffRoleAgent, nil)
	if breached := decode[[]map[string]any](t, env); len(breached) != 1 {
		t.Fatalf("breached %+v", breached)
	}
	status, env = srv.do(t, fiber.MethodGet, "/sla/monitor/metrics", domain.StaffRoleAgent, nil)
	if status != fiber.StatusOK {
		t.Fatalf("metrics status %d", status)
	}
	metrics := decode[struct {
		WarningPercent float64 `json:"warning_percent"`
		QueueDepth     *int64  `json:"notification_queue_depth"`
	}](t, env)
	if metrics.WarningPercent != sla.DefaultWarningPercent || metrics.QueueDepth == nil || *metrics.QueueDepth != 3 {
		t.Fatalf("metrics %+v", metrics)
	}
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	srv := newTestServer(t, pinger{})
	paths := []struct {
		method string
		path   string
		role   domain.StaffRole
	}{
		{fiber.MethodGet, "/tickets/not-a-uuid", domain.StaffRoleAgent},
		{fiber.MethodGet, "/tickets/42/sla-status", domain.StaffRoleAgent},
		{fiber.MethodPost, "/tickets/42/resolve", domain.StaffRoleAgent},
		{fiber.MethodGet, "/tickets/00000000-0000-0000-0000-000000000000/sla-deadlines", domain.StaffRoleAgent},
		{fiber.MethodGet, "/sla/policies/abc", domain.StaffRoleAgent},
		{fiber.MethodDelete, "/sla/policies/abc", domain.StaffRoleAdmin},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			status, env := srv.do(t, p.method, p.path, p.role, nil)
			if status != fiber.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
				t.Fatalf("status %d env %+v", status, env.Error)
			}
		})
	}
}
