package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luiscanel/service-desk/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// ListOpen pages unresolved tickets ordered by id, starting after afterID.
	ListOpen(ctx context.Context, afterID string, limit int) ([]domain.Ticket, error)
	// MarkBreachNotified sets the phase flag only if it is still false and
	// reports whether this call changed it.
	MarkBreachNotified(ctx context.Context, ticketID string, phase domain.SlaPhase) (bool, error)
	// MarkResponded records the first response of an unresolved ticket and
	// moves OPEN to IN_PROGRESS. It reports false when the ticket already has a
	// response or is resolved.
	MarkResponded(ctx context.Context, ticketID string, at time.Time) (bool, error)
	// MarkResolved stops both clocks. It reports false when the ticket is
	// already resolved.
	MarkResolved(ctx context.Context, ticketID string, at time.Time) (bool, error)
	// UpdatePriority changes the priority of an unresolved ticket.
	UpdatePriority(ctx context.Context, ticketID string, priority domain.TicketPriority) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, requester_email, assignee_staff_id, title, description, status, priority,
               created_at, updated_at, first_responded_at, resolved_at, response_breach_notified, resolution_breach_notified`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, requester_email, assignee_staff_id, title, description, status, priority)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.RequesterEmail,
		ticket.AssigneeID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListOpen(ctx context.Context, afterID string, limit int) ([]domain.Ticket, error) {
	clauses := []string{"resolved_at IS NULL"}
	args := []any{}
	if afterID != "" {
		args = append(args, afterID)
		clauses = append(clauses, fmt.Sprintf("id > $%d", len(args)))
	}
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY id LIMIT %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) MarkBreachNotified(ctx context.Context, ticketID string, phase domain.SlaPhase) (bool, error) {
	var column string
	switch phase {
	case domain.SlaPhaseResponse:
		column = "response_breach_notified"
	case domain.SlaPhaseResolution:
		column = "resolution_breach_notified"
	default:
		return false, fmt.Errorf("unknown sla phase %q", phase)
	}
	query := fmt.Sprintf(`UPDATE tickets SET %[1]s=TRUE WHERE id=$1 AND %[1]s=FALSE`, column)
	cmd, err := r.pool.Exec(ctx, query, ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) MarkResponded(ctx context.Context, ticketID string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET first_responded_at=$2,
            status=CASE WHEN status=$3 THEN $4 ELSE status END,
            updated_at=NOW()
        WHERE id=$1 AND first_responded_at IS NULL AND resolved_at IS NULL`
	return r.execGuarded(ctx, query, ticketID, at, domain.TicketStatusOpen, domain.TicketStatusInProgress)
}

func (r *ticketRepository) MarkResolved(ctx context.Context, ticketID string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET resolved_at=$2, status=$3, updated_at=NOW()
        WHERE id=$1 AND resolved_at IS NULL`
	return r.execGuarded(ctx, query, ticketID, at, domain.TicketStatusResolved)
}

func (r *ticketRepository) UpdatePriority(ctx context.Context, ticketID string, priority domain.TicketPriority) (bool, error) {
	const query = `
        UPDATE tickets SET priority=$2, updated_at=NOW()
        WHERE id=$1 AND resolved_at IS NULL`
	return r.execGuarded(ctx, query, ticketID, priority)
}

func (r *ticketRepository) execGuarded(ctx context.Context, query string, args ...any) (bool, error) {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.RequesterEmail,
		&ticket.AssigneeID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstRespondedAt,
		&ticket.ResolvedAt,
		&ticket.ResponseBreachNotified,
		&ticket.ResolutionBreachNotified,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
