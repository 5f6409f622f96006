package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luiscanel/service-desk/internal/domain"
)

// TicketMessageRepository stores the reply thread. A public staff reply's
// created_at is what stops the response clock.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository builds repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

const messageColumns = `id, ticket_id, author_type, author_id, message_type, body, created_at`

// Create stamps the message with the database clock so every instance agrees
// on response times.
func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, author_type, author_id, message_type, body, created_at)
        VALUES ($1,$2,$3,$4,$5, clock_timestamp())
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID, msg.AuthorType, msg.AuthorID, msg.MessageType, msg.Body,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	msgs, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.TicketMessage{}
	}
	return msgs, nil
}

func scanMessage(row pgx.CollectableRow) (domain.TicketMessage, error) {
	var msg domain.TicketMessage
	err := row.Scan(&msg.ID, &msg.TicketID, &msg.AuthorType, &msg.AuthorID, &msg.MessageType, &msg.Body, &msg.CreatedAt)
	return msg, err
}
