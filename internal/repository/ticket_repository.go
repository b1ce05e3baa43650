package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-desk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	ReporterID *int64
	Categories []domain.Category
	Statuses   []domain.TicketStatus
	Limit      int
}

// TicketMutation edits a locked ticket in place. Returning an error aborts
// the update and leaves the stored record untouched.
type TicketMutation func(ticket *domain.Ticket) error

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// Update loads the ticket under a row lock, applies mutate and writes the
	// result back in one transaction.
	Update(ctx context.Context, id int64, mutate TicketMutation) (*domain.Ticket, error)
	// List returns matching tickets ordered by creation time, newest first.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const selectTicket = `
        SELECT id, reporter_id, specialist_id, responsible_specialist_id,
               location_queue, location_entrance, location_floor, category, description,
               COALESCE(photo_id, ''), COALESCE(completion_comment, ''), COALESCE(completion_photo_id, ''),
               claimed_at, estimated_days, completed_at, status, created_at, updated_at
        FROM tickets`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (reporter_id, location_queue, location_entrance, location_floor,
            category, description, photo_id, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7, ''),$8,$9,$10)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		ticket.ReporterID,
		ticket.Location.Queue,
		ticket.Location.Entrance,
		ticket.Location.Floor,
		ticket.Category,
		ticket.Description,
		ticket.PhotoID,
		ticket.Status,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.ID)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, selectTicket+` WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) Update(ctx context.Context, id int64, mutate TicketMutation) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	ticket, err := scanTicket(tx.QueryRow(ctx, selectTicket+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	if err := mutate(ticket); err != nil {
		return nil, err
	}

	const query = `
        UPDATE tickets SET specialist_id=$1, responsible_specialist_id=$2,
            completion_comment=NULLIF($3, ''), completion_photo_id=NULLIF($4, ''),
            claimed_at=$5, estimated_days=$6, completed_at=$7, status=$8, updated_at=$9
        WHERE id=$10`
	if _, err := tx.Exec(ctx, query,
		ticket.SpecialistID,
		ticket.ResponsibleID,
		ticket.CompletionComment,
		ticket.CompletionPhotoID,
		ticket.ClaimedAt,
		ticket.EstimatedDays,
		ticket.CompletedAt,
		ticket.Status,
		ticket.UpdatedAt,
		ticket.ID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, string(category))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC, id DESC`, selectTicket, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

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

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ReporterID,
		&ticket.SpecialistID,
		&ticket.ResponsibleID,
		&ticket.Location.Queue,
		&ticket.Location.Entrance,
		&ticket.Location.Floor,
		&ticket.Category,
		&ticket.Description,
		&ticket.PhotoID,
		&ticket.CompletionComment,
		&ticket.CompletionPhotoID,
		&ticket.ClaimedAt,
		&ticket.EstimatedDays,
		&ticket.CompletedAt,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
