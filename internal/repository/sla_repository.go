package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-countdown/internal/domain"
)

// ErrNoPool is returned when the repository runs without a database.
var ErrNoPool = errors.New("postgres pool not configured")

// SLASnapshotRepository reads authoritative SLA state computed by the backend.
type SLASnapshotRepository interface {
	GetByTicketID(ctx context.Context, ticketID string) (*domain.SLASnapshot, error)
	ListByTicketIDs(ctx context.Context, ticketIDs []string) ([]domain.SLASnapshot, error)
}

type slaSnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSLASnapshotRepository instantiates repository.
func NewSLASnapshotRepository(pool *pgxpool.Pool) SLASnapshotRepository {
	return &slaSnapshotRepository{pool: pool}
}

const slaSnapshotColumns = `ticket_id::text, priority, status, remaining_minutes, total_minutes,
               manual_paused, awaiting_reply_paused, outside_business_hours, extra_pauses, updated_at`

func (r *slaSnapshotRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.SLASnapshot, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	query := `SELECT ` + slaSnapshotColumns + `
        FROM ticket_sla_status WHERE ticket_id::text=$1`
	snap, err := scanSnapshot(r.pool.QueryRow(ctx, query, ticketID))
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *slaSnapshotRepository) ListByTicketIDs(ctx context.Context, ticketIDs []string) ([]domain.SLASnapshot, error) {
	if r.pool == nil {
		return nil, ErrNoPool
	}
	if len(ticketIDs) == 0 {
		return []domain.SLASnapshot{}, nil
	}
	query := `SELECT ` + slaSnapshotColumns + `
        FROM ticket_sla_status WHERE ticket_id::text = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLASnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *snap)
	}
	return result, rows.Err()
}

func scanSnapshot(row pgx.Row) (*domain.SLASnapshot, error) {
	var snap domain.SLASnapshot
	if err := row.Scan(
		&snap.TicketID,
		&snap.Priority,
		&snap.Status,
		&snap.RemainingMinutes,
		&snap.TotalMinutes,
		&snap.ManualPause,
		&snap.AwaitingReplyPause,
		&snap.OutsideBusinessHours,
		&snap.ExtraPauses,
		&snap.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &snap, nil
}
