package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

// OutboxRepo cola transaccional de eventos de dominio. Los eventos se
// escriben en la misma tx que el movimiento y un despachador los publica
// después del commit.
type OutboxRepo struct {
	q Querier
}

func NewOutboxRepository(q Querier) *OutboxRepo {
	return &OutboxRepo{q: q}
}

// Enqueue inserta el evento en estado PENDING.
func (r *OutboxRepo) Enqueue(ctx context.Context, event *entity.OutboxEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	query := `
		INSERT INTO outbox_events
			(id, tenant_id, topic, payload, status, locked_by, locked_at, sent_at, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		event.ID, event.TenantID, event.Topic, event.Payload, event.Status,
		nullIfEmpty(event.LockedBy), event.LockedAt, event.SentAt,
		nullIfEmpty(event.LastError), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue outbox event: %w", err)
	}
	return nil
}

// ClaimBatch toma hasta limit eventos pendientes con SKIP LOCKED para que
// varios despachadores no se pisen entre sí.
func (r *OutboxRepo) ClaimBatch(ctx context.Context, workerID string, limit int) ([]*entity.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET locked_by = $1, locked_at = $2
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $3
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, tenant_id, topic, payload, status, locked_by, locked_at, sent_at, last_error, created_at`
	rows, err := r.q.Query(ctx, query, workerID, time.Now().UTC(), entity.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()
	var events []*entity.OutboxEvent
	for rows.Next() {
		var e entity.OutboxEvent
		var lockedBy, lastError *string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Topic, &e.Payload, &e.Status,
			&lockedBy, &e.LockedAt, &e.SentAt, &lastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		e.LockedBy = deref(lockedBy)
		e.LastError = deref(lastError)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// MarkSent marca un evento como publicado.
func (r *OutboxRepo) MarkSent(ctx context.Context, eventID string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE outbox_events SET status = $1, sent_at = $2, last_error = NULL WHERE id = $3`,
		entity.OutboxStatusSent, time.Now().UTC(), eventID,
	)
	if err != nil {
		return fmt.Errorf("mark outbox event sent: %w", err)
	}
	return nil
}

// MarkFailed registra el error y libera el lock; el evento vuelve a PENDING
// para reintento.
func (r *OutboxRepo) MarkFailed(ctx context.Context, eventID, reason string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE outbox_events
		 SET status = $1, last_error = $2, locked_by = NULL, locked_at = NULL
		 WHERE id = $3`,
		entity.OutboxStatusPending, reason, eventID,
	)
	if err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return nil
}
