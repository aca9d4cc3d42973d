package repository

import (
	"context"

	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
)

// OutboxRepository puerto del outbox transaccional. Enqueue corre dentro de la
// transacción de posteo; el resto lo usa el dispatcher después del commit.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event *entity.OutboxEvent) error
	// ClaimBatch marca un lote PENDING (o FAILED reclamable) como tomado por el
	// worker y lo devuelve; usa FOR UPDATE SKIP LOCKED para no pelear entre workers.
	ClaimBatch(ctx context.Context, workerID string, limit int) ([]*entity.OutboxEvent, error)
	MarkSent(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID, reason string) error
}
