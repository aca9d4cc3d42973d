package inventory

import (
	"context"

	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando
// repositorios atados a esa tx. Garantiza atomicidad para el posteo:
// cabecera, líneas, deltas de balance, capas y outbox comitean o se
// revierten juntos.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		balanceRepo repository.BalanceRepository,
		layerRepo repository.CostLayerRepository,
		outboxRepo repository.OutboxRepository,
	) error) error
}
