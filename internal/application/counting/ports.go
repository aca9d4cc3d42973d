package counting

import (
	"context"

	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

// TxRunner transacciones para el posteo de conteos. RunSerializable corre en
// el nivel de aislamiento más estricto disponible con reintento acotado ante
// fallas de serialización; las fallas lógicas no se reintentan.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		balanceRepo repository.BalanceRepository,
		layerRepo repository.CostLayerRepository,
		outboxRepo repository.OutboxRepository,
	) error) error
	RunSerializable(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		balanceRepo repository.BalanceRepository,
		layerRepo repository.CostLayerRepository,
		outboxRepo repository.OutboxRepository,
		countRepo repository.CycleCountRepository,
	) error) error
}
