package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tu-usuario/stock-ledger/internal/application/counting"
	"github.com/tu-usuario/stock-ledger/internal/application/inventory"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

// maxSerializableRetries reintentos ante fallas de serialización (40001).
// Solo se reintentan fallas transitorias; las lógicas suben al caller.
const maxSerializableRetries = 3

// Ensure TxRunner implements inventory.TxRunner and counting.TxRunner.
var _ inventory.TxRunner = (*TxRunner)(nil)
var _ counting.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace
// Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	layerRepo repository.CostLayerRepository,
	outboxRepo repository.OutboxRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(
		NewMovementRepository(tx),
		NewBalanceRepository(tx),
		NewCostLayerRepository(tx),
		NewOutboxRepository(tx),
	); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunSerializable igual que Run pero con aislamiento SERIALIZABLE y reintento
// acotado cuando Postgres aborta por conflicto de serialización. La fn debe
// ser re-ejecutable: solo operaciones de BD, sin efectos externos.
func (r *TxRunner) RunSerializable(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	layerRepo repository.CostLayerRepository,
	outboxRepo repository.OutboxRepository,
	countRepo repository.CycleCountRepository,
) error) error {
	var lastErr error
	for attempt := 0; attempt < maxSerializableRetries; attempt++ {
		lastErr = r.runSerializableOnce(ctx, fn)
		if lastErr == nil || !isSerializationFailure(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("transacción serializable agotó reintentos: %w", lastErr)
}

func (r *TxRunner) runSerializableOnce(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	layerRepo repository.CostLayerRepository,
	outboxRepo repository.OutboxRepository,
	countRepo repository.CycleCountRepository,
) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin serializable transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(
		NewMovementRepository(tx),
		NewBalanceRepository(tx),
		NewCostLayerRepository(tx),
		NewOutboxRepository(tx),
		NewCycleCountRepository(tx),
	); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit serializable transaction: %w", err)
	}
	return nil
}
