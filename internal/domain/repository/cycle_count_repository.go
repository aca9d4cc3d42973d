package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
)

// CycleCountRepository puerto de persistencia de conteos cíclicos, sus líneas
// y los registros de ejecución de posteo.
type CycleCountRepository interface {
	Create(ctx context.Context, count *entity.CycleCount) error
	// Get devuelve el conteo con sus líneas; nil si no existe.
	Get(ctx context.Context, tenantID, id string) (*entity.CycleCount, error)
	// GetForUpdate bloquea cabecera y líneas (SELECT FOR UPDATE) antes de postear.
	GetForUpdate(ctx context.Context, tenantID, id string) (*entity.CycleCount, error)
	// UpdateLineSnapshot congela system/variance de una línea al postear.
	UpdateLineSnapshot(ctx context.Context, lineID string, system, variance decimal.Decimal) error
	MarkPosted(ctx context.Context, id, movementID string, at time.Time) error
	MarkCanceled(ctx context.Context, id string) error
	// InsertOrGetExecution inserta el registro IN_PROGRESS con ON CONFLICT; si
	// ya existe devuelve el registro vigente y created=false.
	InsertOrGetExecution(ctx context.Context, exec *entity.PostingExecution) (*entity.PostingExecution, bool, error)
	MarkExecutionSucceeded(ctx context.Context, tenantID, idempotencyKey, movementID string) error
}
