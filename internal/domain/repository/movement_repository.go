package repository

import (
	"context"

	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
)

// MovementRepository puerto de persistencia del ledger de movimientos.
// Append-only: un movimiento posteado no se actualiza ni se borra.
type MovementRepository interface {
	// CreateIdempotent inserta la cabecera con ON CONFLICT sobre la llave
	// natural (tenant, source_type, source_id) o la idempotency key explícita.
	// Si ya existe devuelve el movimiento existente y created=false; el caller
	// debe verificar que las líneas existan antes de dar el replay por bueno.
	CreateIdempotent(ctx context.Context, movement *entity.InventoryMovement) (*entity.InventoryMovement, bool, error)
	// UpdateMetadata reemplaza el metadata de una cabecera recién insertada en
	// la misma transacción (estampado de auditoría previo al commit).
	UpdateMetadata(ctx context.Context, tenantID, id string, metadata map[string]any) error
	CreateLine(ctx context.Context, line *entity.MovementLine) error
	CountLines(ctx context.Context, movementID string) (int, error)
	GetByID(ctx context.Context, tenantID, id string) (*entity.InventoryMovement, error)
	ListLines(ctx context.Context, movementID string) ([]*entity.MovementLine, error)
	// MarkVoided anula un borrador. Sobre un movimiento posteado devuelve
	// ErrConflict: lo posteado es inmutable.
	MarkVoided(ctx context.Context, tenantID, id string) error
}
