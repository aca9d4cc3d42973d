package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/stock-ledger/internal/domain"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
	"github.com/tu-usuario/stock-ledger/internal/domain/uom"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo implementación del ledger de movimientos sobre PostgreSQL
// (usable con pool o tx).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

const movementColumns = `id, tenant_id, movement_type, status, source_type, source_id,
	idempotency_key, external_ref, occurred_at, posted_at, metadata, created_at, created_by`

// CreateIdempotent inserta la cabecera con ON CONFLICT DO NOTHING sobre las
// llaves únicas (tenant, source_type, source_id) y (tenant, idempotency_key).
// Si el insert no crea fila, carga y devuelve el movimiento existente.
func (r *MovementRepo) CreateIdempotent(ctx context.Context, movement *entity.InventoryMovement) (*entity.InventoryMovement, bool, error) {
	if movement.ID == "" {
		movement.ID = uuid.New().String()
	}
	query := `
		INSERT INTO inventory_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT DO NOTHING
		RETURNING id`
	var insertedID string
	err := r.q.QueryRow(ctx, query,
		movement.ID, movement.TenantID, movement.MovementType, movement.Status,
		nullIfEmpty(movement.SourceType), nullIfEmpty(movement.SourceID),
		nullIfEmpty(movement.IdempotencyKey), nullIfEmpty(movement.ExternalRef),
		movement.OccurredAt, movement.PostedAt, movement.Metadata,
		movement.CreatedAt, nullIfEmpty(movement.CreatedBy),
	).Scan(&insertedID)
	if err == nil {
		return movement, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("create inventory movement: %w", err)
	}

	// Conflicto: buscar el movimiento existente por la llave natural
	existing, err := r.getByNaturalKey(ctx, movement)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("create inventory movement: conflicto sin fila visible: %w", domain.ErrConflict)
	}
	return existing, false, nil
}

func (r *MovementRepo) getByNaturalKey(ctx context.Context, movement *entity.InventoryMovement) (*entity.InventoryMovement, error) {
	if movement.SourceType != "" && movement.SourceID != "" {
		query := `
			SELECT ` + movementColumns + `
			FROM inventory_movements
			WHERE tenant_id = $1 AND source_type = $2 AND source_id = $3`
		m, err := r.scanOne(r.q.QueryRow(ctx, query, movement.TenantID, movement.SourceType, movement.SourceID))
		if err != nil || m != nil {
			return m, err
		}
	}
	if movement.IdempotencyKey != "" {
		query := `
			SELECT ` + movementColumns + `
			FROM inventory_movements
			WHERE tenant_id = $1 AND idempotency_key = $2`
		return r.scanOne(r.q.QueryRow(ctx, query, movement.TenantID, movement.IdempotencyKey))
	}
	return nil, nil
}

// UpdateMetadata reemplaza el metadata de la cabecera (estampado de auditoría
// dentro de la misma tx del posteo).
func (r *MovementRepo) UpdateMetadata(ctx context.Context, tenantID, id string, metadata map[string]any) error {
	_, err := r.q.Exec(ctx,
		`UPDATE inventory_movements SET metadata = $1 WHERE tenant_id = $2 AND id = $3`,
		metadata, tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("update movement metadata: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID.
func (r *MovementRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.InventoryMovement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM inventory_movements
		WHERE tenant_id = $1 AND id = $2`
	return r.scanOne(r.q.QueryRow(ctx, query, tenantID, id))
}

func (r *MovementRepo) scanOne(row pgx.Row) (*entity.InventoryMovement, error) {
	var m entity.InventoryMovement
	var sourceType, sourceID, idempotencyKey, externalRef, createdBy *string
	err := row.Scan(
		&m.ID, &m.TenantID, &m.MovementType, &m.Status, &sourceType, &sourceID,
		&idempotencyKey, &externalRef, &m.OccurredAt, &m.PostedAt, &m.Metadata,
		&m.CreatedAt, &createdBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	m.SourceType = deref(sourceType)
	m.SourceID = deref(sourceID)
	m.IdempotencyKey = deref(idempotencyKey)
	m.ExternalRef = deref(externalRef)
	m.CreatedBy = deref(createdBy)
	return &m, nil
}

// CreateLine persiste una línea con sus cantidades ingresadas y canónicas.
func (r *MovementRepo) CreateLine(ctx context.Context, line *entity.MovementLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	query := `
		INSERT INTO inventory_movement_lines
			(id, movement_id, item_id, location_id, entered_quantity, entered_uom,
			 quantity, uom, dimension, unit_cost, extended_cost, reason_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		line.ID, line.MovementID, line.ItemID, line.LocationID,
		line.EnteredQuantity, line.EnteredUOM, line.Quantity, line.UOM,
		string(line.Dimension), line.UnitCost, line.ExtendedCost,
		nullIfEmpty(line.ReasonCode), line.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create movement line: %w", err)
	}
	return nil
}

// CountLines cuenta las líneas de un movimiento (defensa contra cabeceras
// huérfanas en replays).
func (r *MovementRepo) CountLines(ctx context.Context, movementID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM inventory_movement_lines WHERE movement_id = $1`,
		movementID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count movement lines: %w", err)
	}
	return n, nil
}

// ListLines lista las líneas de un movimiento en orden de inserción.
func (r *MovementRepo) ListLines(ctx context.Context, movementID string) ([]*entity.MovementLine, error) {
	query := `
		SELECT id, movement_id, item_id, location_id, entered_quantity, entered_uom,
		       quantity, uom, dimension, unit_cost, extended_cost, reason_code, created_at
		FROM inventory_movement_lines
		WHERE movement_id = $1
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, movementID)
	if err != nil {
		return nil, fmt.Errorf("list movement lines: %w", err)
	}
	defer rows.Close()
	var list []*entity.MovementLine
	for rows.Next() {
		var l entity.MovementLine
		var dimension string
		var reasonCode *string
		if err := rows.Scan(&l.ID, &l.MovementID, &l.ItemID, &l.LocationID,
			&l.EnteredQuantity, &l.EnteredUOM, &l.Quantity, &l.UOM, &dimension,
			&l.UnitCost, &l.ExtendedCost, &reasonCode, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement line: %w", err)
		}
		l.Dimension = uom.Dimension(dimension)
		l.ReasonCode = deref(reasonCode)
		list = append(list, &l)
	}
	return list, rows.Err()
}

// MarkVoided anula un borrador; 0 filas afectadas significa que ya no es borrador.
func (r *MovementRepo) MarkVoided(ctx context.Context, tenantID, id string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE inventory_movements SET status = $1 WHERE tenant_id = $2 AND id = $3 AND status = $4`,
		entity.MovementStatusVoided, tenantID, id, entity.MovementStatusDraft,
	)
	if err != nil {
		return fmt.Errorf("void movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
