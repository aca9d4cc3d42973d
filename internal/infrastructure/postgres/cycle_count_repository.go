package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

var _ repository.CycleCountRepository = (*CycleCountRepo)(nil)

// CycleCountRepo conteos cíclicos, sus líneas y el registro de ejecución
// de posteo (idempotencia).
type CycleCountRepo struct {
	q Querier
}

func NewCycleCountRepository(q Querier) *CycleCountRepo {
	return &CycleCountRepo{q: q}
}

// Create persiste el conteo en borrador con sus líneas.
func (r *CycleCountRepo) Create(ctx context.Context, count *entity.CycleCount) error {
	if count.ID == "" {
		count.ID = uuid.New().String()
	}
	query := `
		INSERT INTO cycle_counts
			(id, tenant_id, warehouse_id, location_id, status, counted_at,
			 posted_at, movement_id, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		count.ID, count.TenantID, nullIfEmpty(count.WarehouseID), nullIfEmpty(count.LocationID),
		count.Status, count.CountedAt, count.PostedAt, count.MovementID,
		count.CreatedAt, nullIfEmpty(count.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("create cycle count: %w", err)
	}
	for _, line := range count.Lines {
		if line.ID == "" {
			line.ID = uuid.New().String()
		}
		line.CountID = count.ID
		if err := r.createLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *CycleCountRepo) createLine(ctx context.Context, line *entity.CycleCountLine) error {
	query := `
		INSERT INTO cycle_count_lines
			(id, count_id, item_id, location_id, uom, counted_quantity,
			 system_quantity, variance_quantity, reason_code, unit_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		line.ID, line.CountID, line.ItemID, line.LocationID, line.UOM,
		line.CountedQuantity, line.SystemQuantity, line.VarianceQuantity,
		nullIfEmpty(line.ReasonCode), line.UnitCost,
	)
	if err != nil {
		return fmt.Errorf("create cycle count line: %w", err)
	}
	return nil
}

// Get obtiene un conteo con sus líneas; nil si no existe.
func (r *CycleCountRepo) Get(ctx context.Context, tenantID, id string) (*entity.CycleCount, error) {
	return r.get(ctx, tenantID, id, false)
}

// GetForUpdate bloquea la cabecera del conteo antes de postear.
func (r *CycleCountRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.CycleCount, error) {
	return r.get(ctx, tenantID, id, true)
}

func (r *CycleCountRepo) get(ctx context.Context, tenantID, id string, lock bool) (*entity.CycleCount, error) {
	query := `
		SELECT id, tenant_id, warehouse_id, location_id, status, counted_at,
		       posted_at, movement_id, created_at, created_by
		FROM cycle_counts
		WHERE tenant_id = $1 AND id = $2`
	if lock {
		query += " FOR UPDATE"
	}
	var c entity.CycleCount
	var warehouseID, locationID, createdBy *string
	err := r.q.QueryRow(ctx, query, tenantID, id).Scan(
		&c.ID, &c.TenantID, &warehouseID, &locationID, &c.Status, &c.CountedAt,
		&c.PostedAt, &c.MovementID, &c.CreatedAt, &createdBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cycle count: %w", err)
	}
	c.WarehouseID = deref(warehouseID)
	c.LocationID = deref(locationID)
	c.CreatedBy = deref(createdBy)

	lines, err := r.listLines(ctx, c.ID, lock)
	if err != nil {
		return nil, err
	}
	c.Lines = lines
	return &c, nil
}

func (r *CycleCountRepo) listLines(ctx context.Context, countID string, lock bool) ([]*entity.CycleCountLine, error) {
	query := `
		SELECT id, count_id, item_id, location_id, uom, counted_quantity,
		       system_quantity, variance_quantity, reason_code, unit_cost
		FROM cycle_count_lines
		WHERE count_id = $1
		ORDER BY item_id, location_id, uom`
	if lock {
		// El posteo bloquea cabecera y líneas juntas
		query += " FOR UPDATE"
	}
	rows, err := r.q.Query(ctx, query, countID)
	if err != nil {
		return nil, fmt.Errorf("list cycle count lines: %w", err)
	}
	defer rows.Close()
	var lines []*entity.CycleCountLine
	for rows.Next() {
		var l entity.CycleCountLine
		var reasonCode *string
		if err := rows.Scan(&l.ID, &l.CountID, &l.ItemID, &l.LocationID, &l.UOM,
			&l.CountedQuantity, &l.SystemQuantity, &l.VarianceQuantity,
			&reasonCode, &l.UnitCost); err != nil {
			return nil, fmt.Errorf("scan cycle count line: %w", err)
		}
		l.ReasonCode = deref(reasonCode)
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// UpdateLineSnapshot fija el snapshot del sistema y la varianza calculados
// al momento de postear.
func (r *CycleCountRepo) UpdateLineSnapshot(ctx context.Context, lineID string, system, variance decimal.Decimal) error {
	_, err := r.q.Exec(ctx,
		`UPDATE cycle_count_lines SET system_quantity = $1, variance_quantity = $2 WHERE id = $3`,
		system, variance, lineID,
	)
	if err != nil {
		return fmt.Errorf("update cycle count line snapshot: %w", err)
	}
	return nil
}

// MarkPosted marca el conteo como posteado y lo liga a su movimiento.
func (r *CycleCountRepo) MarkPosted(ctx context.Context, id, movementID string, at time.Time) error {
	var mid *string
	if movementID != "" {
		mid = &movementID
	}
	_, err := r.q.Exec(ctx,
		`UPDATE cycle_counts SET status = $1, posted_at = $2, movement_id = $3 WHERE id = $4`,
		entity.CycleCountStatusPosted, at, mid, id,
	)
	if err != nil {
		return fmt.Errorf("mark cycle count posted: %w", err)
	}
	return nil
}

// MarkCanceled cancela un conteo en borrador.
func (r *CycleCountRepo) MarkCanceled(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE cycle_counts SET status = $1 WHERE id = $2`,
		entity.CycleCountStatusCanceled, id,
	)
	if err != nil {
		return fmt.Errorf("mark cycle count canceled: %w", err)
	}
	return nil
}

// InsertOrGetExecution inserta el registro de ejecución con ON CONFLICT DO
// NOTHING sobre (tenant, idempotency_key); si ya existe lo devuelve tal cual.
func (r *CycleCountRepo) InsertOrGetExecution(ctx context.Context, exec *entity.PostingExecution) (*entity.PostingExecution, bool, error) {
	insert := `
		INSERT INTO count_posting_executions
			(idempotency_key, tenant_id, count_id, request_hash, status, movement_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
		RETURNING idempotency_key`
	var key string
	err := r.q.QueryRow(ctx, insert,
		exec.IdempotencyKey, exec.TenantID, exec.CountID, exec.RequestHash,
		exec.Status, exec.MovementID, exec.CreatedAt, exec.UpdatedAt,
	).Scan(&key)
	if err == nil {
		return exec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert posting execution: %w", err)
	}

	query := `
		SELECT idempotency_key, tenant_id, count_id, request_hash, status, movement_id, created_at, updated_at
		FROM count_posting_executions
		WHERE tenant_id = $1 AND idempotency_key = $2`
	var existing entity.PostingExecution
	err = r.q.QueryRow(ctx, query, exec.TenantID, exec.IdempotencyKey).Scan(
		&existing.IdempotencyKey, &existing.TenantID, &existing.CountID,
		&existing.RequestHash, &existing.Status, &existing.MovementID,
		&existing.CreatedAt, &existing.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("get posting execution: %w", err)
	}
	return &existing, false, nil
}

// MarkExecutionSucceeded cierra el registro de ejecución con su movimiento.
func (r *CycleCountRepo) MarkExecutionSucceeded(ctx context.Context, tenantID, idempotencyKey, movementID string) error {
	var mid *string
	if movementID != "" {
		mid = &movementID
	}
	_, err := r.q.Exec(ctx,
		`UPDATE count_posting_executions
		 SET status = $1, movement_id = $2, updated_at = $3
		 WHERE tenant_id = $4 AND idempotency_key = $5`,
		entity.ExecutionStatusSucceeded, mid, time.Now().UTC(), tenantID, idempotencyKey,
	)
	if err != nil {
		return fmt.Errorf("mark posting execution succeeded: %w", err)
	}
	return nil
}
