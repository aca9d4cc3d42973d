package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	domaininv "github.com/tu-usuario/stock-ledger/internal/domain/inventory"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

// Ledger coordinador de posteo: crea cabecera + líneas + deltas de balance de
// forma idempotente y atómica, orquestando canonicalización, validación de
// stock y capas de costo dentro de una sola transacción.
type Ledger struct {
	txRunner  TxRunner
	canonical *CanonicalService
	validator *StockValidator
	costs     *CostLayerService
}

// NewLedger construye el coordinador.
func NewLedger(
	txRunner TxRunner,
	canonical *CanonicalService,
	validator *StockValidator,
	costs *CostLayerService,
) *Ledger {
	return &Ledger{
		txRunner:  txRunner,
		canonical: canonical,
		validator: validator,
		costs:     costs,
	}
}

// MovementHeaderInput cabecera a postear. (SourceType, SourceID) o
// IdempotencyKey actúan como llave de idempotencia.
type MovementHeaderInput struct {
	TenantID       string
	MovementType   string
	SourceType     string
	SourceID       string
	IdempotencyKey string
	ExternalRef    string
	OccurredAt     time.Time
	Metadata       map[string]any
	CreatedBy      string
}

// MovementLineInput línea a postear, en la unidad ingresada. UnitCost es
// obligatorio para entradas que crean capa (recepciones, variaciones
// positivas); en salidas el costo sale del consumo FIFO.
type MovementLineInput struct {
	ItemID     string
	LocationID string
	Quantity   decimal.Decimal
	UOM        string
	UnitCost   *decimal.Decimal
	ReasonCode string
}

// PostMovementInput movimiento completo más el contexto de validación.
type PostMovementInput struct {
	Header     MovementHeaderInput
	Lines      []MovementLineInput
	Validation ValidationContext
}

// PostMovementResult id del movimiento y si fue creado en esta llamada.
// Created=false significa replay idempotente: no se emitieron líneas nuevas.
type PostMovementResult struct {
	MovementID string
	Created    bool
}

// PostMovement abre la transacción y postea. Ver PostMovementWith para el
// protocolo; esa variante corre dentro de una transacción ya abierta (la usa
// el posteo de conteos).
func (l *Ledger) PostMovement(ctx context.Context, in PostMovementInput) (*PostMovementResult, error) {
	if err := validateMovementInput(in); err != nil {
		return nil, err
	}
	var result *PostMovementResult
	err := l.txRunner.Run(ctx, func(
		movRepo repository.MovementRepository,
		balanceRepo repository.BalanceRepository,
		layerRepo repository.CostLayerRepository,
		outboxRepo repository.OutboxRepository,
	) error {
		r, err := l.PostMovementWith(ctx, movRepo, balanceRepo, layerRepo, outboxRepo, in)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func validateMovementInput(in PostMovementInput) error {
	switch in.Header.MovementType {
	case entity.MovementTypeReceive, entity.MovementTypeIssue, entity.MovementTypeTransfer,
		entity.MovementTypeAdjustment, entity.MovementTypeCount:
	default:
		return fmt.Errorf("tipo de movimiento %q: %w", in.Header.MovementType, domain.ErrInvalidInput)
	}
	if in.Header.TenantID == "" || len(in.Lines) == 0 {
		return domain.ErrInvalidInput
	}
	if in.Header.SourceType == "" && in.Header.SourceID == "" && in.Header.IdempotencyKey == "" {
		return fmt.Errorf("el movimiento requiere llave de idempotencia (source o explícita): %w", domain.ErrInvalidInput)
	}
	// La llave natural es el par completo; un source a medias no protege nada
	if (in.Header.SourceType == "") != (in.Header.SourceID == "") {
		return fmt.Errorf("sourceType y sourceId van juntos o ninguno: %w", domain.ErrInvalidInput)
	}
	return nil
}

// PostMovementWith ejecuta el protocolo de posteo con repositorios ya atados a
// la transacción del caller:
//  1. inserta la cabecera idempotente; en replay verifica que las líneas
//     existan (defensa contra un crash entre cabecera y líneas) y corta ahí,
//     antes de cualquier validación: un repost del movimiento que agotó el
//     stock devuelve created=false, no un error de stock;
//  2. valida stock para los consumos (FOR UPDATE, misma tx); si falla, el
//     rollback también deshace la cabecera;
//  3. por cada línea canonicaliza, costea (capas FIFO) y aplica el delta de
//     balance en la misma tx;
//  4. encola el evento de posteo en el outbox (publicación post-commit).
func (l *Ledger) PostMovementWith(
	ctx context.Context,
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	layerRepo repository.CostLayerRepository,
	outboxRepo repository.OutboxRepository,
	in PostMovementInput,
) (*PostMovementResult, error) {
	now := time.Now()
	tenantID := in.Header.TenantID

	// Canonicalizar todas las líneas antes de escribir nada
	type preparedLine struct {
		in MovementLineInput
		cq *entity.CanonicalQuantity
	}
	prepared := make([]preparedLine, 0, len(in.Lines))
	var consumption []ConsumptionLine
	for _, line := range in.Lines {
		cq, err := l.canonical.GetCanonicalMovementFields(ctx, tenantID, line.ItemID, line.Quantity, line.UOM)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, preparedLine{in: line, cq: cq})
		if cq.Quantity.IsNegative() {
			consumption = append(consumption, ConsumptionLine{
				ItemID:     line.ItemID,
				LocationID: line.LocationID,
				Quantity:   line.Quantity.Abs(),
				UOM:        line.UOM,
			})
		}
	}

	movement := &entity.InventoryMovement{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		MovementType:   in.Header.MovementType,
		Status:         entity.MovementStatusPosted,
		SourceType:     in.Header.SourceType,
		SourceID:       in.Header.SourceID,
		IdempotencyKey: in.Header.IdempotencyKey,
		ExternalRef:    in.Header.ExternalRef,
		OccurredAt:     in.Header.OccurredAt,
		PostedAt:       &now,
		Metadata:       in.Header.Metadata,
		CreatedAt:      now,
		CreatedBy:      in.Header.CreatedBy,
	}
	existing, created, err := movRepo.CreateIdempotent(ctx, movement)
	if err != nil {
		return nil, err
	}
	if !created {
		// Replay: no re-emitir líneas ni deltas, pero verificar que el intento
		// previo dejó las líneas escritas. El corte va antes de validar stock:
		// el posteo original ya consumió el inventario que validaría
		n, err := movRepo.CountLines(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, domain.WrapLedgerError(
				domain.CodeMovementIncomplete, 409,
				"el movimiento existe sin líneas: reintentar con la misma llave", domain.ErrConflict,
			).WithDetail("movementId", existing.ID).WithDetail("retryable", true)
		}
		return &PostMovementResult{MovementID: existing.ID, Created: false}, nil
	}

	// Validación de stock dentro de la misma tx, con bloqueo de balances; un
	// fallo revierte también la cabecera recién insertada
	if len(consumption) > 0 {
		vctx := in.Validation
		vctx.ForUpdate = true
		override, err := l.validator.ValidateSufficientStock(ctx, balanceRepo, tenantID, in.Header.OccurredAt, consumption, vctx)
		if err != nil {
			return nil, err
		}
		if override != nil {
			if movement.Metadata == nil {
				movement.Metadata = make(map[string]any)
			}
			movement.Metadata["negativeOverrideReason"] = override.Reason
			movement.Metadata["negativeOverrideActor"] = override.ActorID
			movement.Metadata["negativeOverrideReference"] = override.Reference
			if err := movRepo.UpdateMetadata(ctx, tenantID, movement.ID, movement.Metadata); err != nil {
				return nil, err
			}
		}
	}

	var lastUnitCost decimal.Decimal
	for _, p := range prepared {
		qty := p.cq.Quantity
		var unitCost, extendedCost decimal.Decimal

		switch {
		case in.Header.MovementType == entity.MovementTypeTransfer:
			// Traslados: costo informativo desde las capas de la ubicación de
			// la línea, sin crear ni consumir capas
			unitCost, err = l.transferLineCost(ctx, layerRepo, tenantID, p.in, lastUnitCost)
			if err != nil {
				return nil, err
			}
			extendedCost = qty.Mul(unitCost)
		case qty.GreaterThan(decimal.Zero):
			if p.in.UnitCost == nil {
				if in.Header.MovementType == entity.MovementTypeCount {
					return nil, domain.WrapLedgerError(
						domain.CodeCountUnitCostRequired, 422,
						"variación positiva de conteo sin costo unitario declarado", domain.ErrInvalidInput,
					).WithDetail("itemId", p.in.ItemID)
				}
				return nil, fmt.Errorf("entrada sin costo unitario: %w", domain.ErrInvalidInput)
			}
			unitCost = *p.in.UnitCost
			if _, err := l.costs.CreateCostLayer(ctx, layerRepo, CreateCostLayerInput{
				TenantID:     tenantID,
				ItemID:       p.in.ItemID,
				LocationID:   p.in.LocationID,
				UOM:          p.cq.UOM,
				Quantity:     qty,
				UnitCost:     unitCost,
				SourceType:   in.Header.SourceType,
				SourceID:     in.Header.SourceID,
				MovementID:   movement.ID,
				MovementType: in.Header.MovementType,
			}); err != nil {
				return nil, err
			}
			extendedCost = qty.Mul(unitCost)
		case qty.IsNegative():
			res, err := l.costs.ConsumeCostLayers(ctx, layerRepo, ConsumeInput{
				TenantID:        tenantID,
				ItemID:          p.in.ItemID,
				LocationID:      p.in.LocationID,
				Quantity:        qty.Abs(),
				ConsumptionType: in.Header.MovementType,
				MovementID:      movement.ID,
			})
			if err != nil {
				return nil, err
			}
			unitCost = res.TotalCost.Div(qty.Abs())
			extendedCost = res.TotalCost.Neg()
		default:
			// Delta cero: línea de solo registro, sin costo ni capa
		}
		lastUnitCost = unitCost

		movLine := &entity.MovementLine{
			ID:              uuid.New().String(),
			MovementID:      movement.ID,
			ItemID:          p.in.ItemID,
			LocationID:      p.in.LocationID,
			EnteredQuantity: p.cq.EnteredQuantity,
			EnteredUOM:      p.cq.EnteredUOM,
			Quantity:        qty,
			UOM:             p.cq.UOM,
			Dimension:       p.cq.Dimension,
			UnitCost:        unitCost,
			ExtendedCost:    extendedCost,
			ReasonCode:      p.in.ReasonCode,
			CreatedAt:       now,
		}
		if err := movRepo.CreateLine(ctx, movLine); err != nil {
			return nil, err
		}
		if err := balanceRepo.ApplyDelta(ctx, tenantID, p.in.ItemID, p.in.LocationID, p.cq.UOM, qty); err != nil {
			return nil, err
		}
	}

	if err := l.enqueueMovementPosted(ctx, outboxRepo, movement); err != nil {
		return nil, err
	}
	return &PostMovementResult{MovementID: movement.ID, Created: true}, nil
}

// transferLineCost costo unitario de una línea de traslado: promedio ponderado
// de las capas abiertas en la ubicación de la línea (solo lectura). Si el
// destino no tiene capas, la línea entrante hereda el costo de la saliente:
// el valor viaja con la mercancía.
func (l *Ledger) transferLineCost(
	ctx context.Context,
	layerRepo repository.CostLayerRepository,
	tenantID string,
	line MovementLineInput,
	fallback decimal.Decimal,
) (decimal.Decimal, error) {
	if line.UnitCost != nil {
		return *line.UnitCost, nil
	}
	open, err := layerRepo.ListOpen(ctx, tenantID, line.ItemID, line.LocationID)
	if err != nil {
		return decimal.Zero, err
	}
	if avg, ok := domaininv.WeightedAverageUnitCost(open); ok {
		return avg, nil
	}
	return fallback, nil
}

// enqueueMovementPosted escribe el evento en el outbox dentro de la tx de
// posteo. El dispatcher lo publica solo después del commit, así que ningún
// consumidor ve un movimiento a medio postear.
func (l *Ledger) enqueueMovementPosted(ctx context.Context, outboxRepo repository.OutboxRepository, movement *entity.InventoryMovement) error {
	return outboxRepo.Enqueue(ctx, &entity.OutboxEvent{
		ID:       uuid.New().String(),
		TenantID: movement.TenantID,
		Topic:    entity.TopicMovementPosted,
		Payload: map[string]any{
			"movementId":   movement.ID,
			"tenantId":     movement.TenantID,
			"movementType": movement.MovementType,
			"occurredAt":   movement.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
		Status:    entity.OutboxStatusPending,
		CreatedAt: time.Now(),
	})
}

// GetMovement devuelve un movimiento con sus líneas.
func (l *Ledger) GetMovement(ctx context.Context, tenantID, movementID string) (*entity.InventoryMovement, []*entity.MovementLine, error) {
	var movement *entity.InventoryMovement
	var lines []*entity.MovementLine
	err := l.txRunner.Run(ctx, func(
		movRepo repository.MovementRepository,
		_ repository.BalanceRepository,
		_ repository.CostLayerRepository,
		_ repository.OutboxRepository,
	) error {
		m, err := movRepo.GetByID(ctx, tenantID, movementID)
		if err != nil {
			return err
		}
		if m == nil {
			return domain.ErrNotFound
		}
		ls, err := movRepo.ListLines(ctx, movementID)
		if err != nil {
			return err
		}
		movement, lines = m, ls
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return movement, lines, nil
}

// VoidMovement anula un borrador. Los movimientos posteados son inmutables:
// el único deshacer económico es un ajuste o reversa.
func (l *Ledger) VoidMovement(ctx context.Context, tenantID, movementID string) error {
	return l.txRunner.Run(ctx, func(
		movRepo repository.MovementRepository,
		_ repository.BalanceRepository,
		_ repository.CostLayerRepository,
		_ repository.OutboxRepository,
	) error {
		m, err := movRepo.GetByID(ctx, tenantID, movementID)
		if err != nil {
			return err
		}
		if m == nil {
			return domain.ErrNotFound
		}
		if m.Status != entity.MovementStatusDraft {
			return domain.WrapLedgerError(
				domain.CodeMovementAlreadyPosted, 409,
				"solo un borrador puede anularse", domain.ErrConflict,
			).WithDetail("movementId", movementID).WithDetail("status", m.Status)
		}
		return movRepo.MarkVoided(ctx, tenantID, movementID)
	})
}
