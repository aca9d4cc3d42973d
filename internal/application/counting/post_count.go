package counting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/application/inventory"
	"github.com/tu-usuario/stock-ledger/internal/domain"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

// reconcileTolerance tolerancia del chequeo post-reconciliación (1e-6).
var reconcileTolerance = decimal.NewFromFloat(1e-6)

// PostInventoryCount postea un conteo dentro de una transacción serializable
// (reintento acotado ante fallas de serialización, a cargo del TxRunner):
//  1. bloquea cabecera y líneas; rechaza posted/canceled;
//  2. registro de ejecución por llave de idempotencia con digest del request;
//  3. variancia = contado − cantidad de sistema re-derivada (nunca confiada
//     del request); variancia sin razón o positiva sin costo se rechazan;
//  4. variancias negativas pasan por validación de stock antes de escribir;
//  5. un solo movimiento de ajuste vía el coordinador;
//  6. chequeo post-reconciliación: el balance re-leído debe igualar lo
//     contado o toda la transacción aborta;
//  7. marca posted, estampa el movimiento, cierra la ejecución y notifica.
func (uc *UseCase) PostInventoryCount(
	ctx context.Context,
	tenantID, countID, idempotencyKey string,
	vctx inventory.ValidationContext,
) (*entity.CycleCount, error) {
	if idempotencyKey == "" {
		return nil, fmt.Errorf("el posteo de conteo requiere idempotency key: %w", domain.ErrInvalidInput)
	}

	var result *entity.CycleCount
	err := uc.txRunner.RunSerializable(ctx, func(
		movRepo repository.MovementRepository,
		balanceRepo repository.BalanceRepository,
		layerRepo repository.CostLayerRepository,
		outboxRepo repository.OutboxRepository,
		countRepo repository.CycleCountRepository,
	) error {
		count, err := countRepo.GetForUpdate(ctx, tenantID, countID)
		if err != nil {
			return err
		}
		if count == nil {
			return domain.ErrNotFound
		}
		if count.Status == entity.CycleCountStatusCanceled {
			return domain.WrapLedgerError(
				domain.CodeCountAlreadyCanceled, 409,
				"el conteo está cancelado", domain.ErrConflict,
			).WithDetail("countId", countID)
		}

		digest := requestHash(count)
		exec, created, err := countRepo.InsertOrGetExecution(ctx, &entity.PostingExecution{
			IdempotencyKey: idempotencyKey,
			TenantID:       tenantID,
			CountID:        countID,
			RequestHash:    digest,
			Status:         entity.ExecutionStatusInProgress,
			CreatedAt:      time.Now(),
		})
		if err != nil {
			return err
		}
		if !created {
			if exec.RequestHash != digest {
				return domain.WrapLedgerError(
					domain.CodeIdempotencyConflict, 409,
					"la llave de idempotencia ya se usó con un request distinto", domain.ErrConflict,
				).WithDetail("idempotencyKey", idempotencyKey)
			}
			if exec.Status == entity.ExecutionStatusSucceeded {
				// Replay seguro: devolver el conteo ya posteado. Un conteo sin
				// variación cierra sin movimiento, así que el id de movimiento
				// puede venir nulo.
				result = count
				return nil
			}
			return domain.WrapLedgerError(
				domain.CodeIdempotencyIncomplete, 409,
				"hay un intento previo sin resultado; reintentar con la misma llave", domain.ErrConflict,
			).WithDetail("idempotencyKey", idempotencyKey).WithDetail("retryable", true)
		}
		if count.Status == entity.CycleCountStatusPosted {
			// Posteado bajo otra llave: no es un replay seguro
			return domain.WrapLedgerError(
				domain.CodeCountAlreadyPosted, 409,
				"el conteo ya está posteado", domain.ErrConflict,
			).WithDetail("countId", countID)
		}

		type linePost struct {
			line     *entity.CycleCountLine
			cq       *entity.CanonicalQuantity
			variance decimal.Decimal
		}
		var posts []linePost
		var nonzero []linePost
		for _, line := range count.Lines {
			cq, err := uc.canonical.ConvertToCanonical(ctx, tenantID, line.ItemID, line.CountedQuantity, line.UOM)
			if err != nil {
				return err
			}
			// Cantidad de sistema re-derivada del balance bloqueado, nunca
			// tomada del request
			bal, err := balanceRepo.GetForUpdate(ctx, tenantID, line.ItemID, line.LocationID, cq.UOM)
			if err != nil {
				return err
			}
			system := bal.OnHand
			variance := cq.Quantity.Sub(system)
			if err := countRepo.UpdateLineSnapshot(ctx, line.ID, system, variance); err != nil {
				return err
			}
			line.SystemQuantity = system
			line.VarianceQuantity = variance

			lp := linePost{line: line, cq: cq, variance: variance}
			posts = append(posts, lp)
			if variance.Abs().LessThanOrEqual(reconcileTolerance) {
				continue
			}
			if strings.TrimSpace(line.ReasonCode) == "" {
				return domain.WrapLedgerError(
					domain.CodeCountReasonRequired, 422,
					"una variación distinta de cero exige código de razón", domain.ErrInvalidInput,
				).WithDetail("itemId", line.ItemID).WithDetail("variance", variance.String())
			}
			if variance.GreaterThan(decimal.Zero) && line.UnitCost == nil {
				return domain.WrapLedgerError(
					domain.CodeCountUnitCostRequired, 422,
					"una variación positiva exige costo unitario declarado", domain.ErrInvalidInput,
				).WithDetail("itemId", line.ItemID)
			}
			nonzero = append(nonzero, lp)
		}

		// Variancias negativas pasan por validación de stock antes de
		// escribir el movimiento
		var consumption []inventory.ConsumptionLine
		for _, lp := range nonzero {
			if lp.variance.IsNegative() {
				consumption = append(consumption, inventory.ConsumptionLine{
					ItemID:     lp.line.ItemID,
					LocationID: lp.line.LocationID,
					Quantity:   lp.variance.Abs(),
					UOM:        lp.cq.UOM,
				})
			}
		}
		if len(consumption) > 0 {
			lockCtx := vctx
			lockCtx.ForUpdate = true
			if _, err := uc.validator.ValidateSufficientStock(ctx, balanceRepo, tenantID, count.CountedAt, consumption, lockCtx); err != nil {
				return err
			}
		}

		movementID := ""
		if len(nonzero) > 0 {
			movLines := make([]inventory.MovementLineInput, 0, len(nonzero))
			for _, lp := range nonzero {
				movLines = append(movLines, inventory.MovementLineInput{
					ItemID:     lp.line.ItemID,
					LocationID: lp.line.LocationID,
					Quantity:   lp.variance,
					UOM:        lp.cq.UOM,
					UnitCost:   lp.line.UnitCost,
					ReasonCode: lp.line.ReasonCode,
				})
			}
			res, err := uc.ledger.PostMovementWith(ctx, movRepo, balanceRepo, layerRepo, outboxRepo, inventory.PostMovementInput{
				Header: inventory.MovementHeaderInput{
					TenantID:       tenantID,
					MovementType:   entity.MovementTypeCount,
					SourceType:     "cycle_count",
					SourceID:       countID,
					IdempotencyKey: idempotencyKey,
					OccurredAt:     count.CountedAt,
					CreatedBy:      vctx.ActorID,
				},
				Lines:      movLines,
				Validation: vctx,
			})
			if err != nil {
				return err
			}
			movementID = res.MovementID
		}

		// Chequeo post-reconciliación: el balance re-leído debe igualar lo
		// contado; cualquier desfase aborta toda la transacción
		for _, lp := range posts {
			bal, err := balanceRepo.Get(ctx, tenantID, lp.line.ItemID, lp.line.LocationID, lp.cq.UOM)
			if err != nil {
				return err
			}
			if bal.OnHand.Sub(lp.cq.Quantity).Abs().GreaterThan(reconcileTolerance) {
				return domain.WrapLedgerError(
					domain.CodeCountReconciliationFailed, 500,
					"el balance posterior al posteo no coincide con lo contado", domain.ErrConflict,
				).WithDetail("itemId", lp.line.ItemID).
					WithDetail("locationId", lp.line.LocationID).
					WithDetail("expected", lp.cq.Quantity.String()).
					WithDetail("actual", bal.OnHand.String())
			}
		}

		now := time.Now()
		if err := countRepo.MarkPosted(ctx, countID, movementID, now); err != nil {
			return err
		}
		if err := countRepo.MarkExecutionSucceeded(ctx, tenantID, idempotencyKey, movementID); err != nil {
			return err
		}
		if err := outboxRepo.Enqueue(ctx, &entity.OutboxEvent{
			ID:       uuid.New().String(),
			TenantID: tenantID,
			Topic:    entity.TopicCountPosted,
			Payload: map[string]any{
				"countId":    countID,
				"tenantId":   tenantID,
				"movementId": movementID,
			},
			Status:    entity.OutboxStatusPending,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		count.Status = entity.CycleCountStatusPosted
		count.PostedAt = &now
		if movementID != "" {
			count.MovementID = &movementID
		}
		result = count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// requestHash digest determinístico del request de posteo: líneas ordenadas
// por (ítem, ubicación, unidad) concatenadas campo a campo y pasadas por
// SHA-256. Dos requests con el mismo digest son el mismo posteo.
func requestHash(count *entity.CycleCount) string {
	lines := make([]*entity.CycleCountLine, len(count.Lines))
	copy(lines, count.Lines)
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ItemID != lines[j].ItemID {
			return lines[i].ItemID < lines[j].ItemID
		}
		if lines[i].LocationID != lines[j].LocationID {
			return lines[i].LocationID < lines[j].LocationID
		}
		return lines[i].UOM < lines[j].UOM
	})

	var b strings.Builder
	b.WriteString(count.TenantID)
	b.WriteString("|")
	b.WriteString(count.ID)
	for _, line := range lines {
		b.WriteString("|")
		b.WriteString(line.ItemID)
		b.WriteString("|")
		b.WriteString(line.LocationID)
		b.WriteString("|")
		b.WriteString(line.UOM)
		b.WriteString("|")
		b.WriteString(line.CountedQuantity.String())
		b.WriteString("|")
		b.WriteString(line.ReasonCode)
		b.WriteString("|")
		if line.UnitCost != nil {
			b.WriteString(line.UnitCost.String())
		} else {
			b.WriteString("-")
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
