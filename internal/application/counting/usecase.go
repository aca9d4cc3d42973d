package counting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
	"github.com/tu-usuario/stock-ledger/internal/application/inventory"
)

// UseCase conteos cíclicos: creación, consulta, cancelación y el protocolo de
// posteo que convierte un conteo físico en un solo movimiento de ajuste con
// verificación post-reconciliación.
type UseCase struct {
	txRunner  TxRunner
	countRepo repository.CycleCountRepository
	canonical *inventory.CanonicalService
	validator *inventory.StockValidator
	ledger    *inventory.Ledger
}

// NewUseCase construye el caso de uso. countRepo va atado al pool (lecturas y
// creación fuera de tx); el posteo usa los repos de la transacción serializable.
func NewUseCase(
	txRunner TxRunner,
	countRepo repository.CycleCountRepository,
	canonical *inventory.CanonicalService,
	validator *inventory.StockValidator,
	ledger *inventory.Ledger,
) *UseCase {
	return &UseCase{
		txRunner:  txRunner,
		countRepo: countRepo,
		canonical: canonical,
		validator: validator,
		ledger:    ledger,
	}
}

// CreateCountLineInput línea contada. UnitCost solo es obligatorio si la
// variación resulta positiva al postear.
type CreateCountLineInput struct {
	ItemID          string
	LocationID      string
	UOM             string
	CountedQuantity decimal.Decimal
	ReasonCode      string
	UnitCost        *decimal.Decimal
}

// CreateCountInput cabecera + líneas del conteo.
type CreateCountInput struct {
	TenantID    string
	WarehouseID string
	LocationID  string
	CountedAt   time.Time
	CreatedBy   string
	Lines       []CreateCountLineInput
}

// CreateInventoryCount registra un conteo en borrador. Las líneas siguen
// siendo mutables hasta el posteo.
func (uc *UseCase) CreateInventoryCount(ctx context.Context, in CreateCountInput) (*entity.CycleCount, error) {
	if in.TenantID == "" || len(in.Lines) == 0 {
		return nil, domain.ErrInvalidInput
	}
	count := &entity.CycleCount{
		ID:          uuid.New().String(),
		TenantID:    in.TenantID,
		WarehouseID: in.WarehouseID,
		LocationID:  in.LocationID,
		Status:      entity.CycleCountStatusDraft,
		CountedAt:   in.CountedAt,
		CreatedAt:   time.Now(),
		CreatedBy:   in.CreatedBy,
	}
	for _, line := range in.Lines {
		locationID := line.LocationID
		if locationID == "" {
			locationID = in.LocationID
		}
		count.Lines = append(count.Lines, &entity.CycleCountLine{
			ID:              uuid.New().String(),
			CountID:         count.ID,
			ItemID:          line.ItemID,
			LocationID:      locationID,
			UOM:             line.UOM,
			CountedQuantity: line.CountedQuantity,
			ReasonCode:      line.ReasonCode,
			UnitCost:        line.UnitCost,
		})
	}
	if err := uc.countRepo.Create(ctx, count); err != nil {
		return nil, err
	}
	return count, nil
}

// GetInventoryCount devuelve el conteo con sus líneas.
func (uc *UseCase) GetInventoryCount(ctx context.Context, tenantID, id string) (*entity.CycleCount, error) {
	count, err := uc.countRepo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if count == nil {
		return nil, domain.ErrNotFound
	}
	return count, nil
}

// CancelInventoryCount transición draft → canceled (terminal).
func (uc *UseCase) CancelInventoryCount(ctx context.Context, tenantID, id string) error {
	count, err := uc.countRepo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if count == nil {
		return domain.ErrNotFound
	}
	switch count.Status {
	case entity.CycleCountStatusDraft:
		return uc.countRepo.MarkCanceled(ctx, id)
	case entity.CycleCountStatusPosted:
		return domain.WrapLedgerError(
			domain.CodeCountAlreadyPosted, 409,
			"un conteo posteado no puede cancelarse", domain.ErrConflict,
		).WithDetail("countId", id)
	default:
		return domain.WrapLedgerError(
			domain.CodeCountAlreadyCanceled, 409,
			"el conteo ya está cancelado", domain.ErrConflict,
		).WithDetail("countId", id)
	}
}
