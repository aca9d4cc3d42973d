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

// CostLayerService costeo FIFO sobre capas. Las capas solo nacen de
// recepciones y variaciones positivas; los traslados tienen prohibido crearlas
// o consumirlas (invariante de diseño, no optimización).
type CostLayerService struct{}

// NewCostLayerService construye el servicio.
func NewCostLayerService() *CostLayerService {
	return &CostLayerService{}
}

// CreateCostLayerInput entrada para crear una capa.
type CreateCostLayerInput struct {
	TenantID     string
	ItemID       string
	LocationID   string
	UOM          string
	Quantity     decimal.Decimal
	UnitCost     decimal.Decimal
	SourceType   string
	SourceID     string
	MovementID   string
	MovementType string
}

// CreateCostLayer agrega una capa nueva. Rechaza cantidades no positivas,
// costos negativos y cualquier intento desde un traslado.
func (s *CostLayerService) CreateCostLayer(
	ctx context.Context,
	layers repository.CostLayerRepository,
	in CreateCostLayerInput,
) (*entity.CostLayer, error) {
	if in.MovementType == entity.MovementTypeTransfer {
		return nil, fmt.Errorf("un traslado no puede crear capas de costo: %w", domain.ErrInvalidInput)
	}
	if in.Quantity.LessThanOrEqual(decimal.Zero) || in.UnitCost.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("capa con cantidad o costo inválido: %w", domain.ErrInvalidInput)
	}
	layer := &entity.CostLayer{
		ID:                uuid.New().String(),
		TenantID:          in.TenantID,
		ItemID:            in.ItemID,
		LocationID:        in.LocationID,
		UOM:               in.UOM,
		OriginalQuantity:  in.Quantity,
		RemainingQuantity: in.Quantity,
		UnitCost:          in.UnitCost,
		SourceType:        in.SourceType,
		SourceID:          in.SourceID,
		MovementID:        in.MovementID,
		CreatedAt:         time.Now(),
	}
	if err := layers.Create(ctx, layer); err != nil {
		return nil, err
	}
	return layer, nil
}

// ConsumeInput entrada para consumir capas (cantidad positiva).
type ConsumeInput struct {
	TenantID        string
	ItemID          string
	LocationID      string
	Quantity        decimal.Decimal
	ConsumptionType string
	MovementID      string
}

// ConsumeResult costo total consumido y el detalle por capa.
type ConsumeResult struct {
	TotalCost   decimal.Decimal
	Allocations []domaininv.Allocation
}

// ConsumeCostLayers consume capas en orden FIFO (bloqueadas con FOR UPDATE),
// registra una fila de consumo por capa tocada y devuelve el costo total.
// Si las capas no alcanzan, el faltante sale a costo 0: el costeo nunca
// bloquea un movimiento que la validación de stock ya permitió.
func (s *CostLayerService) ConsumeCostLayers(
	ctx context.Context,
	layers repository.CostLayerRepository,
	in ConsumeInput,
) (*ConsumeResult, error) {
	if in.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("consumo con cantidad no positiva: %w", domain.ErrInvalidInput)
	}
	open, err := layers.ListOpenForUpdate(ctx, in.TenantID, in.ItemID, in.LocationID)
	if err != nil {
		return nil, err
	}
	allocations, totalCost := domaininv.AllocateFIFO(open, in.Quantity)
	for _, alloc := range allocations {
		if err := layers.UpdateRemaining(ctx, alloc.LayerID, alloc.RemainingAfter); err != nil {
			return nil, err
		}
		consumption := &entity.CostLayerConsumption{
			ID:                  uuid.New().String(),
			LayerID:             alloc.LayerID,
			QuantityConsumed:    alloc.Quantity,
			UnitCost:            alloc.UnitCost,
			ConsumingMovementID: in.MovementID,
			CreatedAt:           time.Now(),
		}
		if err := layers.CreateConsumption(ctx, consumption); err != nil {
			return nil, err
		}
	}
	return &ConsumeResult{TotalCost: totalCost, Allocations: allocations}, nil
}
