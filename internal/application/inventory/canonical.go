package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
	"github.com/tu-usuario/stock-ledger/internal/domain/uom"
)

// CanonicalService canonicaliza cantidades por ítem: valida la configuración
// de dimensión/unidad canónica y aplica el factor de conversión registrado.
// Toda línea de movimiento pasa por aquí antes de tocar balances o costos.
type CanonicalService struct {
	itemRepo repository.ItemRepository
}

// NewCanonicalService construye el servicio.
func NewCanonicalService(itemRepo repository.ItemRepository) *CanonicalService {
	return &CanonicalService{itemRepo: itemRepo}
}

// ConvertToCanonical convierte una cantidad ingresada a la unidad canónica del
// ítem. Unidades fuera de la tabla conocida solo se aceptan en la dimensión
// count (empaques por ítem); en las demás dimensiones son error duro.
func (s *CanonicalService) ConvertToCanonical(
	ctx context.Context,
	tenantID, itemID string,
	quantity decimal.Decimal,
	fromUOM string,
) (*entity.CanonicalQuantity, error) {
	cfg, err := s.itemRepo.GetUOMConfig(ctx, tenantID, itemID)
	if err != nil {
		return nil, fmt.Errorf("get uom config: %w", err)
	}
	if cfg == nil {
		return nil, domain.WrapLedgerError(
			domain.CodeItemCanonicalUOMRequired, 422,
			"el ítem no tiene configuración de unidad canónica", domain.ErrInvalidInput,
		).WithDetail("itemId", itemID)
	}

	canonical, ok := uom.CanonicalUnit(cfg.Dimension)
	if !ok || cfg.CanonicalUOM != canonical {
		return nil, domain.WrapLedgerError(
			domain.CodeItemCanonicalUOMInvalid, 422,
			"la unidad canónica del ítem no coincide con la tabla fija por dimensión", domain.ErrInvalidInput,
		).WithDetail("itemId", itemID).
			WithDetail("dimension", string(cfg.Dimension)).
			WithDetail("canonicalUom", cfg.CanonicalUOM)
	}

	result := &entity.CanonicalQuantity{
		UOM:             canonical,
		Dimension:       cfg.Dimension,
		EnteredQuantity: quantity,
		EnteredUOM:      fromUOM,
	}

	// Ya canónica: sin conversión
	if fromUOM == canonical {
		result.Quantity = quantity
		return result, nil
	}

	if d, known := uom.UnitDimension(fromUOM); known {
		if d != cfg.Dimension {
			return nil, domain.WrapLedgerError(
				domain.CodeUOMDimensionMismatch, 422,
				"la unidad ingresada pertenece a otra dimensión", domain.ErrInvalidInput,
			).WithDetail("itemId", itemID).
				WithDetail("fromUom", fromUOM).
				WithDetail("expectedDimension", string(cfg.Dimension))
		}
	} else if cfg.Dimension != uom.DimensionCount {
		// Unidad desconocida fuera de count: error duro
		return nil, domain.WrapLedgerError(
			domain.CodeUOMDimensionMismatch, 422,
			"unidad desconocida; solo la dimensión count acepta unidades por ítem", domain.ErrInvalidInput,
		).WithDetail("itemId", itemID).WithDetail("fromUom", fromUOM)
	}

	factor, err := s.lookupFactor(ctx, tenantID, itemID, fromUOM, canonical)
	if err != nil {
		return nil, err
	}
	result.Quantity = quantity.Mul(factor)
	return result, nil
}

// GetCanonicalMovementFields devuelve los campos canónicos y los ingresados
// listos para armar una línea de movimiento (mismo contrato que
// ConvertToCanonical; nombre separado para los callers de posteo).
func (s *CanonicalService) GetCanonicalMovementFields(
	ctx context.Context,
	tenantID, itemID string,
	quantity decimal.Decimal,
	fromUOM string,
) (*entity.CanonicalQuantity, error) {
	return s.ConvertToCanonical(ctx, tenantID, itemID, quantity, fromUOM)
}

// lookupFactor busca el factor directo y si no existe el recíproco (A→B
// registrado implica B→A = 1/factor). Factor ausente es error duro.
func (s *CanonicalService) lookupFactor(ctx context.Context, tenantID, itemID, fromUOM, toUOM string) (decimal.Decimal, error) {
	conv, err := s.itemRepo.GetConversion(ctx, tenantID, itemID, fromUOM, toUOM)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get conversion: %w", err)
	}
	if conv != nil {
		return conv.Factor, nil
	}
	reverse, err := s.itemRepo.GetConversion(ctx, tenantID, itemID, toUOM, fromUOM)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get conversion: %w", err)
	}
	if reverse != nil && !reverse.Factor.IsZero() {
		return decimal.NewFromInt(1).Div(reverse.Factor), nil
	}
	return decimal.Zero, domain.WrapLedgerError(
		domain.CodeUOMConversionMissing, 422,
		"no hay factor de conversión registrado para la unidad", domain.ErrInvalidInput,
	).WithDetail("itemId", itemID).
		WithDetail("fromUom", fromUOM).
		WithDetail("toUom", toUOM)
}
