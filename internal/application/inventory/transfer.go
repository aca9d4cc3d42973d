package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

// Disposiciones QC soportadas por el traslado.
const (
	DispositionAccept = "accept"
	DispositionHold   = "hold"
	DispositionReject = "reject"
)

// TransferService traslado entre ubicaciones: exactamente dos líneas (salida
// negativa en origen, entrada positiva en destino) bajo un solo movimiento.
// Nunca muta capas de costo.
type TransferService struct {
	ledger    *Ledger
	locations repository.LocationRepository
}

// NewTransferService construye el servicio.
func NewTransferService(ledger *Ledger, locations repository.LocationRepository) *TransferService {
	return &TransferService{ledger: ledger, locations: locations}
}

// TransferInput entrada del traslado. Disposition vacío = traslado normal;
// accept/hold/reject aplican las reglas de ubicación QC.
type TransferInput struct {
	TenantID       string
	ItemID         string
	FromLocationID string
	ToLocationID   string
	Quantity       decimal.Decimal
	UOM            string
	SourceType     string
	SourceID       string
	Disposition    string
	OccurredAt     time.Time
	CreatedBy      string
	Validation     ValidationContext
}

// TransferInventory valida ubicaciones y disposición, corre la validación de
// stock contra el origen y postea vía el coordinador.
func (s *TransferService) TransferInventory(ctx context.Context, in TransferInput) (*PostMovementResult, error) {
	if in.FromLocationID == in.ToLocationID {
		return nil, domain.WrapLedgerError(
			domain.CodeTransferSameLocation, 422,
			"origen y destino no pueden ser la misma ubicación", domain.ErrInvalidInput,
		).WithDetail("locationId", in.FromLocationID)
	}
	if !in.Quantity.GreaterThan(decimal.Zero) {
		return nil, domain.WrapLedgerError(
			domain.CodeTransferInvalidQuantity, 422,
			"la cantidad a trasladar debe ser positiva", domain.ErrInvalidInput,
		).WithDetail("quantity", in.Quantity.String())
	}

	from, err := s.locations.GetByID(ctx, in.TenantID, in.FromLocationID)
	if err != nil {
		return nil, err
	}
	to, err := s.locations.GetByID(ctx, in.TenantID, in.ToLocationID)
	if err != nil {
		return nil, err
	}
	if from == nil || to == nil {
		return nil, domain.ErrNotFound
	}
	if err := validateDisposition(in.Disposition, to); err != nil {
		return nil, err
	}

	metadata := map[string]any{}
	if in.Disposition != "" {
		metadata["qcDisposition"] = in.Disposition
	}

	return s.ledger.PostMovement(ctx, PostMovementInput{
		Header: MovementHeaderInput{
			TenantID:     in.TenantID,
			MovementType: entity.MovementTypeTransfer,
			SourceType:   in.SourceType,
			SourceID:     in.SourceID,
			OccurredAt:   in.OccurredAt,
			Metadata:     metadata,
			CreatedBy:    in.CreatedBy,
		},
		// Orden fijo: salida primero para que la entrada herede el costo
		// cuando el destino no tiene capas
		Lines: []MovementLineInput{
			{ItemID: in.ItemID, LocationID: in.FromLocationID, Quantity: in.Quantity.Neg(), UOM: in.UOM},
			{ItemID: in.ItemID, LocationID: in.ToLocationID, Quantity: in.Quantity, UOM: in.UOM},
		},
		Validation: in.Validation,
	})
}

// validateDisposition reglas QC: accept exige destino vendible; hold y reject
// exigen destino no vendible.
func validateDisposition(disposition string, to *entity.Location) error {
	switch disposition {
	case "":
		return nil
	case DispositionAccept:
		if !to.Sellable {
			return domain.WrapLedgerError(
				domain.CodeTransferLocationSellable, 409,
				"la disposición accept exige un destino vendible", domain.ErrConflict,
			).WithDetail("locationId", to.ID)
		}
	case DispositionHold, DispositionReject:
		if to.Sellable {
			return domain.WrapLedgerError(
				domain.CodeTransferLocationSellable, 409,
				"las disposiciones hold/reject exigen un destino no vendible", domain.ErrConflict,
			).WithDetail("locationId", to.ID)
		}
	default:
		return domain.ErrInvalidInput
	}
	return nil
}
