package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")
)

// Códigos legibles por máquina para los errores estructurados del motor.
// Los consumidores (HTTP, workers, UI) mapean sobre estos códigos, nunca
// sobre el texto del mensaje.
const (
	CodeUOMDimensionMismatch      = "UOM_DIMENSION_MISMATCH"
	CodeUOMConversionMissing      = "UOM_CONVERSION_MISSING"
	CodeItemCanonicalUOMRequired  = "ITEM_CANONICAL_UOM_REQUIRED"
	CodeItemCanonicalUOMInvalid   = "ITEM_CANONICAL_UOM_INVALID"
	CodeInsufficientStock         = "INSUFFICIENT_STOCK"
	CodeOverrideNotAllowed        = "NEGATIVE_OVERRIDE_NOT_ALLOWED"
	CodeOverrideRequiresReason    = "NEGATIVE_OVERRIDE_REQUIRES_REASON"
	CodeMovementIncomplete        = "INVENTORY_MOVEMENT_INCOMPLETE"
	CodeIdempotencyConflict       = "IDEMPOTENCY_CONFLICT"
	CodeIdempotencyIncomplete     = "IDEMPOTENCY_INCOMPLETE"
	CodeCountReasonRequired       = "COUNT_REASON_REQUIRED"
	CodeCountUnitCostRequired     = "CYCLE_COUNT_UNIT_COST_REQUIRED"
	CodeCountReconciliationFailed = "CYCLE_COUNT_RECONCILIATION_FAILED"
	CodeCountAlreadyPosted        = "CYCLE_COUNT_ALREADY_POSTED"
	CodeCountAlreadyCanceled      = "CYCLE_COUNT_ALREADY_CANCELED"
	CodeTransferSameLocation      = "TRANSFER_SAME_LOCATION"
	CodeTransferInvalidQuantity   = "TRANSFER_INVALID_QUANTITY"
	CodeTransferLocationSellable  = "TRANSFER_LOCATION_SELLABLE_MISMATCH"
	CodeMovementAlreadyPosted     = "MOVEMENT_ALREADY_POSTED"
)

// LedgerError error estructurado del motor de inventario: código estable,
// status HTTP sugerido y detalles para el caller. Envuelve un sentinel de
// dominio cuando aplica para interoperar con errors.Is.
type LedgerError struct {
	Code    string
	Status  int
	Message string
	Details map[string]any
	wrapped error
}

// NewLedgerError construye un error estructurado sin detalles.
func NewLedgerError(code string, status int, message string) *LedgerError {
	return &LedgerError{Code: code, Status: status, Message: message}
}

// WrapLedgerError igual que NewLedgerError pero enlaza un sentinel (errors.Is).
func WrapLedgerError(code string, status int, message string, sentinel error) *LedgerError {
	return &LedgerError{Code: code, Status: status, Message: message, wrapped: sentinel}
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LedgerError) Unwrap() error { return e.wrapped }

// WithDetail agrega un detalle y devuelve el mismo error (encadenable al construir).
func (e *LedgerError) WithDetail(key string, value any) *LedgerError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// AsLedgerError extrae el *LedgerError de una cadena de errores, si existe.
func AsLedgerError(err error) (*LedgerError, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
