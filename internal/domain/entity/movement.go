package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain/uom"
)

// Tipos de movimiento de inventario.
const (
	MovementTypeReceive    = "RECEIVE"    // entrada por recepción
	MovementTypeIssue      = "ISSUE"      // salida (consumo, despacho)
	MovementTypeTransfer   = "TRANSFER"   // traslado entre ubicaciones
	MovementTypeAdjustment = "ADJUSTMENT" // ajuste manual
	MovementTypeCount      = "COUNT"      // ajuste generado por conteo cíclico
)

// Estados de un movimiento. Una vez posteado es inmutable; el único "deshacer"
// económico es un ajuste o reversa posterior.
const (
	MovementStatusDraft  = "draft"
	MovementStatusPosted = "posted"
	MovementStatusVoided = "voided"
)

// InventoryMovement cabecera de un movimiento de inventario. La combinación
// (SourceType, SourceID) o IdempotencyKey actúa como llave natural de
// idempotencia: un repost con la misma llave devuelve el movimiento existente.
type InventoryMovement struct {
	ID             string
	TenantID       string
	MovementType   string
	Status         string
	SourceType     string
	SourceID       string
	IdempotencyKey string
	ExternalRef    string
	OccurredAt     time.Time
	PostedAt       *time.Time
	Metadata       map[string]any
	CreatedAt      time.Time
	CreatedBy      string
}

// MovementLine línea de movimiento: delta firmado en cantidad ingresada y
// canónica. La suma de deltas canónicos por (ítem, ubicación, UOM canónica)
// sobre movimientos posteados define el balance on-hand.
type MovementLine struct {
	ID              string
	MovementID      string
	ItemID          string
	LocationID      string
	EnteredQuantity decimal.Decimal
	EnteredUOM      string
	Quantity        decimal.Decimal // delta canónico firmado
	UOM             string          // unidad canónica
	Dimension       uom.Dimension
	UnitCost        decimal.Decimal
	ExtendedCost    decimal.Decimal
	ReasonCode      string
	CreatedAt       time.Time
}
