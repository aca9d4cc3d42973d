package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de un conteo cíclico: draft → posted o draft → canceled, ambos
// terminales. Repostear un conteo posteado se rechaza.
const (
	CycleCountStatusDraft    = "draft"
	CycleCountStatusPosted   = "posted"
	CycleCountStatusCanceled = "canceled"
)

// Estados del registro de ejecución de posteo (guardia de idempotencia).
const (
	ExecutionStatusInProgress = "IN_PROGRESS"
	ExecutionStatusSucceeded  = "SUCCEEDED"
)

// CycleCount cabecera de un conteo físico sobre una ubicación/bodega.
type CycleCount struct {
	ID          string
	TenantID    string
	WarehouseID string
	LocationID  string
	Status      string
	CountedAt   time.Time
	PostedAt    *time.Time
	MovementID  *string
	Lines       []*CycleCountLine
	CreatedAt   time.Time
	CreatedBy   string
}

// CycleCountLine línea de conteo. Mutable hasta el posteo; al postear,
// SystemQuantity y VarianceQuantity quedan congelados como snapshot permanente.
// UnitCost es obligatorio cuando la variación resulta positiva (crea capa).
type CycleCountLine struct {
	ID               string
	CountID          string
	ItemID           string
	LocationID       string
	UOM              string
	CountedQuantity  decimal.Decimal
	SystemQuantity   decimal.Decimal
	VarianceQuantity decimal.Decimal
	ReasonCode       string
	UnitCost         *decimal.Decimal
}

// PostingExecution registro de ejecución del posteo de un conteo: protege
// contra submissions duplicadas o concurrentes bajo la misma llave.
type PostingExecution struct {
	IdempotencyKey string
	TenantID       string
	CountID        string
	RequestHash    string
	Status         string
	MovementID     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
