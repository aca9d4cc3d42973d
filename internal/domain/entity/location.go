package entity

import "time"

// Roles de ubicación usados por las reglas de disposición QC.
const (
	LocationRoleStorage   = "STORAGE"
	LocationRoleReceiving = "RECEIVING"
	LocationRoleQCHold    = "QC_HOLD"
	LocationRoleReject    = "REJECT"
)

// Location ubicación física dentro de una bodega (maestro consumido por el motor).
// Sellable marca si el stock en la ubicación cuenta como vendible; las reglas de
// disposición QC dependen de este flag.
type Location struct {
	ID          string
	TenantID    string
	WarehouseID string
	Code        string
	Role        string
	Sellable    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
