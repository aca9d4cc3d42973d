package entity

import "time"

// Tópicos publicados por el dispatcher del outbox.
const (
	TopicMovementPosted = "inventory.movement.posted"
	TopicCountPosted    = "inventory.count.posted"
)

// Estados de un evento de outbox.
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxEvent evento escrito dentro de la misma transacción que el posteo.
// El dispatcher lo publica después del commit: los consumidores nunca ven un
// movimiento a medio postear.
type OutboxEvent struct {
	ID        string
	TenantID  string
	Topic     string
	Payload   map[string]any
	Status    string
	LockedBy  string
	LockedAt  *time.Time
	SentAt    *time.Time
	LastError string
	CreatedAt time.Time
}
