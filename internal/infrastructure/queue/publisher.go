package queue

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
)

// Publisher publica eventos de dominio en un stream de Redis. El payload
// viaja como JSON en el campo "payload" junto con topic y tenant.
type Publisher struct {
	client *redis.Client
	stream string
}

// NewRedisClient construye el cliente de Redis compartido por publisher y lock.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

// Ping verifica la conexión.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish agrega el evento al stream con XADD.
func (p *Publisher) Publish(ctx context.Context, event *entity.OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"eventId":  event.ID,
			"tenantId": event.TenantID,
			"topic":    event.Topic,
			"payload":  string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}
