package queue

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
	"github.com/tu-usuario/stock-ledger/pkg/logger"
)

const dispatchLockKey = "stock-ledger:outbox:dispatch"

// Dispatcher drena el outbox y publica al stream después del commit.
// El lock distribuido evita que dos instancias drenen a la vez; SKIP LOCKED
// en el claim cubre el caso en que el lock expire a mitad de lote.
type Dispatcher struct {
	outbox    repository.OutboxRepository
	publisher *Publisher
	locker    *redislock.Client
	log       *logger.Logger

	workerID     string
	batchSize    int
	pollInterval time.Duration
	lockTTL      time.Duration
}

func NewDispatcher(outbox repository.OutboxRepository, publisher *Publisher, locker *redislock.Client, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		outbox:       outbox,
		publisher:    publisher,
		locker:       locker,
		log:          log,
		workerID:     uuid.NewString(),
		batchSize:    50,
		pollInterval: 500 * time.Millisecond,
		lockTTL:      30 * time.Second,
	}
}

// Run corre el loop de despacho hasta que el contexto se cancele.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info().Str("workerId", d.workerID).Msg("outbox dispatcher iniciado")
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Str("workerId", d.workerID).Msg("outbox dispatcher detenido")
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			d.log.Info().Str("workerId", d.workerID).Msg("outbox dispatcher detenido")
			return
		case <-time.After(d.pollInterval):
		}
	}
}

func (d *Dispatcher) dispatchOnce(ctx context.Context) {
	lock, err := d.locker.Obtain(ctx, dispatchLockKey, d.lockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		// Otra instancia tiene el turno.
		return
	}
	if err != nil {
		d.log.Error().Err(err).Msg("no se pudo obtener el lock del outbox")
		return
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	events, err := d.outbox.ClaimBatch(ctx, d.workerID, d.batchSize)
	if err != nil {
		d.log.Error().Err(err).Msg("error reclamando lote del outbox")
		return
	}
	for _, event := range events {
		d.publish(ctx, event)
	}
}

func (d *Dispatcher) publish(ctx context.Context, event *entity.OutboxEvent) {
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.log.Error().Err(err).
			Str("eventId", event.ID).
			Str("topic", event.Topic).
			Msg("error publicando evento; vuelve a PENDING")
		if markErr := d.outbox.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
			d.log.Error().Err(markErr).Str("eventId", event.ID).Msg("error marcando evento fallido")
		}
		return
	}
	if err := d.outbox.MarkSent(ctx, event.ID); err != nil {
		// El evento ya salió; un MarkSent fallido produce a lo sumo un duplicado
		// en el siguiente ciclo (entrega at-least-once).
		d.log.Error().Err(err).Str("eventId", event.ID).Msg("error marcando evento enviado")
		return
	}
	d.log.Debug().
		Str("eventId", event.ID).
		Str("topic", event.Topic).
		Str("tenantId", event.TenantID).
		Msg("evento publicado")
}
