package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/tu-usuario/stock-ledger/internal/application/inventory"
	"github.com/tu-usuario/stock-ledger/internal/infrastructure/postgres"
	"github.com/tu-usuario/stock-ledger/internal/infrastructure/queue"
	"github.com/tu-usuario/stock-ledger/pkg/config"
	"github.com/tu-usuario/stock-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Bool("backorders", cfg.Features.Backorders).
		Msg("iniciando ledger de inventario")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	redisClient := queue.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	publisher := queue.NewPublisher(redisClient, cfg.Redis.Stream)
	if err := publisher.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("conexión a Redis")
	}
	locker := redislock.New(redisClient)

	outboxRepo := postgres.NewOutboxRepository(pool)
	balanceRepo := postgres.NewBalanceRepository(pool)

	dispatcher := queue.NewDispatcher(outboxRepo, publisher, locker, log.Component("outbox-dispatcher"))
	go dispatcher.Run(ctx)

	verifier := inventory.NewBalanceVerifier(balanceRepo)
	go runVerifySweep(ctx, verifier, log.Component("balance-verifier"))

	log.Info().Msg("ledger listo; despachador de outbox y verificador corriendo")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("señal recibida; apagando")
	cancel()
}

// runVerifySweep corre el barrido de consistencia de balances cada hora y
// loguea las discrepancias; la corrección queda en manos de operaciones.
func runVerifySweep(ctx context.Context, verifier *inventory.BalanceVerifier, log *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		drifts, err := verifier.VerifyAll(ctx)
		if err != nil {
			log.Error().Err(err).Msg("barrido de verificación de balances")
			continue
		}
		for _, d := range drifts {
			log.Warn().
				Str("tenantId", d.TenantID).
				Str("itemId", d.ItemID).
				Str("locationId", d.LocationID).
				Str("uom", d.UOM).
				Str("stored", d.Stored.String()).
				Str("recomputed", d.Recomputed.String()).
				Msg("balance no cuadra con las líneas del ledger")
		}
		if len(drifts) == 0 {
			log.Debug().Msg("verificación de balances sin discrepancias")
		}
	}
}
