package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/stock-ledger/internal/application/apptest"
	"github.com/tu-usuario/stock-ledger/internal/application/inventory"
	"github.com/tu-usuario/stock-ledger/internal/domain"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/uom"
)

type ledgerFixture struct {
	ledger *inventory.Ledger
	tx     *apptest.MemTxRunner
	items  *apptest.MemItems
}

func newLedgerFixture(policy inventory.NegativePolicy) *ledgerFixture {
	items := apptest.NewMemItems()
	items.AddItem(itemFlour, &entity.ItemUOMConfig{
		TenantID: testTenant, Dimension: uom.DimensionMass,
		CanonicalUOM: "kg", StockingUOM: "kg",
	})
	items.AddConversion(itemFlour, "g", "kg", decimal.NewFromFloat(0.001))

	tx := apptest.NewMemTxRunner()
	canonical := inventory.NewCanonicalService(items)
	validator := inventory.NewStockValidator(canonical, policy)
	costs := inventory.NewCostLayerService()
	return &ledgerFixture{
		ledger: inventory.NewLedger(tx, canonical, validator, costs),
		tx:     tx,
		items:  items,
	}
}

func ptrDecimal(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func receiveInput(key string, qty float64, unitCost float64) inventory.PostMovementInput {
	return inventory.PostMovementInput{
		Header: inventory.MovementHeaderInput{
			TenantID:       testTenant,
			MovementType:   entity.MovementTypeReceive,
			IdempotencyKey: key,
			OccurredAt:     time.Now(),
		},
		Lines: []inventory.MovementLineInput{{
			ItemID: itemFlour, LocationID: locMain,
			Quantity: decimal.NewFromFloat(qty), UOM: "kg",
			UnitCost: ptrDecimal(unitCost),
		}},
	}
}

// TestPostMovement_Recepcion una recepción crea cabecera posteada, línea,
// capa de costo y delta positivo de balance, y encola el evento en el outbox.
func TestPostMovement_Recepcion(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	result, err := f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.NoError(t, err)
	require.True(t, result.Created)

	movement := f.tx.Movements.Movement(result.MovementID)
	require.NotNil(t, movement)
	assert.Equal(t, entity.MovementStatusPosted, movement.Status)
	require.NotNil(t, movement.PostedAt)

	lines := f.tx.Movements.Lines(result.MovementID)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, lines[0].ExtendedCost.Equal(decimal.NewFromInt(20)))

	require.Len(t, f.tx.Layers.Layers, 1)
	assert.True(t, f.tx.Layers.Layers[0].RemainingQuantity.Equal(decimal.NewFromInt(10)))

	assert.True(t, f.tx.Balances.OnHand(testTenant, itemFlour, locMain, "kg").Equal(decimal.NewFromInt(10)))

	require.Len(t, f.tx.Outbox.Events, 1)
	assert.Equal(t, entity.TopicMovementPosted, f.tx.Outbox.Events[0].Topic)
	assert.Equal(t, entity.OutboxStatusPending, f.tx.Outbox.Events[0].Status)
}

// TestPostMovement_SalidaFIFO capas L1(10 @ $2) y L2(5 @ $3); una salida de 12
// consume 10+2 en orden FIFO: costo total $26, a L2 le quedan 3 y el balance
// queda en 3.
func TestPostMovement_SalidaFIFO(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	_, err := f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.NoError(t, err)
	_, err = f.ledger.PostMovement(context.Background(), receiveInput("rcv-2", 5, 3))
	require.NoError(t, err)

	issue := inventory.PostMovementInput{
		Header: inventory.MovementHeaderInput{
			TenantID:       testTenant,
			MovementType:   entity.MovementTypeIssue,
			IdempotencyKey: "iss-1",
			OccurredAt:     time.Now(),
		},
		Lines: []inventory.MovementLineInput{{
			ItemID: itemFlour, LocationID: locMain,
			Quantity: decimal.NewFromInt(-12), UOM: "kg",
		}},
	}
	result, err := f.ledger.PostMovement(context.Background(), issue)
	require.NoError(t, err)

	lines := f.tx.Movements.Lines(result.MovementID)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].ExtendedCost.Equal(decimal.NewFromInt(-26)), "10*2 + 2*3 = 26")
	expectedUnit := decimal.NewFromInt(26).Div(decimal.NewFromInt(12))
	assert.True(t, lines[0].UnitCost.Equal(expectedUnit))

	assert.True(t, f.tx.Layers.Layers[0].RemainingQuantity.IsZero())
	assert.True(t, f.tx.Layers.Layers[1].RemainingQuantity.Equal(decimal.NewFromInt(3)))

	consumptions, err := f.tx.Layers.ListConsumptionsByMovement(context.Background(), result.MovementID)
	require.NoError(t, err)
	require.Len(t, consumptions, 2)

	assert.True(t, f.tx.Balances.OnHand(testTenant, itemFlour, locMain, "kg").Equal(decimal.NewFromInt(3)))
}

// TestPostMovement_ReplayIdempotente la misma llave no re-emite líneas ni
// deltas; devuelve el movimiento original con Created=false.
func TestPostMovement_ReplayIdempotente(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	first, err := f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.NoError(t, err)
	replay, err := f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, replay.Created)
	assert.Equal(t, first.MovementID, replay.MovementID)

	assert.Len(t, f.tx.Movements.Lines(first.MovementID), 1, "el replay no duplica líneas")
	assert.True(t, f.tx.Balances.OnHand(testTenant, itemFlour, locMain, "kg").Equal(decimal.NewFromInt(10)),
		"el replay no duplica el delta de balance")
	assert.Len(t, f.tx.Outbox.Events, 1, "el replay no re-encola el evento")
}

// TestPostMovement_ReplaySalidaConStockAgotado repostear la salida que dejó el
// stock en cero devuelve el movimiento original, no un error de stock: la
// cabecera idempotente corta antes de cualquier validación.
func TestPostMovement_ReplaySalidaConStockAgotado(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	_, err := f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.NoError(t, err)

	issue := inventory.PostMovementInput{
		Header: inventory.MovementHeaderInput{
			TenantID:       testTenant,
			MovementType:   entity.MovementTypeIssue,
			IdempotencyKey: "iss-1",
			OccurredAt:     time.Now(),
		},
		Lines: []inventory.MovementLineInput{{
			ItemID: itemFlour, LocationID: locMain,
			Quantity: decimal.NewFromInt(-10), UOM: "kg",
		}},
	}
	first, err := f.ledger.PostMovement(context.Background(), issue)
	require.NoError(t, err)
	require.True(t, f.tx.Balances.OnHand(testTenant, itemFlour, locMain, "kg").IsZero())

	replay, err := f.ledger.PostMovement(context.Background(), issue)
	require.NoError(t, err, "el replay no debe tropezar con la validación de stock")

	assert.False(t, replay.Created)
	assert.Equal(t, first.MovementID, replay.MovementID)
	assert.Len(t, f.tx.Movements.Lines(first.MovementID), 1, "el replay no duplica líneas")
	assert.True(t, f.tx.Balances.OnHand(testTenant, itemFlour, locMain, "kg").IsZero(),
		"el replay no vuelve a descontar el balance")
	assert.Len(t, f.tx.Outbox.Events, 2, "el replay no re-encola el evento")
}

// TestPostMovement_ReplaySinLineas cabecera existente sin líneas (crash del
// intento anterior entre cabecera y líneas) se reporta como incompleto y
// reintentable.
func TestPostMovement_ReplaySinLineas(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	// Simular el intento fallido: cabecera posteada sin líneas
	_, created, err := f.tx.Movements.CreateIdempotent(context.Background(), &entity.InventoryMovement{
		TenantID:       testTenant,
		MovementType:   entity.MovementTypeReceive,
		Status:         entity.MovementStatusPosted,
		IdempotencyKey: "rcv-1",
		OccurredAt:     time.Now(),
		CreatedAt:      time.Now(),
	})
	require.NoError(t, err)
	require.True(t, created)

	_, err = f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.Error(t, err)
	le, ok := domain.AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeMovementIncomplete, le.Code)
	assert.Equal(t, true, le.Details["retryable"])
}

func TestPostMovement_EntradaSinCosto(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	in := receiveInput("rcv-1", 10, 2)
	in.Lines[0].UnitCost = nil

	_, err := f.ledger.PostMovement(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestPostMovement_SinLlaveIdempotencia(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	in := receiveInput("", 10, 2)
	_, err := f.ledger.PostMovement(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

// TestPostMovement_SourceAMedias el par (sourceType, sourceId) es la llave
// natural completa; con una sola mitad el movimiento quedaría sin protección
// de idempotencia, así que se rechaza.
func TestPostMovement_SourceAMedias(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	in := receiveInput("", 10, 2)
	in.Header.SourceType = "purchase_order"

	_, err := f.ledger.PostMovement(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	in = receiveInput("", 10, 2)
	in.Header.SourceID = "po-9"

	_, err = f.ledger.PostMovement(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestPostMovement_TipoInvalido(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	in := receiveInput("rcv-1", 10, 2)
	in.Header.MovementType = "MERGE"
	_, err := f.ledger.PostMovement(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

// TestPostMovement_StockInsuficienteBloquea la validación corre dentro de la
// tx de posteo: sin stock no se escribe nada.
func TestPostMovement_StockInsuficienteBloquea(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	issue := inventory.PostMovementInput{
		Header: inventory.MovementHeaderInput{
			TenantID:       testTenant,
			MovementType:   entity.MovementTypeIssue,
			IdempotencyKey: "iss-1",
			OccurredAt:     time.Now(),
		},
		Lines: []inventory.MovementLineInput{{
			ItemID: itemFlour, LocationID: locMain,
			Quantity: decimal.NewFromInt(-5), UOM: "kg",
		}},
	}
	_, err := f.ledger.PostMovement(context.Background(), issue)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.Empty(t, f.tx.Outbox.Events)
	assert.True(t, f.tx.Balances.OnHand(testTenant, itemFlour, locMain, "kg").IsZero())
}

// TestPostMovement_OverrideEstampaMetadatos un override aprobado queda
// registrado en los metadatos del movimiento para auditoría.
func TestPostMovement_OverrideEstampaMetadatos(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{
		AllowNegativeWithOverride: true,
		OverrideRequiresReason:    true,
	})

	issue := inventory.PostMovementInput{
		Header: inventory.MovementHeaderInput{
			TenantID:       testTenant,
			MovementType:   entity.MovementTypeIssue,
			IdempotencyKey: "iss-1",
			OccurredAt:     time.Now(),
		},
		Lines: []inventory.MovementLineInput{{
			ItemID: itemFlour, LocationID: locMain,
			Quantity: decimal.NewFromInt(-5), UOM: "kg",
		}},
		Validation: inventory.ValidationContext{
			OverrideRequested: true,
			OverrideReason:    "ajuste autorizado",
			ActorID:           "user-1",
		},
	}
	result, err := f.ledger.PostMovement(context.Background(), issue)
	require.NoError(t, err)

	movement := f.tx.Movements.Movement(result.MovementID)
	require.NotNil(t, movement)
	assert.Equal(t, "ajuste autorizado", movement.Metadata["negativeOverrideReason"])
	assert.Equal(t, "user-1", movement.Metadata["negativeOverrideActor"])

	assert.True(t, f.tx.Balances.OnHand(testTenant, itemFlour, locMain, "kg").Equal(decimal.NewFromInt(-5)),
		"el balance queda negativo tras el override")
}

// TestPostMovement_SalidaSinCapas sin capas abiertas la salida se costea a 0
// (el costeo nunca bloquea lo que la política dejó pasar).
func TestPostMovement_SalidaSinCapas(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{AllowNegativeInventory: true})

	issue := inventory.PostMovementInput{
		Header: inventory.MovementHeaderInput{
			TenantID:       testTenant,
			MovementType:   entity.MovementTypeIssue,
			IdempotencyKey: "iss-1",
			OccurredAt:     time.Now(),
		},
		Lines: []inventory.MovementLineInput{{
			ItemID: itemFlour, LocationID: locMain,
			Quantity: decimal.NewFromInt(-4), UOM: "kg",
		}},
	}
	result, err := f.ledger.PostMovement(context.Background(), issue)
	require.NoError(t, err)

	lines := f.tx.Movements.Lines(result.MovementID)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].UnitCost.IsZero())
	assert.True(t, lines[0].ExtendedCost.IsZero())
}

func TestGetMovement_NoExiste(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	_, _, err := f.ledger.GetMovement(context.Background(), testTenant, "00000000-0000-0000-0000-00000000dead")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// TestVoidMovement_PosteadoEsInmutable anular un movimiento ya posteado se
// rechaza: el único deshacer económico es un ajuste o reversa.
func TestVoidMovement_PosteadoEsInmutable(t *testing.T) {
	f := newLedgerFixture(inventory.NegativePolicy{})

	result, err := f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.NoError(t, err)

	err = f.ledger.VoidMovement(context.Background(), testTenant, result.MovementID)
	require.Error(t, err)
	le, ok := domain.AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeMovementAlreadyPosted, le.Code)
}
