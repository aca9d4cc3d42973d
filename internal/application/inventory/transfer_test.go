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
)

const (
	locDest = "22222222-0000-0000-0000-000000000002"
	locHold = "22222222-0000-0000-0000-000000000003"
)

type transferFixture struct {
	*ledgerFixture
	svc       *inventory.TransferService
	locations *apptest.MemLocations
}

func newTransferFixture(policy inventory.NegativePolicy) *transferFixture {
	lf := newLedgerFixture(policy)
	locations := apptest.NewMemLocations()
	locations.Add(&entity.Location{ID: locMain, TenantID: testTenant, Code: "A-01", Role: entity.LocationRoleStorage, Sellable: true})
	locations.Add(&entity.Location{ID: locDest, TenantID: testTenant, Code: "A-02", Role: entity.LocationRoleStorage, Sellable: true})
	locations.Add(&entity.Location{ID: locHold, TenantID: testTenant, Code: "QC-01", Role: entity.LocationRoleQCHold, Sellable: false})
	return &transferFixture{
		ledgerFixture: lf,
		svc:           inventory.NewTransferService(lf.ledger, locations),
		locations:     locations,
	}
}

func transferInput(qty float64, from, to, disposition string) inventory.TransferInput {
	return inventory.TransferInput{
		TenantID:       testTenant,
		ItemID:         itemFlour,
		FromLocationID: from,
		ToLocationID:   to,
		Quantity:       decimal.NewFromFloat(qty),
		UOM:            "kg",
		SourceType:     "transfer_order",
		SourceID:       "to-77",
		Disposition:    disposition,
		OccurredAt:     time.Now(),
	}
}

// TestTransferInventory_DosLineasSinMutarCapas un traslado emite exactamente
// dos líneas (negativa en origen, positiva en destino) bajo un movimiento, y
// no crea ni consume capas de costo.
func TestTransferInventory_DosLineasSinMutarCapas(t *testing.T) {
	f := newTransferFixture(inventory.NegativePolicy{})

	_, err := f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.NoError(t, err)
	layersBefore := len(f.tx.Layers.Layers)

	result, err := f.svc.TransferInventory(context.Background(), transferInput(4, locMain, locDest, ""))
	require.NoError(t, err)

	lines := f.tx.Movements.Lines(result.MovementID)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Quantity.Equal(decimal.NewFromInt(-4)))
	assert.Equal(t, locMain, lines[0].LocationID)
	assert.True(t, lines[1].Quantity.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, locDest, lines[1].LocationID)

	assert.Len(t, f.tx.Layers.Layers, layersBefore, "el traslado no muta capas")
	assert.Empty(t, f.tx.Layers.Consumptions)

	assert.True(t, f.tx.Balances.OnHand(testTenant, itemFlour, locMain, "kg").Equal(decimal.NewFromInt(6)))
	assert.True(t, f.tx.Balances.OnHand(testTenant, itemFlour, locDest, "kg").Equal(decimal.NewFromInt(4)))
}

// TestTransferInventory_CostoInformativo ambas líneas llevan el costo promedio
// de las capas del origen; la entrante lo hereda cuando el destino no tiene capas.
func TestTransferInventory_CostoInformativo(t *testing.T) {
	f := newTransferFixture(inventory.NegativePolicy{})

	_, err := f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.NoError(t, err)

	result, err := f.svc.TransferInventory(context.Background(), transferInput(4, locMain, locDest, ""))
	require.NoError(t, err)

	lines := f.tx.Movements.Lines(result.MovementID)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].UnitCost.Equal(decimal.NewFromInt(2)), "promedio de la única capa a $2")
	assert.True(t, lines[1].UnitCost.Equal(decimal.NewFromInt(2)), "la entrada hereda el costo de la salida")
}

func TestTransferInventory_MismaUbicacion(t *testing.T) {
	f := newTransferFixture(inventory.NegativePolicy{})

	_, err := f.svc.TransferInventory(context.Background(), transferInput(4, locMain, locMain, ""))
	require.Error(t, err)
	le, ok := domain.AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeTransferSameLocation, le.Code)
}

func TestTransferInventory_CantidadNoPositiva(t *testing.T) {
	f := newTransferFixture(inventory.NegativePolicy{})

	for _, qty := range []float64{0, -3} {
		_, err := f.svc.TransferInventory(context.Background(), transferInput(qty, locMain, locDest, ""))
		require.Error(t, err)
		le, ok := domain.AsLedgerError(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeTransferInvalidQuantity, le.Code)
	}
}

func TestTransferInventory_UbicacionInexistente(t *testing.T) {
	f := newTransferFixture(inventory.NegativePolicy{})

	_, err := f.svc.TransferInventory(context.Background(), transferInput(4, locMain, "00000000-0000-0000-0000-00000000dead", ""))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// TestTransferInventory_DisposicionQC accept exige destino vendible; hold y
// reject exigen destino no vendible.
func TestTransferInventory_DisposicionQC(t *testing.T) {
	f := newTransferFixture(inventory.NegativePolicy{})
	_, err := f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.NoError(t, err)

	// accept hacia QC (no vendible) se rechaza
	_, err = f.svc.TransferInventory(context.Background(), transferInput(1, locMain, locHold, inventory.DispositionAccept))
	require.Error(t, err)
	le, ok := domain.AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeTransferLocationSellable, le.Code)

	// hold hacia ubicación vendible se rechaza
	_, err = f.svc.TransferInventory(context.Background(), transferInput(1, locMain, locDest, inventory.DispositionHold))
	require.Error(t, err)
	le, ok = domain.AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeTransferLocationSellable, le.Code)

	// reject hacia QC procede y estampa la disposición en metadatos
	in := transferInput(1, locMain, locHold, inventory.DispositionReject)
	in.SourceID = "to-78"
	result, err := f.svc.TransferInventory(context.Background(), in)
	require.NoError(t, err)
	movement := f.tx.Movements.Movement(result.MovementID)
	assert.Equal(t, inventory.DispositionReject, movement.Metadata["qcDisposition"])
}

// TestTransferInventory_StockInsuficiente el traslado valida contra el origen
// con la misma política que una salida.
func TestTransferInventory_StockInsuficiente(t *testing.T) {
	f := newTransferFixture(inventory.NegativePolicy{})

	_, err := f.svc.TransferInventory(context.Background(), transferInput(4, locMain, locDest, ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
}

// TestTransferInventory_IdempotentePorSource el mismo (source_type, source_id)
// no duplica el traslado.
func TestTransferInventory_IdempotentePorSource(t *testing.T) {
	f := newTransferFixture(inventory.NegativePolicy{})
	_, err := f.ledger.PostMovement(context.Background(), receiveInput("rcv-1", 10, 2))
	require.NoError(t, err)

	first, err := f.svc.TransferInventory(context.Background(), transferInput(4, locMain, locDest, ""))
	require.NoError(t, err)
	replay, err := f.svc.TransferInventory(context.Background(), transferInput(4, locMain, locDest, ""))
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, replay.Created)
	assert.Equal(t, first.MovementID, replay.MovementID)
	assert.True(t, f.tx.Balances.OnHand(testTenant, itemFlour, locDest, "kg").Equal(decimal.NewFromInt(4)))
}
