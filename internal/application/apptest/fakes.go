// Package apptest provee implementaciones en memoria de los puertos de
// persistencia para los tests de la capa de aplicación. No simulan bloqueos:
// los tests cubren el protocolo, no la concurrencia de PostgreSQL.
package apptest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/stock-ledger/internal/domain"
	"github.com/tu-usuario/stock-ledger/internal/domain/entity"
	"github.com/tu-usuario/stock-ledger/internal/domain/repository"
)

// ─── Items ───────────────────────────────────────────────────────────────────

var _ repository.ItemRepository = (*MemItems)(nil)

// MemItems maestro de artículos en memoria.
type MemItems struct {
	Items       map[string]*entity.Item
	Configs     map[string]*entity.ItemUOMConfig
	Conversions map[string]decimal.Decimal // "itemID|from|to" → factor
}

func NewMemItems() *MemItems {
	return &MemItems{
		Items:       make(map[string]*entity.Item),
		Configs:     make(map[string]*entity.ItemUOMConfig),
		Conversions: make(map[string]decimal.Decimal),
	}
}

// AddItem registra un ítem con su configuración de unidades.
func (m *MemItems) AddItem(itemID string, cfg *entity.ItemUOMConfig) {
	m.Items[itemID] = &entity.Item{ID: itemID, TenantID: cfg.TenantID}
	cfg.ItemID = itemID
	m.Configs[itemID] = cfg
}

// AddConversion registra un factor from→to para el ítem.
func (m *MemItems) AddConversion(itemID, fromUOM, toUOM string, factor decimal.Decimal) {
	m.Conversions[itemID+"|"+fromUOM+"|"+toUOM] = factor
}

func (m *MemItems) GetByID(_ context.Context, _, itemID string) (*entity.Item, error) {
	it, ok := m.Items[itemID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return it, nil
}

func (m *MemItems) GetUOMConfig(_ context.Context, _, itemID string) (*entity.ItemUOMConfig, error) {
	return m.Configs[itemID], nil
}

func (m *MemItems) GetConversion(_ context.Context, _, itemID, fromUOM, toUOM string) (*entity.UOMConversion, error) {
	factor, ok := m.Conversions[itemID+"|"+fromUOM+"|"+toUOM]
	if !ok {
		return nil, nil
	}
	return &entity.UOMConversion{ItemID: itemID, FromUOM: fromUOM, ToUOM: toUOM, Factor: factor}, nil
}

// ─── Locations ───────────────────────────────────────────────────────────────

var _ repository.LocationRepository = (*MemLocations)(nil)

// MemLocations maestro de ubicaciones en memoria.
type MemLocations struct {
	Locations map[string]*entity.Location
}

func NewMemLocations() *MemLocations {
	return &MemLocations{Locations: make(map[string]*entity.Location)}
}

func (m *MemLocations) Add(loc *entity.Location) {
	m.Locations[loc.ID] = loc
}

func (m *MemLocations) GetByID(_ context.Context, _, locationID string) (*entity.Location, error) {
	return m.Locations[locationID], nil
}

// ─── Balances ────────────────────────────────────────────────────────────────

var _ repository.BalanceRepository = (*MemBalances)(nil)

// MemBalances balances materializados en memoria. Movements opcional: si está
// presente, RecomputeFromLines suma líneas reales en vez de devolver el balance.
type MemBalances struct {
	rows      map[string]*entity.InventoryBalance
	Movements *MemMovements
}

func NewMemBalances() *MemBalances {
	return &MemBalances{rows: make(map[string]*entity.InventoryBalance)}
}

func balKey(tenantID, itemID, locationID, uomCode string) string {
	return tenantID + "|" + itemID + "|" + locationID + "|" + uomCode
}

// Seed fija un on-hand inicial.
func (m *MemBalances) Seed(tenantID, itemID, locationID, uomCode string, onHand decimal.Decimal) {
	m.SeedWithReserved(tenantID, itemID, locationID, uomCode, onHand, decimal.Zero)
}

// SeedWithReserved fija on-hand y reservado.
func (m *MemBalances) SeedWithReserved(tenantID, itemID, locationID, uomCode string, onHand, reserved decimal.Decimal) {
	m.rows[balKey(tenantID, itemID, locationID, uomCode)] = &entity.InventoryBalance{
		TenantID: tenantID, ItemID: itemID, LocationID: locationID, UOM: uomCode,
		OnHand: onHand, Reserved: reserved,
	}
}

func (m *MemBalances) Get(_ context.Context, tenantID, itemID, locationID, uomCode string) (*entity.InventoryBalance, error) {
	if b, ok := m.rows[balKey(tenantID, itemID, locationID, uomCode)]; ok {
		cp := *b
		return &cp, nil
	}
	return &entity.InventoryBalance{
		TenantID: tenantID, ItemID: itemID, LocationID: locationID, UOM: uomCode,
		OnHand: decimal.Zero, Reserved: decimal.Zero,
	}, nil
}

func (m *MemBalances) GetForUpdate(ctx context.Context, tenantID, itemID, locationID, uomCode string) (*entity.InventoryBalance, error) {
	return m.Get(ctx, tenantID, itemID, locationID, uomCode)
}

func (m *MemBalances) ApplyDelta(_ context.Context, tenantID, itemID, locationID, uomCode string, delta decimal.Decimal) error {
	key := balKey(tenantID, itemID, locationID, uomCode)
	b, ok := m.rows[key]
	if !ok {
		b = &entity.InventoryBalance{
			TenantID: tenantID, ItemID: itemID, LocationID: locationID, UOM: uomCode,
			OnHand: decimal.Zero, Reserved: decimal.Zero,
		}
		m.rows[key] = b
	}
	b.OnHand = b.OnHand.Add(delta)
	b.UpdatedAt = time.Now()
	return nil
}

func (m *MemBalances) RecomputeFromLines(ctx context.Context, tenantID, itemID, locationID, uomCode string) (decimal.Decimal, error) {
	if m.Movements == nil {
		b, _ := m.Get(ctx, tenantID, itemID, locationID, uomCode)
		return b.OnHand, nil
	}
	total := decimal.Zero
	for _, mv := range m.Movements.movements {
		if mv.TenantID != tenantID || mv.Status != entity.MovementStatusPosted {
			continue
		}
		for _, l := range m.Movements.lines[mv.ID] {
			if l.ItemID == itemID && l.LocationID == locationID && l.UOM == uomCode {
				total = total.Add(l.Quantity)
			}
		}
	}
	return total, nil
}

func (m *MemBalances) ListPage(_ context.Context, limit, offset int) ([]*entity.InventoryBalance, error) {
	keys := make([]string, 0, len(m.rows))
	for k := range m.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var page []*entity.InventoryBalance
	for i := offset; i < len(keys) && len(page) < limit; i++ {
		cp := *m.rows[keys[i]]
		page = append(page, &cp)
	}
	return page, nil
}

// OnHand acceso directo para asserts.
func (m *MemBalances) OnHand(tenantID, itemID, locationID, uomCode string) decimal.Decimal {
	if b, ok := m.rows[balKey(tenantID, itemID, locationID, uomCode)]; ok {
		return b.OnHand
	}
	return decimal.Zero
}

// ─── Movements ───────────────────────────────────────────────────────────────

var _ repository.MovementRepository = (*MemMovements)(nil)

// MemMovements ledger de movimientos en memoria con las mismas llaves de
// idempotencia que el esquema real.
type MemMovements struct {
	movements map[string]*entity.InventoryMovement
	lines     map[string][]*entity.MovementLine
	bySource  map[string]string // "tenant|sourceType|sourceID" → movementID
	byKey     map[string]string // "tenant|idempotencyKey" → movementID
}

func NewMemMovements() *MemMovements {
	return &MemMovements{
		movements: make(map[string]*entity.InventoryMovement),
		lines:     make(map[string][]*entity.MovementLine),
		bySource:  make(map[string]string),
		byKey:     make(map[string]string),
	}
}

func (m *MemMovements) CreateIdempotent(_ context.Context, movement *entity.InventoryMovement) (*entity.InventoryMovement, bool, error) {
	if movement.SourceType != "" && movement.SourceID != "" {
		if id, ok := m.bySource[movement.TenantID+"|"+movement.SourceType+"|"+movement.SourceID]; ok {
			return m.movements[id], false, nil
		}
	}
	if movement.IdempotencyKey != "" {
		if id, ok := m.byKey[movement.TenantID+"|"+movement.IdempotencyKey]; ok {
			return m.movements[id], false, nil
		}
	}
	if movement.ID == "" {
		movement.ID = uuid.New().String()
	}
	cp := *movement
	m.movements[cp.ID] = &cp
	if cp.SourceType != "" && cp.SourceID != "" {
		m.bySource[cp.TenantID+"|"+cp.SourceType+"|"+cp.SourceID] = cp.ID
	}
	if cp.IdempotencyKey != "" {
		m.byKey[cp.TenantID+"|"+cp.IdempotencyKey] = cp.ID
	}
	return &cp, true, nil
}

func (m *MemMovements) UpdateMetadata(_ context.Context, tenantID, id string, metadata map[string]any) error {
	mv, ok := m.movements[id]
	if !ok || mv.TenantID != tenantID {
		return domain.ErrNotFound
	}
	mv.Metadata = metadata
	return nil
}

func (m *MemMovements) CreateLine(_ context.Context, line *entity.MovementLine) error {
	if _, ok := m.movements[line.MovementID]; !ok {
		return fmt.Errorf("movimiento %s no existe", line.MovementID)
	}
	cp := *line
	m.lines[line.MovementID] = append(m.lines[line.MovementID], &cp)
	return nil
}

func (m *MemMovements) CountLines(_ context.Context, movementID string) (int, error) {
	return len(m.lines[movementID]), nil
}

func (m *MemMovements) GetByID(_ context.Context, tenantID, id string) (*entity.InventoryMovement, error) {
	mv, ok := m.movements[id]
	if !ok || mv.TenantID != tenantID {
		return nil, nil
	}
	return mv, nil
}

func (m *MemMovements) ListLines(_ context.Context, movementID string) ([]*entity.MovementLine, error) {
	return m.lines[movementID], nil
}

func (m *MemMovements) MarkVoided(_ context.Context, tenantID, id string) error {
	mv, ok := m.movements[id]
	if !ok || mv.TenantID != tenantID || mv.Status != entity.MovementStatusDraft {
		return domain.ErrConflict
	}
	mv.Status = entity.MovementStatusVoided
	return nil
}

// Movement acceso directo para asserts.
func (m *MemMovements) Movement(id string) *entity.InventoryMovement {
	return m.movements[id]
}

// Lines acceso directo para asserts.
func (m *MemMovements) Lines(movementID string) []*entity.MovementLine {
	return m.lines[movementID]
}

// ─── Cost layers ─────────────────────────────────────────────────────────────

var _ repository.CostLayerRepository = (*MemLayers)(nil)

// MemLayers capas de costo en memoria en orden de creación.
type MemLayers struct {
	Layers       []*entity.CostLayer
	Consumptions []*entity.CostLayerConsumption
}

func NewMemLayers() *MemLayers {
	return &MemLayers{}
}

// SeedLayer agrega una capa abierta existente.
func (m *MemLayers) SeedLayer(layer *entity.CostLayer) {
	if layer.ID == "" {
		layer.ID = uuid.New().String()
	}
	if layer.RemainingQuantity.IsZero() && !layer.OriginalQuantity.IsZero() {
		layer.RemainingQuantity = layer.OriginalQuantity
	}
	m.Layers = append(m.Layers, layer)
}

func (m *MemLayers) Create(_ context.Context, layer *entity.CostLayer) error {
	if layer.ID == "" {
		layer.ID = uuid.New().String()
	}
	cp := *layer
	m.Layers = append(m.Layers, &cp)
	return nil
}

func (m *MemLayers) ListOpen(_ context.Context, tenantID, itemID, locationID string) ([]*entity.CostLayer, error) {
	var open []*entity.CostLayer
	for _, l := range m.Layers {
		if l.TenantID == tenantID && l.ItemID == itemID && l.LocationID == locationID &&
			l.RemainingQuantity.GreaterThan(decimal.Zero) {
			open = append(open, l)
		}
	}
	return open, nil
}

func (m *MemLayers) ListOpenForUpdate(ctx context.Context, tenantID, itemID, locationID string) ([]*entity.CostLayer, error) {
	return m.ListOpen(ctx, tenantID, itemID, locationID)
}

func (m *MemLayers) UpdateRemaining(_ context.Context, layerID string, remaining decimal.Decimal) error {
	for _, l := range m.Layers {
		if l.ID == layerID {
			l.RemainingQuantity = remaining
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MemLayers) CreateConsumption(_ context.Context, consumption *entity.CostLayerConsumption) error {
	cp := *consumption
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	m.Consumptions = append(m.Consumptions, &cp)
	return nil
}

func (m *MemLayers) ListConsumptionsByMovement(_ context.Context, movementID string) ([]*entity.CostLayerConsumption, error) {
	var out []*entity.CostLayerConsumption
	for _, c := range m.Consumptions {
		if c.ConsumingMovementID == movementID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ─── Outbox ──────────────────────────────────────────────────────────────────

var _ repository.OutboxRepository = (*MemOutbox)(nil)

// MemOutbox outbox en memoria.
type MemOutbox struct {
	Events []*entity.OutboxEvent
}

func NewMemOutbox() *MemOutbox {
	return &MemOutbox{}
}

func (m *MemOutbox) Enqueue(_ context.Context, event *entity.OutboxEvent) error {
	cp := *event
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	m.Events = append(m.Events, &cp)
	return nil
}

func (m *MemOutbox) ClaimBatch(_ context.Context, workerID string, limit int) ([]*entity.OutboxEvent, error) {
	now := time.Now()
	var claimed []*entity.OutboxEvent
	for _, e := range m.Events {
		if len(claimed) >= limit {
			break
		}
		if e.Status == entity.OutboxStatusPending && e.LockedBy == "" {
			e.LockedBy = workerID
			e.LockedAt = &now
			claimed = append(claimed, e)
		}
	}
	return claimed, nil
}

func (m *MemOutbox) MarkSent(_ context.Context, eventID string) error {
	for _, e := range m.Events {
		if e.ID == eventID {
			now := time.Now()
			e.Status = entity.OutboxStatusSent
			e.SentAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MemOutbox) MarkFailed(_ context.Context, eventID, reason string) error {
	for _, e := range m.Events {
		if e.ID == eventID {
			e.Status = entity.OutboxStatusPending
			e.LastError = reason
			e.LockedBy = ""
			e.LockedAt = nil
			return nil
		}
	}
	return domain.ErrNotFound
}

// ─── Cycle counts ────────────────────────────────────────────────────────────

var _ repository.CycleCountRepository = (*MemCounts)(nil)

// MemCounts conteos cíclicos y ejecuciones de posteo en memoria.
type MemCounts struct {
	Counts     map[string]*entity.CycleCount
	Executions map[string]*entity.PostingExecution // "tenant|key"
}

func NewMemCounts() *MemCounts {
	return &MemCounts{
		Counts:     make(map[string]*entity.CycleCount),
		Executions: make(map[string]*entity.PostingExecution),
	}
}

func (m *MemCounts) Create(_ context.Context, count *entity.CycleCount) error {
	if count.ID == "" {
		count.ID = uuid.New().String()
	}
	for _, l := range count.Lines {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.CountID = count.ID
	}
	m.Counts[count.ID] = count
	return nil
}

func (m *MemCounts) Get(_ context.Context, tenantID, id string) (*entity.CycleCount, error) {
	c, ok := m.Counts[id]
	if !ok || c.TenantID != tenantID {
		return nil, nil
	}
	return c, nil
}

func (m *MemCounts) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.CycleCount, error) {
	return m.Get(ctx, tenantID, id)
}

func (m *MemCounts) UpdateLineSnapshot(_ context.Context, lineID string, system, variance decimal.Decimal) error {
	for _, c := range m.Counts {
		for _, l := range c.Lines {
			if l.ID == lineID {
				l.SystemQuantity = system
				l.VarianceQuantity = variance
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (m *MemCounts) MarkPosted(_ context.Context, id, movementID string, at time.Time) error {
	c, ok := m.Counts[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = entity.CycleCountStatusPosted
	c.PostedAt = &at
	if movementID != "" {
		c.MovementID = &movementID
	}
	return nil
}

func (m *MemCounts) MarkCanceled(_ context.Context, id string) error {
	c, ok := m.Counts[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = entity.CycleCountStatusCanceled
	return nil
}

func (m *MemCounts) InsertOrGetExecution(_ context.Context, exec *entity.PostingExecution) (*entity.PostingExecution, bool, error) {
	key := exec.TenantID + "|" + exec.IdempotencyKey
	if existing, ok := m.Executions[key]; ok {
		return existing, false, nil
	}
	cp := *exec
	m.Executions[key] = &cp
	return &cp, true, nil
}

func (m *MemCounts) MarkExecutionSucceeded(_ context.Context, tenantID, idempotencyKey, movementID string) error {
	key := tenantID + "|" + idempotencyKey
	e, ok := m.Executions[key]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = entity.ExecutionStatusSucceeded
	if movementID != "" {
		e.MovementID = &movementID
	}
	e.UpdatedAt = time.Now()
	return nil
}

// ─── TxRunner ────────────────────────────────────────────────────────────────

// MemTxRunner pasa los repos en memoria sin transacción real. Los efectos de
// un fn que falla no se revierten: los tests que comprueban rollback usan
// repos frescos por intento.
type MemTxRunner struct {
	Movements *MemMovements
	Balances  *MemBalances
	Layers    *MemLayers
	Outbox    *MemOutbox
	Counts    *MemCounts
}

func NewMemTxRunner() *MemTxRunner {
	movements := NewMemMovements()
	balances := NewMemBalances()
	balances.Movements = movements
	return &MemTxRunner{
		Movements: movements,
		Balances:  balances,
		Layers:    NewMemLayers(),
		Outbox:    NewMemOutbox(),
		Counts:    NewMemCounts(),
	}
}

func (r *MemTxRunner) Run(_ context.Context, fn func(
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	layerRepo repository.CostLayerRepository,
	outboxRepo repository.OutboxRepository,
) error) error {
	return fn(r.Movements, r.Balances, r.Layers, r.Outbox)
}

func (r *MemTxRunner) RunSerializable(_ context.Context, fn func(
	movRepo repository.MovementRepository,
	balanceRepo repository.BalanceRepository,
	layerRepo repository.CostLayerRepository,
	outboxRepo repository.OutboxRepository,
	countRepo repository.CycleCountRepository,
) error) error {
	return fn(r.Movements, r.Balances, r.Layers, r.Outbox, r.Counts)
}
