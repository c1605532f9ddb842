package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory stand-in for the table, order line and settlement
// repositories plus the transactor. WithinTx snapshots the state and restores
// it when fn fails, which is what a rolled back Postgres transaction looks like
// to subsequent reads. WithinReadTx hands fn a frozen copy of the state.
type memStore struct {
	mu          sync.Mutex
	tables      map[int64]*models.Table
	lines       map[int64]*models.OrderLine
	products    map[int64]*models.Product
	settlements []models.Settlement
	nextID      int64

	settings EstablishmentSettings
	failOn   map[string]error
	// beforeTx runs once when the next transaction begins, to simulate
	// another terminal committing between a read and a compare-and-set.
	beforeTx func(lines map[int64]*models.OrderLine)
	// afterTableRead runs once after the next table read returns, to let
	// another terminal commit between two reads of the same operation.
	afterTableRead func()
}

// memSnapshot is the exec WithinReadTx hands to its callback. Reads made
// through it see the state as of the start of the read transaction.
type memSnapshot struct {
	repositories.SQLExecutor
	tables map[int64]*models.Table
	lines  map[int64]*models.OrderLine
}

// state returns the maps a read through exec sees. Callers hold s.mu.
func (s *memStore) state(exec repositories.SQLExecutor) (map[int64]*models.Table, map[int64]*models.OrderLine) {
	if snap, ok := exec.(*memSnapshot); ok {
		return snap.tables, snap.lines
	}
	return s.tables, s.lines
}

func (s *memStore) tableRead() {
	s.mu.Lock()
	hook := s.afterTableRead
	s.afterTableRead = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func newMemStore() *memStore {
	return &memStore{
		tables:   make(map[int64]*models.Table),
		lines:    make(map[int64]*models.OrderLine),
		products: make(map[int64]*models.Product),
		nextID:   100,
		settings: EstablishmentSettings{
			ServiceFeeRate:   decimal.RequireFromString("0.10"),
			KitchenLateAfter: 20 * time.Minute,
		},
		failOn: make(map[string]error),
	}
}

func (s *memStore) fail(op string) error {
	if err, ok := s.failOn[op]; ok {
		return err
	}
	return nil
}

func (s *memStore) addTable(id, establishmentID int64, number string) {
	s.tables[id] = &models.Table{ID: id, EstablishmentID: establishmentID, Number: number, Status: models.TableStatusFree}
}

func (s *memStore) addProduct(id, establishmentID int64, name, price string, available bool) {
	s.products[id] = &models.Product{
		ID: id, EstablishmentID: establishmentID, Name: name, Category: "drinks",
		Price: decimal.RequireFromString(price), IsAvailable: available,
	}
}

func (s *memStore) table(id int64) models.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tables[id]
}

func (s *memStore) line(id int64) models.OrderLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.lines[id]
}

// --- Transactor ---

func (s *memStore) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	if err := s.fail("WithinTx"); err != nil {
		return err
	}
	s.mu.Lock()
	if s.beforeTx != nil {
		s.beforeTx(s.lines)
		s.beforeTx = nil
	}
	tables := make(map[int64]models.Table, len(s.tables))
	for id, t := range s.tables {
		tables[id] = *t
	}
	lines := make(map[int64]models.OrderLine, len(s.lines))
	for id, l := range s.lines {
		lines[id] = *l
	}
	settlements := append([]models.Settlement(nil), s.settlements...)
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.tables = make(map[int64]*models.Table, len(tables))
		for id, t := range tables {
			t := t
			s.tables[id] = &t
		}
		s.lines = make(map[int64]*models.OrderLine, len(lines))
		for id, l := range lines {
			l := l
			s.lines[id] = &l
		}
		s.settlements = settlements
		s.mu.Unlock()
		return err
	}
	return s.fail("Commit")
}

func (s *memStore) WithinReadTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	if err := s.fail("WithinReadTx"); err != nil {
		return err
	}
	s.mu.Lock()
	snap := &memSnapshot{
		tables: make(map[int64]*models.Table, len(s.tables)),
		lines:  make(map[int64]*models.OrderLine, len(s.lines)),
	}
	for id, t := range s.tables {
		c := *t
		snap.tables[id] = &c
	}
	for id, l := range s.lines {
		c := *l
		snap.lines[id] = &c
	}
	s.mu.Unlock()
	return fn(snap)
}

// --- TableRepository ---

func (s *memStore) ListTables(ctx context.Context, exec repositories.SQLExecutor, establishmentID int64) ([]models.Table, error) {
	if err := s.fail("ListTables"); err != nil {
		return nil, err
	}
	defer s.tableRead()
	s.mu.Lock()
	defer s.mu.Unlock()
	tables, _ := s.state(exec)
	out := []models.Table{}
	for _, t := range tables {
		if t.EstablishmentID == establishmentID {
			c := *t
			c.Lines = []models.OrderLine{}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) GetTableByID(ctx context.Context, exec repositories.SQLExecutor, tableID int64) (*models.Table, error) {
	if err := s.fail("GetTableByID"); err != nil {
		return nil, err
	}
	defer s.tableRead()
	s.mu.Lock()
	defer s.mu.Unlock()
	tables, _ := s.state(exec)
	t, ok := tables[tableID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *t
	c.Lines = []models.OrderLine{}
	return &c, nil
}

func (s *memStore) LockTable(ctx context.Context, exec repositories.SQLExecutor, tableID int64) (*models.Table, error) {
	if err := s.fail("LockTable"); err != nil {
		return nil, err
	}
	return s.GetTableByID(ctx, exec, tableID)
}

func (s *memStore) UpdateTableStatus(ctx context.Context, exec repositories.SQLExecutor, tableID int64, newStatus models.TableStatus, expected ...models.TableStatus) (bool, error) {
	if err := s.fail("UpdateTableStatus"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok {
		return false, nil
	}
	if len(expected) > 0 {
		match := false
		for _, e := range expected {
			if t.Status == e {
				match = true
			}
		}
		if !match {
			return false, nil
		}
	}
	t.Status = newStatus
	return true, nil
}

// --- OrderLineRepository ---

func (s *memStore) CreateLine(ctx context.Context, exec repositories.SQLExecutor, line *models.OrderLine) (int64, error) {
	if err := s.fail("CreateLine"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[line.TableID]; !ok {
		return 0, fmt.Errorf("%w: creating order line", repositories.ErrNotFound)
	}
	s.nextID++
	line.ID = s.nextID
	c := *line
	s.lines[c.ID] = &c
	return c.ID, nil
}

func (s *memStore) GetLineByID(ctx context.Context, exec repositories.SQLExecutor, lineID int64) (*models.OrderLine, error) {
	if err := s.fail("GetLineByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[lineID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *l
	return &c, nil
}

func (s *memStore) sortedLines(lines map[int64]*models.OrderLine, keep func(*models.OrderLine) bool) []models.OrderLine {
	out := []models.OrderLine{}
	for _, l := range lines {
		if keep(l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) ListActiveLines(ctx context.Context, exec repositories.SQLExecutor, tableIDs ...int64) ([]models.OrderLine, error) {
	if err := s.fail("ListActiveLines"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[int64]bool, len(tableIDs))
	for _, id := range tableIDs {
		wanted[id] = true
	}
	_, lines := s.state(exec)
	return s.sortedLines(lines, func(l *models.OrderLine) bool {
		return wanted[l.TableID] && l.Status.IsActive()
	}), nil
}

func (s *memStore) UpdateLineStatusGuard(ctx context.Context, exec repositories.SQLExecutor, lineID int64, from, to models.OrderLineStatus) (int64, error) {
	if err := s.fail("UpdateLineStatusGuard"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[lineID]
	if !ok || l.Status != from {
		return 0, nil
	}
	l.Status = to
	return 1, nil
}

func (s *memStore) SettleTableLines(ctx context.Context, exec repositories.SQLExecutor, tableID int64) (int64, error) {
	if err := s.fail("SettleTableLines"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, l := range s.lines {
		if l.TableID == tableID && l.Status.IsActive() {
			l.Status = models.OrderLineStatusPaid
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountLines(ctx context.Context, exec repositories.SQLExecutor, tableID int64, kind models.OrderLineKind, statuses ...models.OrderLineStatus) (int, error) {
	if err := s.fail("CountLines"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		if l.TableID != tableID || (kind != "" && l.Kind != kind) {
			continue
		}
		for _, st := range statuses {
			if l.Status == st {
				n++
			}
		}
	}
	return n, nil
}

func (s *memStore) ListKitchenQueue(ctx context.Context, exec repositories.SQLExecutor, establishmentID int64) ([]models.KitchenTicket, error) {
	if err := s.fail("ListKitchenQueue"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tables, all := s.state(exec)
	lines := s.sortedLines(all, func(l *models.OrderLine) bool {
		return l.EstablishmentID == establishmentID && !l.IsWaiterCall() &&
			(l.Status == models.OrderLineStatusPending || l.Status == models.OrderLineStatusPreparing || l.Status == models.OrderLineStatusReady)
	})
	tickets := []models.KitchenTicket{}
	for _, l := range lines {
		tickets = append(tickets, models.KitchenTicket{OrderLine: l, TableNumber: tables[l.TableID].Number})
	}
	return tickets, nil
}

func (s *memStore) ListPendingWaiterCalls(ctx context.Context, exec repositories.SQLExecutor, establishmentID int64) ([]models.WaiterCall, error) {
	if err := s.fail("ListPendingWaiterCalls"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tables, lines := s.state(exec)
	calls := []models.WaiterCall{}
	for _, l := range s.sortedLines(lines, func(l *models.OrderLine) bool {
		return l.EstablishmentID == establishmentID && l.IsWaiterCall() && l.Status == models.OrderLineStatusPending
	}) {
		calls = append(calls, models.WaiterCall{
			LineID: l.ID, TableID: l.TableID, TableNumber: tables[l.TableID].Number,
			CalledBy: l.OrderedBy, CreatedAt: l.CreatedAt,
		})
	}
	return calls, nil
}

// --- SettlementRepository ---

func (s *memStore) CreateSettlement(ctx context.Context, exec repositories.SQLExecutor, settlement *models.Settlement) (int64, error) {
	if err := s.fail("CreateSettlement"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	settlement.ID = s.nextID
	s.settlements = append(s.settlements, *settlement)
	return settlement.ID, nil
}

func (s *memStore) GetSettlements(ctx context.Context, establishmentID int64, filters models.SalesFilters) ([]models.Settlement, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Settlement{}
	for _, st := range s.settlements {
		if st.EstablishmentID == establishmentID {
			out = append(out, st)
		}
	}
	return out, len(out), nil
}

func (s *memStore) GetSalesSummary(ctx context.Context, establishmentID int64, from, to *time.Time) (*models.SalesSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := &models.SalesSummary{From: from, To: to}
	for _, st := range s.settlements {
		if st.EstablishmentID != establishmentID {
			continue
		}
		summary.Count++
		summary.Subtotal = summary.Subtotal.Add(st.Subtotal)
		summary.ServiceFees = summary.ServiceFees.Add(st.ServiceFee)
		summary.Revenue = summary.Revenue.Add(st.Total)
	}
	return summary, nil
}

// --- ProductLookup / SettingsProvider ---

func (s *memStore) OrderableProduct(ctx context.Context, exec repositories.SQLExecutor, sess models.Session, productID int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	if p.EstablishmentID != sess.EstablishmentID {
		return nil, fmt.Errorf("%w: product %d", ErrForbidden, productID)
	}
	c := *p
	return &c, nil
}

func (s *memStore) EffectiveSettings(ctx context.Context, establishmentID int64) (EstablishmentSettings, error) {
	if err := s.fail("EffectiveSettings"); err != nil {
		return EstablishmentSettings{}, err
	}
	return s.settings, nil
}

// assertOccupancy checks that every table is free exactly when it has no active lines.
func (s *memStore) assertOccupancy(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tbl := range s.tables {
		active := 0
		for _, l := range s.lines {
			if l.TableID == id && l.Status.IsActive() {
				active++
			}
		}
		require.Equal(t, active == 0, tbl.Status == models.TableStatusFree,
			"table %d is %s with %d active lines", id, tbl.Status, active)
	}
}

// --- mocks ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return nil
}

var errDriver = errors.New("driver: bad connection")
