package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bar_backoffice/internal/events"
	"bar_backoffice/internal/models"
	"bar_backoffice/internal/repositories"
	"bar_backoffice/pkg/utils"
)

const publishTimeout = 5 * time.Second

// --- Data Transfer Objects (DTOs) ---

// AddOrderLineRequest is used for adding a product to a table's tab.
type AddOrderLineRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// AdvanceStatusRequest carries the target status of a kitchen step.
type AdvanceStatusRequest struct {
	Status models.OrderLineStatus `json:"status" binding:"required"`
}

// ProductLookup resolves the menu entry a new order line is snapshotted from.
// It reads through exec so the snapshot comes from the writing transaction.
type ProductLookup interface {
	OrderableProduct(ctx context.Context, exec repositories.SQLExecutor, sess models.Session, productID int64) (*models.Product, error)
}

// FloorState is one establishment's tables, kitchen queue and pending waiter
// calls, all read from the same snapshot.
type FloorState struct {
	Tables      []models.Table
	Kitchen     []models.KitchenTicket
	WaiterCalls []models.WaiterCall
}

// --- LedgerService Interface ---

// LedgerService owns the table -> order line relationship: the kitchen
// pipeline, bills and tab settlement.
type LedgerService interface {
	ListTables(ctx context.Context, sess models.Session) ([]models.Table, error)
	GetTable(ctx context.Context, sess models.Session, tableID int64) (*models.Table, error)
	AddOrderLine(ctx context.Context, sess models.Session, tableID int64, req AddOrderLineRequest) (*models.OrderLine, error)
	AdvanceOrderLineStatus(ctx context.Context, sess models.Session, lineID int64, target models.OrderLineStatus) (*models.OrderLine, error)
	CancelOrderLine(ctx context.Context, sess models.Session, lineID int64) (*models.OrderLine, error)
	ComputeBill(ctx context.Context, sess models.Session, tableID int64) (*models.Bill, error)
	CloseTable(ctx context.Context, sess models.Session, tableID int64) (*models.CloseTableResult, error)

	CallWaiter(ctx context.Context, sess models.Session, tableID int64) (*models.OrderLine, error)
	AcknowledgeWaiterCall(ctx context.Context, sess models.Session, lineID int64) (*models.OrderLine, error)
	ListWaiterCalls(ctx context.Context, sess models.Session) ([]models.WaiterCall, error)
	KitchenQueue(ctx context.Context, sess models.Session) ([]models.KitchenTicket, error)
	Floor(ctx context.Context, sess models.Session) (*FloorState, error)
}

// --- ledgerService Implementation ---
type ledgerService struct {
	tx           repositories.Transactor
	tableRepo    repositories.TableRepository
	lineRepo     repositories.OrderLineRepository
	settleRepo   repositories.SettlementRepository
	products     ProductLookup
	settings     SettingsProvider
	publisher    events.Publisher
	queryTimeout time.Duration
	now          func() time.Time
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(
	tx repositories.Transactor,
	tableRepo repositories.TableRepository,
	lineRepo repositories.OrderLineRepository,
	settleRepo repositories.SettlementRepository,
	products ProductLookup,
	settings SettingsProvider,
	publisher events.Publisher,
	queryTimeout time.Duration,
) LedgerService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ledgerService{
		tx:           tx,
		tableRepo:    tableRepo,
		lineRepo:     lineRepo,
		settleRepo:   settleRepo,
		products:     products,
		settings:     settings,
		publisher:    publisher,
		queryTimeout: queryTimeout,
		now:          time.Now,
	}
}

// --- helpers ---

// withQueryTimeout bounds the persistence calls of one operation.
func withQueryTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func checkSession(sess models.Session) error {
	if sess.EstablishmentID <= 0 {
		return fmt.Errorf("%w: session carries no establishment", ErrForbidden)
	}
	return nil
}

func checkTenant(sess models.Session, establishmentID int64, what string) error {
	if establishmentID != sess.EstablishmentID {
		return fmt.Errorf("%w: %s", ErrForbidden, what)
	}
	return nil
}

// classify leaves taxonomy errors untouched and maps everything else.
func classify(op string, err error) error {
	if err == nil || isServiceError(err) {
		return err
	}
	return mapRepoError(op, err)
}

func userRef(sess models.Session) *int64 {
	if sess.UserID <= 0 {
		return nil
	}
	id := sess.UserID
	return &id
}

// publish sends an event after commit. Failures are logged only: the
// mutation already happened and must not be reported as failed.
func (s *ledgerService) publish(ctx context.Context, routingKey string, establishmentID int64, data interface{}) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, routingKey, events.NewEnvelope(routingKey, establishmentID, data)); err != nil {
		utils.LogError(err, "Failed to publish ledger event", map[string]interface{}{
			"routing_key":      routingKey,
			"establishment_id": establishmentID,
		})
	}
}

func (s *ledgerService) loadTable(ctx context.Context, exec repositories.SQLExecutor, sess models.Session, tableID int64) (*models.Table, error) {
	table, err := s.tableRepo.GetTableByID(ctx, exec, tableID)
	if err != nil {
		return nil, mapRepoError(fmt.Sprintf("table %d", tableID), err)
	}
	if err := checkTenant(sess, table.EstablishmentID, fmt.Sprintf("table %d", tableID)); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *ledgerService) loadLine(ctx context.Context, exec repositories.SQLExecutor, sess models.Session, lineID int64) (*models.OrderLine, error) {
	line, err := s.lineRepo.GetLineByID(ctx, exec, lineID)
	if err != nil {
		return nil, mapRepoError(fmt.Sprintf("order line %d", lineID), err)
	}
	if err := checkTenant(sess, line.EstablishmentID, fmt.Sprintf("order line %d", lineID)); err != nil {
		return nil, err
	}
	return line, nil
}

// --- Read side ---

// Reads that join tables and lines run in one read transaction, so a close
// committing in between cannot show an occupied table without lines.

func (s *ledgerService) ListTables(ctx context.Context, sess models.Session) ([]models.Table, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	var tables []models.Table
	err := s.tx.WithinReadTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		tables, err = s.tablesWithLines(ctx, exec, sess.EstablishmentID)
		return err
	})
	if err != nil {
		return nil, classify("listing tables", err)
	}
	return tables, nil
}

func (s *ledgerService) tablesWithLines(ctx context.Context, exec repositories.SQLExecutor, establishmentID int64) ([]models.Table, error) {
	tables, err := s.tableRepo.ListTables(ctx, exec, establishmentID)
	if err != nil {
		return nil, mapRepoError("listing tables", err)
	}
	if len(tables) == 0 {
		return []models.Table{}, nil
	}

	ids := make([]int64, len(tables))
	index := make(map[int64]int, len(tables))
	for i := range tables {
		ids[i] = tables[i].ID
		index[tables[i].ID] = i
		tables[i].Lines = []models.OrderLine{}
	}
	lines, err := s.lineRepo.ListActiveLines(ctx, exec, ids...)
	if err != nil {
		return nil, mapRepoError("listing active lines", err)
	}
	for _, l := range lines {
		if i, ok := index[l.TableID]; ok {
			tables[i].Lines = append(tables[i].Lines, l)
		}
	}
	return tables, nil
}

func (s *ledgerService) GetTable(ctx context.Context, sess models.Session, tableID int64) (*models.Table, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	var table *models.Table
	err := s.tx.WithinReadTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		table, err = s.loadTable(ctx, exec, sess, tableID)
		if err != nil {
			return err
		}
		table.Lines, err = s.lineRepo.ListActiveLines(ctx, exec, tableID)
		if err != nil {
			return mapRepoError(fmt.Sprintf("lines of table %d", tableID), err)
		}
		return nil
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("table %d", tableID), err)
	}
	return table, nil
}

func (s *ledgerService) ComputeBill(ctx context.Context, sess models.Session, tableID int64) (*models.Bill, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	settings, err := s.settings.EffectiveSettings(ctx, sess.EstablishmentID)
	if err != nil {
		return nil, classify("loading billing settings", err)
	}
	var lines []models.OrderLine
	err = s.tx.WithinReadTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.loadTable(ctx, exec, sess, tableID); err != nil {
			return err
		}
		var err error
		lines, err = s.lineRepo.ListActiveLines(ctx, exec, tableID)
		if err != nil {
			return mapRepoError(fmt.Sprintf("lines of table %d", tableID), err)
		}
		return nil
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("bill of table %d", tableID), err)
	}
	bill := CalculateBill(tableID, lines, settings.ServiceFeeRate)
	return &bill, nil
}

// Floor loads everything a floor dashboard shows from a single snapshot.
func (s *ledgerService) Floor(ctx context.Context, sess models.Session) (*FloorState, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	settings, err := s.settings.EffectiveSettings(ctx, sess.EstablishmentID)
	if err != nil {
		return nil, classify("loading kitchen settings", err)
	}
	state := &FloorState{}
	err = s.tx.WithinReadTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		if state.Tables, err = s.tablesWithLines(ctx, exec, sess.EstablishmentID); err != nil {
			return err
		}
		if state.Kitchen, err = s.lineRepo.ListKitchenQueue(ctx, exec, sess.EstablishmentID); err != nil {
			return mapRepoError("listing kitchen queue", err)
		}
		if state.WaiterCalls, err = s.lineRepo.ListPendingWaiterCalls(ctx, exec, sess.EstablishmentID); err != nil {
			return mapRepoError("listing waiter calls", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("loading floor", err)
	}
	s.markLate(state.Kitchen, settings.KitchenLateAfter)
	return state, nil
}

// --- Order lines ---

func (s *ledgerService) AddOrderLine(ctx context.Context, sess models.Session, tableID int64, req AddOrderLineRequest) (*models.OrderLine, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1, got %d", ErrValidation, req.Quantity)
	}
	if req.ProductID <= 0 {
		return nil, fmt.Errorf("%w: product_id is required", ErrValidation)
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	line := &models.OrderLine{
		EstablishmentID: sess.EstablishmentID,
		TableID:         tableID,
		Quantity:        req.Quantity,
		Status:          models.OrderLineStatusPending,
		Kind:            models.OrderLineKindItem,
		OrderedBy:       userRef(sess),
		CreatedAt:       s.now(),
	}

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		table, err := s.tableRepo.LockTable(ctx, exec, tableID)
		if err != nil {
			return mapRepoError(fmt.Sprintf("locking table %d", tableID), err)
		}
		if err := checkTenant(sess, table.EstablishmentID, fmt.Sprintf("table %d", tableID)); err != nil {
			return err
		}

		product, err := s.products.OrderableProduct(ctx, exec, sess, req.ProductID)
		if err != nil {
			return err
		}
		if !product.IsAvailable {
			return fmt.Errorf("%w: product %q is not available", ErrValidation, product.Name)
		}
		productID := product.ID
		line.ProductID = &productID
		line.Name = product.Name
		line.UnitPrice = product.Price

		if _, err := s.lineRepo.CreateLine(ctx, exec, line); err != nil {
			return mapRepoError("creating order line", err)
		}
		if table.Status == models.TableStatusFree {
			if _, err := s.tableRepo.UpdateTableStatus(ctx, exec, tableID, models.TableStatusOccupied, models.TableStatusFree); err != nil {
				return mapRepoError("occupying table", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify("adding order line", err)
	}

	s.publish(ctx, events.OrderLineAdded, sess.EstablishmentID, line)
	return line, nil
}

func (s *ledgerService) AdvanceOrderLineStatus(ctx context.Context, sess models.Session, lineID int64, target models.OrderLineStatus) (*models.OrderLine, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}
	if target.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is reached only through settlement or cancellation", ErrInvalidTransition, target)
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	line, err := s.loadLine(ctx, nil, sess, lineID)
	if err != nil {
		return nil, err
	}
	if line.IsWaiterCall() {
		return nil, fmt.Errorf("%w: waiter calls are acknowledged, not advanced", ErrInvalidTransition)
	}
	if line.Status == target {
		return line, nil
	}
	if !models.CanAdvance(line.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, line.Status, target)
	}

	from := line.Status
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		changed, err := s.lineRepo.UpdateLineStatusGuard(ctx, exec, lineID, from, target)
		if err != nil {
			return mapRepoError("advancing order line", err)
		}
		if changed == 1 {
			return nil
		}
		current, err := s.loadLine(ctx, exec, sess, lineID)
		if err != nil {
			return err
		}
		if current.Status == target {
			// another terminal made the same step first
			*line = *current
			return nil
		}
		return fmt.Errorf("%w: order line %d moved to %s while advancing %s -> %s", ErrConflict, lineID, current.Status, from, target)
	})
	if err != nil {
		return nil, classify("advancing order line", err)
	}
	if line.Status == target {
		return line, nil
	}

	line.Status = target
	line.UpdatedAt = s.now()
	s.publish(ctx, events.OrderLineStatusChanged, sess.EstablishmentID, line)
	return line, nil
}

func (s *ledgerService) CancelOrderLine(ctx context.Context, sess models.Session, lineID int64) (*models.OrderLine, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	line, err := s.loadLine(ctx, nil, sess, lineID)
	if err != nil {
		return nil, err
	}
	if !models.CanCancel(line.Status) {
		return nil, fmt.Errorf("%w: cannot cancel a %s line", ErrInvalidTransition, line.Status)
	}

	from := line.Status
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		table, err := s.tableRepo.LockTable(ctx, exec, line.TableID)
		if err != nil {
			return mapRepoError(fmt.Sprintf("locking table %d", line.TableID), err)
		}

		changed, err := s.lineRepo.UpdateLineStatusGuard(ctx, exec, lineID, from, models.OrderLineStatusCancelled)
		if err != nil {
			return mapRepoError("cancelling order line", err)
		}
		if changed == 0 {
			current, err := s.loadLine(ctx, exec, sess, lineID)
			if err != nil {
				return err
			}
			if !models.CanCancel(current.Status) {
				return fmt.Errorf("%w: order line %d is already %s", ErrInvalidTransition, lineID, current.Status)
			}
			return fmt.Errorf("%w: order line %d moved to %s while cancelling", ErrConflict, lineID, current.Status)
		}

		return s.reconcileTableStatus(ctx, exec, table)
	})
	if err != nil {
		return nil, classify("cancelling order line", err)
	}

	line.Status = models.OrderLineStatusCancelled
	line.UpdatedAt = s.now()
	s.publish(ctx, events.OrderLineCancelled, sess.EstablishmentID, line)
	return line, nil
}

// reconcileTableStatus restores the occupancy invariant after a line left the
// active set: no active lines means free, no pending call means not calling.
func (s *ledgerService) reconcileTableStatus(ctx context.Context, exec repositories.SQLExecutor, table *models.Table) error {
	active, err := s.lineRepo.CountLines(ctx, exec, table.ID, "", models.ActiveOrderLineStatuses...)
	if err != nil {
		return mapRepoError("counting active lines", err)
	}
	if active == 0 {
		if _, err := s.tableRepo.UpdateTableStatus(ctx, exec, table.ID, models.TableStatusFree); err != nil {
			return mapRepoError("freeing table", err)
		}
		return nil
	}
	if table.Status != models.TableStatusCalling {
		return nil
	}
	calls, err := s.lineRepo.CountLines(ctx, exec, table.ID, models.OrderLineKindWaiterCall, models.OrderLineStatusPending)
	if err != nil {
		return mapRepoError("counting waiter calls", err)
	}
	if calls == 0 {
		if _, err := s.tableRepo.UpdateTableStatus(ctx, exec, table.ID, models.TableStatusOccupied, models.TableStatusCalling); err != nil {
			return mapRepoError("clearing waiter call", err)
		}
	}
	return nil
}

// --- Settlement ---

func (s *ledgerService) CloseTable(ctx context.Context, sess models.Session, tableID int64) (*models.CloseTableResult, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	settings, err := s.settings.EffectiveSettings(ctx, sess.EstablishmentID)
	if err != nil {
		return nil, classify("loading billing settings", err)
	}

	var result *models.CloseTableResult
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		table, err := s.tableRepo.LockTable(ctx, exec, tableID)
		if err != nil {
			return mapRepoError(fmt.Sprintf("locking table %d", tableID), err)
		}
		if err := checkTenant(sess, table.EstablishmentID, fmt.Sprintf("table %d", tableID)); err != nil {
			return err
		}

		lines, err := s.lineRepo.ListActiveLines(ctx, exec, tableID)
		if err != nil {
			return mapRepoError("reading tab", err)
		}
		bill := CalculateBill(tableID, lines, settings.ServiceFeeRate)

		settled, err := s.lineRepo.SettleTableLines(ctx, exec, tableID)
		if err != nil {
			return mapRepoError("settling lines", err)
		}
		if settled != int64(len(lines)) {
			return fmt.Errorf("settled %d lines, tab had %d", settled, len(lines))
		}
		remaining, err := s.lineRepo.CountLines(ctx, exec, tableID, "", models.ActiveOrderLineStatuses...)
		if err != nil {
			return mapRepoError("verifying settlement", err)
		}
		if remaining != 0 {
			return fmt.Errorf("%d lines still active after settlement", remaining)
		}

		// an empty tab frees the table without a sales record
		var settlement *models.Settlement
		if len(bill.Lines) > 0 {
			settlement = &models.Settlement{
				EstablishmentID: sess.EstablishmentID,
				TableID:         tableID,
				TableNumber:     table.Number,
				Subtotal:        bill.Subtotal,
				ServiceFee:      bill.ServiceFee,
				Total:           bill.Total,
				LineCount:       len(bill.Lines),
				ClosedBy:        userRef(sess),
				SettledAt:       s.now(),
			}
			if _, err := s.settleRepo.CreateSettlement(ctx, exec, settlement); err != nil {
				return mapRepoError("recording settlement", err)
			}
		}
		if _, err := s.tableRepo.UpdateTableStatus(ctx, exec, tableID, models.TableStatusFree); err != nil {
			return mapRepoError("freeing table", err)
		}

		result = &models.CloseTableResult{Success: true, SettledTotal: bill.Total, Settlement: settlement}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return nil, err
		}
		utils.LogError(err, "Table settlement rolled back", map[string]interface{}{"table_id": tableID})
		return nil, fmt.Errorf("%w: closing table %d: %w", ErrSettlementFailed, tableID, err)
	}

	var payload interface{} = result.Settlement
	if result.Settlement == nil {
		payload = map[string]interface{}{"table_id": tableID, "total": result.SettledTotal}
	}
	s.publish(ctx, events.TableClosed, sess.EstablishmentID, payload)
	return result, nil
}

// --- Waiter calls ---

func (s *ledgerService) CallWaiter(ctx context.Context, sess models.Session, tableID int64) (*models.OrderLine, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	line := &models.OrderLine{
		EstablishmentID: sess.EstablishmentID,
		TableID:         tableID,
		Name:            models.WaiterCallLineName,
		Quantity:        1,
		Status:          models.OrderLineStatusPending,
		Kind:            models.OrderLineKindWaiterCall,
		OrderedBy:       userRef(sess),
		CreatedAt:       s.now(),
	}

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		table, err := s.tableRepo.LockTable(ctx, exec, tableID)
		if err != nil {
			return mapRepoError(fmt.Sprintf("locking table %d", tableID), err)
		}
		if err := checkTenant(sess, table.EstablishmentID, fmt.Sprintf("table %d", tableID)); err != nil {
			return err
		}
		if _, err := s.lineRepo.CreateLine(ctx, exec, line); err != nil {
			return mapRepoError("creating waiter call", err)
		}
		if _, err := s.tableRepo.UpdateTableStatus(ctx, exec, tableID, models.TableStatusCalling,
			models.TableStatusFree, models.TableStatusOccupied); err != nil {
			return mapRepoError("flagging table as calling", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("calling waiter", err)
	}

	s.publish(ctx, events.TableCalling, sess.EstablishmentID, line)
	return line, nil
}

func (s *ledgerService) AcknowledgeWaiterCall(ctx context.Context, sess models.Session, lineID int64) (*models.OrderLine, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	line, err := s.loadLine(ctx, nil, sess, lineID)
	if err != nil {
		return nil, err
	}
	if !line.IsWaiterCall() {
		return nil, fmt.Errorf("%w: order line %d is not a waiter call", ErrValidation, lineID)
	}
	if line.Status == models.OrderLineStatusDelivered {
		return line, nil
	}
	if line.Status != models.OrderLineStatusPending {
		return nil, fmt.Errorf("%w: waiter call is already %s", ErrInvalidTransition, line.Status)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		table, err := s.tableRepo.LockTable(ctx, exec, line.TableID)
		if err != nil {
			return mapRepoError(fmt.Sprintf("locking table %d", line.TableID), err)
		}
		changed, err := s.lineRepo.UpdateLineStatusGuard(ctx, exec, lineID, models.OrderLineStatusPending, models.OrderLineStatusDelivered)
		if err != nil {
			return mapRepoError("acknowledging waiter call", err)
		}
		if changed == 0 {
			current, err := s.loadLine(ctx, exec, sess, lineID)
			if err != nil {
				return err
			}
			if current.Status == models.OrderLineStatusDelivered {
				return nil
			}
			return fmt.Errorf("%w: waiter call %d moved to %s", ErrConflict, lineID, current.Status)
		}
		return s.reconcileTableStatus(ctx, exec, table)
	})
	if err != nil {
		return nil, classify("acknowledging waiter call", err)
	}

	line.Status = models.OrderLineStatusDelivered
	line.UpdatedAt = s.now()
	s.publish(ctx, events.OrderLineStatusChanged, sess.EstablishmentID, line)
	return line, nil
}

func (s *ledgerService) ListWaiterCalls(ctx context.Context, sess models.Session) ([]models.WaiterCall, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	calls, err := s.lineRepo.ListPendingWaiterCalls(ctx, nil, sess.EstablishmentID)
	if err != nil {
		return nil, mapRepoError("listing waiter calls", err)
	}
	return calls, nil
}

// --- Kitchen display ---

func (s *ledgerService) KitchenQueue(ctx context.Context, sess models.Session) ([]models.KitchenTicket, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	settings, err := s.settings.EffectiveSettings(ctx, sess.EstablishmentID)
	if err != nil {
		return nil, classify("loading kitchen settings", err)
	}
	tickets, err := s.lineRepo.ListKitchenQueue(ctx, nil, sess.EstablishmentID)
	if err != nil {
		return nil, mapRepoError("listing kitchen queue", err)
	}
	s.markLate(tickets, settings.KitchenLateAfter)
	return tickets, nil
}

func (s *ledgerService) markLate(tickets []models.KitchenTicket, lateAfter time.Duration) {
	now := s.now()
	for i := range tickets {
		tickets[i].Elapsed = now.Sub(tickets[i].CreatedAt)
		if tickets[i].Elapsed < 0 {
			tickets[i].Elapsed = 0
		}
		tickets[i].ElapsedSeconds = int64(tickets[i].Elapsed / time.Second)
		tickets[i].Late = tickets[i].Elapsed >= lateAfter
	}
}
