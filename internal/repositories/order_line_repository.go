package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bar_backoffice/internal/models"

	"github.com/lib/pq"
)

// OrderLineRepository defines the interface for order-line database operations.
// Lines are never deleted; they only change status.
type OrderLineRepository interface {
	CreateLine(ctx context.Context, executor SQLExecutor, line *models.OrderLine) (int64, error)
	GetLineByID(ctx context.Context, executor SQLExecutor, lineID int64) (*models.OrderLine, error)
	// ListActiveLines returns the active lines of the given tables, oldest first.
	ListActiveLines(ctx context.Context, executor SQLExecutor, tableIDs ...int64) ([]models.OrderLine, error)
	// UpdateLineStatusGuard is a compare-and-set: it only changes a line still in
	// status from, returning the number of rows changed (0 or 1).
	UpdateLineStatusGuard(ctx context.Context, executor SQLExecutor, lineID int64, from, to models.OrderLineStatus) (int64, error)
	// SettleTableLines marks every active line of the table as paid.
	SettleTableLines(ctx context.Context, executor SQLExecutor, tableID int64) (int64, error)
	// CountLines counts a table's lines in the given statuses; an empty kind matches all kinds.
	CountLines(ctx context.Context, executor SQLExecutor, tableID int64, kind models.OrderLineKind, statuses ...models.OrderLineStatus) (int, error)

	ListKitchenQueue(ctx context.Context, executor SQLExecutor, establishmentID int64) ([]models.KitchenTicket, error)
	ListPendingWaiterCalls(ctx context.Context, executor SQLExecutor, establishmentID int64) ([]models.WaiterCall, error)
}

type orderLineRepository struct {
	db *sql.DB
}

// NewOrderLineRepository creates a new instance of OrderLineRepository.
func NewOrderLineRepository(db *sql.DB) OrderLineRepository {
	return &orderLineRepository{db: db}
}

const orderLineColumns = `ol.id, ol.establishment_id, ol.table_id, ol.product_id, ol.name, ol.unit_price,
	ol.quantity, ol.status, ol.kind, ol.ordered_by, ol.created_at, ol.updated_at`

func scanOrderLine(row scanner, l *models.OrderLine, extra ...interface{}) error {
	var productID, orderedBy sql.NullInt64
	dest := []interface{}{
		&l.ID, &l.EstablishmentID, &l.TableID, &productID, &l.Name, &l.UnitPrice,
		&l.Quantity, &l.Status, &l.Kind, &orderedBy, &l.CreatedAt, &l.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	if productID.Valid {
		id := productID.Int64
		l.ProductID = &id
	}
	if orderedBy.Valid {
		id := orderedBy.Int64
		l.OrderedBy = &id
	}
	return nil
}

func statusStrings(statuses []models.OrderLineStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *orderLineRepository) CreateLine(ctx context.Context, executor SQLExecutor, line *models.OrderLine) (int64, error) {
	query := `INSERT INTO order_lines
	            (establishment_id, table_id, product_id, name, unit_price, quantity,
	             status, kind, ordered_by, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id`

	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now()
	}
	if line.UpdatedAt.IsZero() {
		line.UpdatedAt = line.CreatedAt
	}

	err := executor.QueryRowContext(ctx, query,
		line.EstablishmentID, line.TableID, line.ProductID, line.Name, line.UnitPrice, line.Quantity,
		line.Status, line.Kind, line.OrderedBy, line.CreatedAt, line.UpdatedAt,
	).Scan(&line.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return 0, fmt.Errorf("%w: creating order line (constraint: %s)", ErrNotFound, pqErr.Constraint)
		}
		return 0, dbError("creating order line", err)
	}
	return line.ID, nil
}

func (r *orderLineRepository) GetLineByID(ctx context.Context, executor SQLExecutor, lineID int64) (*models.OrderLine, error) {
	if executor == nil {
		executor = r.db
	}
	line := &models.OrderLine{}
	query := `SELECT ` + orderLineColumns + ` FROM order_lines ol WHERE ol.id = $1`
	if err := scanOrderLine(executor.QueryRowContext(ctx, query, lineID), line); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(fmt.Sprintf("getting order line by ID %d", lineID), err)
	}
	return line, nil
}

func (r *orderLineRepository) ListActiveLines(ctx context.Context, executor SQLExecutor, tableIDs ...int64) ([]models.OrderLine, error) {
	lines := []models.OrderLine{}
	if len(tableIDs) == 0 {
		return lines, nil
	}
	if executor == nil {
		executor = r.db
	}
	query := `SELECT ` + orderLineColumns + `
	          FROM order_lines ol
	          WHERE ol.table_id = ANY($1) AND ol.status = ANY($2)
	          ORDER BY ol.created_at, ol.id`

	rows, err := executor.QueryContext(ctx, query, pq.Array(tableIDs), pq.Array(statusStrings(models.ActiveOrderLineStatuses)))
	if err != nil {
		return nil, dbError("querying active order lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l models.OrderLine
		if err := scanOrderLine(rows, &l); err != nil {
			return nil, dbError("scanning order line", err)
		}
		lines = append(lines, l)
	}
	if err = rows.Err(); err != nil {
		return nil, dbError("iterating order lines", err)
	}
	return lines, nil
}

func (r *orderLineRepository) UpdateLineStatusGuard(ctx context.Context, executor SQLExecutor, lineID int64, from, to models.OrderLineStatus) (int64, error) {
	query := `UPDATE order_lines SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := executor.ExecContext(ctx, query, to, time.Now(), lineID, from)
	if err != nil {
		return 0, dbError(fmt.Sprintf("updating status of order line %d", lineID), err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, dbError(fmt.Sprintf("getting rows affected for order line %d", lineID), err)
	}
	return rowsAffected, nil
}

func (r *orderLineRepository) SettleTableLines(ctx context.Context, executor SQLExecutor, tableID int64) (int64, error) {
	query := `UPDATE order_lines SET status = $1, updated_at = $2 WHERE table_id = $3 AND status = ANY($4)`
	result, err := executor.ExecContext(ctx, query,
		models.OrderLineStatusPaid, time.Now(), tableID, pq.Array(statusStrings(models.ActiveOrderLineStatuses)))
	if err != nil {
		return 0, dbError(fmt.Sprintf("settling lines of table %d", tableID), err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, dbError(fmt.Sprintf("getting rows affected for settling table %d", tableID), err)
	}
	return rowsAffected, nil
}

func (r *orderLineRepository) CountLines(ctx context.Context, executor SQLExecutor, tableID int64, kind models.OrderLineKind, statuses ...models.OrderLineStatus) (int, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT COUNT(*) FROM order_lines WHERE table_id = $1 AND status = ANY($2)`)
	args := []interface{}{tableID, pq.Array(statusStrings(statuses))}
	if kind != "" {
		queryBuilder.WriteString(` AND kind = $3`)
		args = append(args, kind)
	}

	var count int
	if err := executor.QueryRowContext(ctx, queryBuilder.String(), args...).Scan(&count); err != nil {
		return 0, dbError(fmt.Sprintf("counting lines of table %d", tableID), err)
	}
	return count, nil
}

// --- Staff views ---

func (r *orderLineRepository) ListKitchenQueue(ctx context.Context, executor SQLExecutor, establishmentID int64) ([]models.KitchenTicket, error) {
	if executor == nil {
		executor = r.db
	}
	tickets := []models.KitchenTicket{}
	query := `SELECT ` + orderLineColumns + `, t.number
	          FROM order_lines ol
	          JOIN tables t ON t.id = ol.table_id
	          WHERE ol.establishment_id = $1 AND ol.kind = $2 AND ol.status = ANY($3)
	          ORDER BY ol.created_at, ol.id`
	kitchenStatuses := []models.OrderLineStatus{
		models.OrderLineStatusPending, models.OrderLineStatusPreparing, models.OrderLineStatusReady,
	}

	rows, err := executor.QueryContext(ctx, query, establishmentID, models.OrderLineKindItem, pq.Array(statusStrings(kitchenStatuses)))
	if err != nil {
		return nil, dbError("querying kitchen queue", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ticket models.KitchenTicket
		if err := scanOrderLine(rows, &ticket.OrderLine, &ticket.TableNumber); err != nil {
			return nil, dbError("scanning kitchen ticket", err)
		}
		tickets = append(tickets, ticket)
	}
	if err = rows.Err(); err != nil {
		return nil, dbError("iterating kitchen queue", err)
	}
	return tickets, nil
}

func (r *orderLineRepository) ListPendingWaiterCalls(ctx context.Context, executor SQLExecutor, establishmentID int64) ([]models.WaiterCall, error) {
	if executor == nil {
		executor = r.db
	}
	calls := []models.WaiterCall{}
	query := `SELECT ol.id, ol.table_id, t.number, ol.ordered_by, ol.created_at
	          FROM order_lines ol
	          JOIN tables t ON t.id = ol.table_id
	          WHERE ol.establishment_id = $1 AND ol.kind = $2 AND ol.status = $3
	          ORDER BY ol.created_at, ol.id`

	rows, err := executor.QueryContext(ctx, query, establishmentID, models.OrderLineKindWaiterCall, models.OrderLineStatusPending)
	if err != nil {
		return nil, dbError("querying waiter calls", err)
	}
	defer rows.Close()

	for rows.Next() {
		var call models.WaiterCall
		var calledBy sql.NullInt64
		if err := rows.Scan(&call.LineID, &call.TableID, &call.TableNumber, &calledBy, &call.CreatedAt); err != nil {
			return nil, dbError("scanning waiter call", err)
		}
		if calledBy.Valid {
			id := calledBy.Int64
			call.CalledBy = &id
		}
		calls = append(calls, call)
	}
	if err = rows.Err(); err != nil {
		return nil, dbError("iterating waiter calls", err)
	}
	return calls, nil
}
