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

// TableRepository defines the interface for table-related database operations.
type TableRepository interface {
	// ListTables and GetTableByID read through executor, or the pool when it is nil.
	ListTables(ctx context.Context, executor SQLExecutor, establishmentID int64) ([]models.Table, error)
	GetTableByID(ctx context.Context, executor SQLExecutor, tableID int64) (*models.Table, error)
	// LockTable reads the table row with FOR UPDATE; only meaningful inside a transaction.
	LockTable(ctx context.Context, executor SQLExecutor, tableID int64) (*models.Table, error)
	// UpdateTableStatus sets the status when the current one is among expected
	// (any status when expected is empty). It reports whether a row changed.
	UpdateTableStatus(ctx context.Context, executor SQLExecutor, tableID int64, newStatus models.TableStatus, expected ...models.TableStatus) (bool, error)
}

type tableRepository struct {
	db *sql.DB
}

// NewTableRepository creates a new instance of TableRepository.
func NewTableRepository(db *sql.DB) TableRepository {
	return &tableRepository{db: db}
}

const tableColumns = `id, establishment_id, number, status, created_at, updated_at`

func scanTable(row scanner, t *models.Table) error {
	return row.Scan(&t.ID, &t.EstablishmentID, &t.Number, &t.Status, &t.CreatedAt, &t.UpdatedAt)
}

func (r *tableRepository) ListTables(ctx context.Context, executor SQLExecutor, establishmentID int64) ([]models.Table, error) {
	if executor == nil {
		executor = r.db
	}
	tables := []models.Table{}
	// numeric labels sort naturally, free-text labels ("Balcão") go last
	query := `SELECT ` + tableColumns + `
	          FROM tables
	          WHERE establishment_id = $1
	          ORDER BY (number ~ '^[0-9]+$') DESC,
	                   CASE WHEN number ~ '^[0-9]+$' THEN number::int END,
	                   number`
	rows, err := executor.QueryContext(ctx, query, establishmentID)
	if err != nil {
		return nil, dbError(fmt.Sprintf("listing tables of establishment %d", establishmentID), err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.Table
		if err := scanTable(rows, &t); err != nil {
			return nil, dbError("scanning table", err)
		}
		t.Lines = []models.OrderLine{}
		tables = append(tables, t)
	}
	if err = rows.Err(); err != nil {
		return nil, dbError("iterating tables", err)
	}
	return tables, nil
}

func (r *tableRepository) GetTableByID(ctx context.Context, executor SQLExecutor, tableID int64) (*models.Table, error) {
	if executor == nil {
		executor = r.db
	}
	return r.getTable(ctx, executor, tableID, false)
}

func (r *tableRepository) LockTable(ctx context.Context, executor SQLExecutor, tableID int64) (*models.Table, error) {
	return r.getTable(ctx, executor, tableID, true)
}

func (r *tableRepository) getTable(ctx context.Context, executor SQLExecutor, tableID int64, forUpdate bool) (*models.Table, error) {
	t := &models.Table{Lines: []models.OrderLine{}}
	query := `SELECT ` + tableColumns + ` FROM tables WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	if err := scanTable(executor.QueryRowContext(ctx, query, tableID), t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(fmt.Sprintf("getting table by ID %d", tableID), err)
	}
	return t, nil
}

func (r *tableRepository) UpdateTableStatus(ctx context.Context, executor SQLExecutor, tableID int64, newStatus models.TableStatus, expected ...models.TableStatus) (bool, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`UPDATE tables SET status = $1, updated_at = $2 WHERE id = $3`)
	args := []interface{}{newStatus, time.Now(), tableID}
	if len(expected) > 0 {
		from := make([]string, len(expected))
		for i, s := range expected {
			from[i] = string(s)
		}
		queryBuilder.WriteString(` AND status = ANY($4)`)
		args = append(args, pq.Array(from))
	}

	result, err := executor.ExecContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return false, dbError(fmt.Sprintf("updating status of table %d", tableID), err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, dbError(fmt.Sprintf("getting rows affected for table %d", tableID), err)
	}
	return rowsAffected > 0, nil
}
