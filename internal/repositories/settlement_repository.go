package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bar_backoffice/internal/models"
)

// SettlementRepository stores closed tabs, the sales ledger.
type SettlementRepository interface {
	CreateSettlement(ctx context.Context, executor SQLExecutor, settlement *models.Settlement) (int64, error)
	GetSettlements(ctx context.Context, establishmentID int64, filters models.SalesFilters) ([]models.Settlement, int, error)
	GetSalesSummary(ctx context.Context, establishmentID int64, from, to *time.Time) (*models.SalesSummary, error)
}

type settlementRepository struct {
	db *sql.DB
}

// NewSettlementRepository creates a new instance of SettlementRepository.
func NewSettlementRepository(db *sql.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

func (r *settlementRepository) CreateSettlement(ctx context.Context, executor SQLExecutor, s *models.Settlement) (int64, error) {
	query := `INSERT INTO settlements
	            (establishment_id, table_id, subtotal, service_fee, total, line_count, closed_by, settled_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id`
	if s.SettledAt.IsZero() {
		s.SettledAt = time.Now()
	}
	err := executor.QueryRowContext(ctx, query,
		s.EstablishmentID, s.TableID, s.Subtotal, s.ServiceFee, s.Total, s.LineCount, s.ClosedBy, s.SettledAt,
	).Scan(&s.ID)
	if err != nil {
		return 0, dbError(fmt.Sprintf("creating settlement for table %d", s.TableID), err)
	}
	return s.ID, nil
}

// periodConditions builds the shared WHERE clause; args[0] is always the establishment.
func periodConditions(establishmentID int64, from, to *time.Time, tableID *int64) (string, []interface{}) {
	conditions := []string{"s.establishment_id = $1"}
	args := []interface{}{establishmentID}
	if from != nil {
		args = append(args, *from)
		conditions = append(conditions, fmt.Sprintf("s.settled_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		conditions = append(conditions, fmt.Sprintf("s.settled_at < $%d", len(args)))
	}
	if tableID != nil {
		args = append(args, *tableID)
		conditions = append(conditions, fmt.Sprintf("s.table_id = $%d", len(args)))
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *settlementRepository) GetSettlements(ctx context.Context, establishmentID int64, filters models.SalesFilters) ([]models.Settlement, int, error) {
	settlements := []models.Settlement{}
	totalCount := 0

	where, args := periodConditions(establishmentID, filters.From, filters.To, filters.TableID)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
        SELECT s.id, s.establishment_id, s.table_id, t.number, s.subtotal, s.service_fee, s.total,
               s.line_count, s.closed_by, s.settled_at, COUNT(*) OVER() AS total_count
        FROM settlements s
        JOIN tables t ON t.id = s.table_id`)
	queryBuilder.WriteString(where)
	queryBuilder.WriteString(" ORDER BY s.settled_at DESC")

	if filters.PageSize > 0 {
		args = append(args, filters.PageSize)
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
		if filters.Page > 0 {
			args = append(args, (filters.Page-1)*filters.PageSize)
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
		}
	}

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, dbError("querying settlements", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.Settlement
		var closedBy sql.NullInt64
		if err := rows.Scan(&s.ID, &s.EstablishmentID, &s.TableID, &s.TableNumber, &s.Subtotal, &s.ServiceFee, &s.Total,
			&s.LineCount, &closedBy, &s.SettledAt, &totalCount); err != nil {
			return nil, 0, dbError("scanning settlement", err)
		}
		if closedBy.Valid {
			id := closedBy.Int64
			s.ClosedBy = &id
		}
		settlements = append(settlements, s)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, dbError("iterating settlements", err)
	}
	return settlements, totalCount, nil
}

func (r *settlementRepository) GetSalesSummary(ctx context.Context, establishmentID int64, from, to *time.Time) (*models.SalesSummary, error) {
	summary := &models.SalesSummary{From: from, To: to}
	where, args := periodConditions(establishmentID, from, to, nil)
	query := `SELECT COUNT(*), COALESCE(SUM(s.subtotal), 0), COALESCE(SUM(s.service_fee), 0), COALESCE(SUM(s.total), 0)
	          FROM settlements s` + where
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&summary.Count, &summary.Subtotal, &summary.ServiceFees, &summary.Revenue)
	if err != nil {
		return nil, dbError("summarizing settlements", err)
	}
	return summary, nil
}
