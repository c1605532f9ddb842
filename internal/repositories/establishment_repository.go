package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bar_backoffice/internal/models"

	"github.com/shopspring/decimal"
)

// EstablishmentRepository reads and writes tenant settings.
type EstablishmentRepository interface {
	GetEstablishmentByID(ctx context.Context, establishmentID int64) (*models.Establishment, error)
	UpdateEstablishment(ctx context.Context, executor SQLExecutor, establishment *models.Establishment) error
}

type establishmentRepository struct {
	db *sql.DB
}

// NewEstablishmentRepository creates a new instance of EstablishmentRepository.
func NewEstablishmentRepository(db *sql.DB) EstablishmentRepository {
	return &establishmentRepository{db: db}
}

func (r *establishmentRepository) GetEstablishmentByID(ctx context.Context, establishmentID int64) (*models.Establishment, error) {
	e := &models.Establishment{}
	var rate decimal.NullDecimal
	var lateAfter sql.NullInt64
	query := `SELECT id, name, theme_color, service_fee_rate, kitchen_late_after_minutes, created_at, updated_at
	          FROM establishments WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, establishmentID).
		Scan(&e.ID, &e.Name, &e.ThemeColor, &rate, &lateAfter, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbError(fmt.Sprintf("getting establishment by ID %d", establishmentID), err)
	}
	if rate.Valid {
		e.ServiceFeeRate = &rate.Decimal
	}
	if lateAfter.Valid {
		minutes := int(lateAfter.Int64)
		e.KitchenLateAfterMinutes = &minutes
	}
	return e, nil
}

func (r *establishmentRepository) UpdateEstablishment(ctx context.Context, executor SQLExecutor, e *models.Establishment) error {
	query := `UPDATE establishments
	          SET name = $1, theme_color = $2, service_fee_rate = $3, kitchen_late_after_minutes = $4, updated_at = $5
	          WHERE id = $6`
	var rate decimal.NullDecimal
	if e.ServiceFeeRate != nil {
		rate = decimal.NewNullDecimal(*e.ServiceFeeRate)
	}
	e.UpdatedAt = time.Now()
	result, err := executor.ExecContext(ctx, query, e.Name, e.ThemeColor, rate, e.KitchenLateAfterMinutes, e.UpdatedAt, e.ID)
	if err != nil {
		return dbError(fmt.Sprintf("updating establishment ID %d", e.ID), err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
