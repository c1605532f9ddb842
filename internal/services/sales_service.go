package services

import (
	"context"
	"fmt"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/repositories"
)

const (
	defaultSalesPageSize = 50
	maxSalesPageSize     = 500
)

// SettlementPage is one page of the sales ledger.
type SettlementPage struct {
	Settlements []models.Settlement `json:"settlements"`
	Total       int                 `json:"total"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
}

// SalesService reads the ledger of closed tabs written by CloseTable.
type SalesService interface {
	ListSettlements(ctx context.Context, sess models.Session, filters models.SalesFilters) (*SettlementPage, error)
	Summary(ctx context.Context, sess models.Session, from, to *time.Time) (*models.SalesSummary, error)
}

type salesService struct {
	repo         repositories.SettlementRepository
	queryTimeout time.Duration
}

// NewSalesService creates a new instance of SalesService.
func NewSalesService(repo repositories.SettlementRepository, queryTimeout time.Duration) SalesService {
	return &salesService{repo: repo, queryTimeout: queryTimeout}
}

func validatePeriod(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return fmt.Errorf("%w: 'to' must not be before 'from'", ErrValidation)
	}
	return nil
}

func (s *salesService) ListSettlements(ctx context.Context, sess models.Session, filters models.SalesFilters) (*SettlementPage, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	if err := validatePeriod(filters.From, filters.To); err != nil {
		return nil, err
	}
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = defaultSalesPageSize
	}
	if filters.PageSize > maxSalesPageSize {
		filters.PageSize = maxSalesPageSize
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	settlements, total, err := s.repo.GetSettlements(ctx, sess.EstablishmentID, filters)
	if err != nil {
		return nil, mapRepoError("listing settlements", err)
	}
	return &SettlementPage{Settlements: settlements, Total: total, Page: filters.Page, PageSize: filters.PageSize}, nil
}

func (s *salesService) Summary(ctx context.Context, sess models.Session, from, to *time.Time) (*models.SalesSummary, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	summary, err := s.repo.GetSalesSummary(ctx, sess.EstablishmentID, from, to)
	if err != nil {
		return nil, mapRepoError("summarising sales", err)
	}
	return summary, nil
}
