package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is the derived, unsettled tab of a table.
type Bill struct {
	TableID        int64           `json:"table_id"`
	Lines          []OrderLine     `json:"line_items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ServiceFeeRate decimal.Decimal `json:"service_fee_rate"`
	ServiceFee     decimal.Decimal `json:"service_fee"`
	Total          decimal.Decimal `json:"total"`
}

// Settlement is the sales-ledger record written when a tab is closed.
type Settlement struct {
	ID              int64           `json:"id" db:"id"`
	EstablishmentID int64           `json:"establishment_id" db:"establishment_id"`
	TableID         int64           `json:"table_id" db:"table_id"`
	TableNumber     string          `json:"table_number,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	ServiceFee      decimal.Decimal `json:"service_fee" db:"service_fee"`
	Total           decimal.Decimal `json:"total" db:"total"`
	LineCount       int             `json:"line_count" db:"line_count"`
	ClosedBy        *int64          `json:"closed_by,omitempty" db:"closed_by"`
	SettledAt       time.Time       `json:"settled_at" db:"settled_at"`
}

// CloseTableResult is returned by a successful settlement.
type CloseTableResult struct {
	Success      bool            `json:"success"`
	SettledTotal decimal.Decimal `json:"settled_total"`
	Settlement   *Settlement     `json:"settlement,omitempty"`
}

// SalesFilters narrows the settlement listing.
type SalesFilters struct {
	From     *time.Time `form:"from"`
	To       *time.Time `form:"to"`
	TableID  *int64     `form:"table_id"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// SalesSummary aggregates settlements over a period.
type SalesSummary struct {
	From        *time.Time      `json:"from,omitempty"`
	To          *time.Time      `json:"to,omitempty"`
	Count       int             `json:"count"`
	Revenue     decimal.Decimal `json:"revenue"`
	ServiceFees decimal.Decimal `json:"service_fees"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}
