package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Establishment is a tenant: one restaurant or bar with its own settings.
type Establishment struct {
	ID                      int64            `json:"id" db:"id"`
	Name                    string           `json:"name" db:"name"`
	ThemeColor              string           `json:"theme_color" db:"theme_color"`
	ServiceFeeRate          *decimal.Decimal `json:"service_fee_rate,omitempty" db:"service_fee_rate"`
	KitchenLateAfterMinutes *int             `json:"kitchen_late_after_minutes,omitempty" db:"kitchen_late_after_minutes"`
	CreatedAt               time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at" db:"updated_at"`
}
