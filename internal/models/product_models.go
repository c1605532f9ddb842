package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a menu entry of an establishment.
type Product struct {
	ID              int64           `json:"id" db:"id"`
	EstablishmentID int64           `json:"establishment_id" db:"establishment_id"`
	Name            string          `json:"name" db:"name"`
	Category        string          `json:"category" db:"category"`
	Price           decimal.Decimal `json:"price" db:"price"`
	IsAvailable     bool            `json:"is_available" db:"is_available"`
	ImageURL        *string         `json:"image_url,omitempty" db:"image_url"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// ProductFilters narrows the menu listing.
type ProductFilters struct {
	Category      *string `form:"category"`
	OnlyAvailable bool    `form:"only_available"`
}
