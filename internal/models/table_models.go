package models

import "time"

// TableStatus is the live occupancy state of a dining table.
type TableStatus string

const (
	TableStatusFree     TableStatus = "free"
	TableStatusOccupied TableStatus = "occupied"
	TableStatusCalling  TableStatus = "calling" // occupied with a pending waiter call
)

// IsValid reports whether s is one of the known table statuses.
func (s TableStatus) IsValid() bool {
	switch s {
	case TableStatusFree, TableStatusOccupied, TableStatusCalling:
		return true
	default:
		return false
	}
}

// Table is a physical table of an establishment. Tables are created at tenant
// setup; only their status changes during service.
type Table struct {
	ID              int64       `json:"id" db:"id"`
	EstablishmentID int64       `json:"establishment_id" db:"establishment_id"`
	Number          string      `json:"number" db:"number"`
	Status          TableStatus `json:"status" db:"status"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
	Lines           []OrderLine `json:"lines"` // active lines only
}
