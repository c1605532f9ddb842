package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLineStatus is the lifecycle position of a single ordered product.
type OrderLineStatus string

const (
	OrderLineStatusPending   OrderLineStatus = "pending"
	OrderLineStatusPreparing OrderLineStatus = "preparing"
	OrderLineStatusReady     OrderLineStatus = "ready"
	OrderLineStatusDelivered OrderLineStatus = "delivered"
	OrderLineStatusPaid      OrderLineStatus = "paid"
	OrderLineStatusCancelled OrderLineStatus = "cancelled"
)

// ActiveOrderLineStatuses are the statuses that still count towards a tab.
var ActiveOrderLineStatuses = []OrderLineStatus{
	OrderLineStatusPending,
	OrderLineStatusPreparing,
	OrderLineStatusReady,
	OrderLineStatusDelivered,
}

// kitchen pipeline order; paid is reachable only through settlement
var pipeline = map[OrderLineStatus]OrderLineStatus{
	OrderLineStatusPending:   OrderLineStatusPreparing,
	OrderLineStatusPreparing: OrderLineStatusReady,
	OrderLineStatusReady:     OrderLineStatusDelivered,
}

// IsValid reports whether s is a known status.
func (s OrderLineStatus) IsValid() bool {
	switch s {
	case OrderLineStatusPending, OrderLineStatusPreparing, OrderLineStatusReady,
		OrderLineStatusDelivered, OrderLineStatusPaid, OrderLineStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive is true for pending, preparing, ready and delivered.
func (s OrderLineStatus) IsActive() bool {
	switch s {
	case OrderLineStatusPending, OrderLineStatusPreparing, OrderLineStatusReady, OrderLineStatusDelivered:
		return true
	default:
		return false
	}
}

// IsTerminal is true for paid and cancelled.
func (s OrderLineStatus) IsTerminal() bool {
	return s == OrderLineStatusPaid || s == OrderLineStatusCancelled
}

// Next returns the following kitchen step, if any.
func (s OrderLineStatus) Next() (OrderLineStatus, bool) {
	next, ok := pipeline[s]
	return next, ok
}

// CanAdvance reports whether from -> to is a single legal step of the kitchen pipeline.
func CanAdvance(from, to OrderLineStatus) bool {
	next, ok := from.Next()
	return ok && next == to
}

// CanCancel reports whether a line in status s may be cancelled.
func CanCancel(s OrderLineStatus) bool {
	return s.IsActive()
}

// OrderLineKind separates billable items from non-billable sentinel events.
type OrderLineKind string

const (
	OrderLineKindItem       OrderLineKind = "item"
	OrderLineKindWaiterCall OrderLineKind = "waiter_call"
)

// WaiterCallLineName is the fixed name carried by waiter-call sentinel lines.
const WaiterCallLineName = "Call waiter"

// OrderLine is one ordered product on a table's tab. Name and UnitPrice are
// snapshots taken when the line was created.
type OrderLine struct {
	ID              int64           `json:"id" db:"id"`
	EstablishmentID int64           `json:"establishment_id" db:"establishment_id"`
	TableID         int64           `json:"table_id" db:"table_id"`
	ProductID       *int64          `json:"product_id,omitempty" db:"product_id"`
	Name            string          `json:"name" db:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price" db:"unit_price"`
	Quantity        int             `json:"quantity" db:"quantity"`
	Status          OrderLineStatus `json:"status" db:"status"`
	Kind            OrderLineKind   `json:"kind" db:"kind"`
	OrderedBy       *int64          `json:"ordered_by,omitempty" db:"ordered_by"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// IsWaiterCall reports whether the line is the non-billable call sentinel.
func (l *OrderLine) IsWaiterCall() bool {
	return l.Kind == OrderLineKindWaiterCall
}

// IsBillable is true for item lines that still belong to the open tab.
func (l *OrderLine) IsBillable() bool {
	return !l.IsWaiterCall() && l.Status.IsActive()
}

// LineTotal is unit price times quantity.
func (l *OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// KitchenTicket is an item line as shown on the kitchen display.
type KitchenTicket struct {
	OrderLine
	TableNumber    string        `json:"table_number"`
	Elapsed        time.Duration `json:"-"`
	ElapsedSeconds int64         `json:"elapsed_seconds"`
	Late           bool          `json:"late"`
}

// WaiterCall is a pending call-waiter sentinel with its table label.
type WaiterCall struct {
	LineID      int64     `json:"line_id"`
	TableID     int64     `json:"table_id"`
	TableNumber string    `json:"table_number"`
	CalledBy    *int64    `json:"called_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
