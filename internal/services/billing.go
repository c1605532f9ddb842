package services

import (
	"github.com/shopspring/decimal"

	"bar_backoffice/internal/models"
)

// CalculateBill derives a table's bill from its lines. Only billable lines
// (active items) count; sentinel and terminal lines are skipped. The fee is
// rounded half-up to cents and the total is subtotal plus fee.
func CalculateBill(tableID int64, lines []models.OrderLine, rate decimal.Decimal) models.Bill {
	bill := models.Bill{
		TableID:        tableID,
		Lines:          make([]models.OrderLine, 0, len(lines)),
		Subtotal:       decimal.Zero,
		ServiceFeeRate: rate,
	}
	for i := range lines {
		if !lines[i].IsBillable() {
			continue
		}
		bill.Lines = append(bill.Lines, lines[i])
		bill.Subtotal = bill.Subtotal.Add(lines[i].LineTotal())
	}
	bill.ServiceFee = bill.Subtotal.Mul(rate).Round(2)
	bill.Total = bill.Subtotal.Add(bill.ServiceFee)
	return bill
}
