package ledger

import (
	"slices"

	"github.com/shopspring/decimal"

	"smartpdv/backend/internal/domain"
)

// Allocation is the share of a client payment applied to one open sale.
type Allocation struct {
	SaleIndex int
	Amount    decimal.Decimal
	Profit    decimal.Decimal
	Completes bool
}

// Allocate spreads amount over the client's open credit sales, oldest
// first, and returns the allocations plus whatever could not be placed.
// Profit is the part of the sale's profit recognized by each allocation:
// amount × profit / total, rounded to cents, with the allocation that
// completes a sale taking exactly what is left so the realizations of a
// sale always add up to its profit.
func Allocate(sales []domain.Sale, clientID string, amount decimal.Decimal) ([]Allocation, decimal.Decimal) {
	queue := make([]int, 0)
	for i, sale := range sales {
		if sale.ClientID == clientID && sale.Outstanding().IsPositive() {
			queue = append(queue, i)
		}
	}
	slices.SortStableFunc(queue, func(a, b int) int {
		return sales[a].Date.Compare(sales[b].Date)
	})

	allocations := make([]Allocation, 0, len(queue))
	rest := amount
	for _, idx := range queue {
		if !rest.IsPositive() {
			break
		}
		sale := sales[idx]
		portion := decimal.Min(rest, sale.Outstanding())
		collected := sale.Collected.Add(portion)
		completes := collected.GreaterThanOrEqual(sale.TotalPrice)

		allocations = append(allocations, Allocation{
			SaleIndex: idx,
			Amount:    portion,
			Profit:    recognizedProfit(sale, collected).Sub(recognizedProfit(sale, sale.Collected)),
			Completes: completes,
		})
		rest = rest.Sub(portion)
	}
	return allocations, rest
}

// recognizedProfit is the profit recognized once collected of the sale
// total has been received.
func recognizedProfit(sale domain.Sale, collected decimal.Decimal) decimal.Decimal {
	if !sale.TotalPrice.IsPositive() || !collected.IsPositive() {
		return decimal.Zero
	}
	if collected.GreaterThanOrEqual(sale.TotalPrice) {
		return sale.Profit()
	}
	return sale.Profit().Mul(collected).DivRound(sale.TotalPrice, 2)
}
