// Package metrics derives financial figures from a document. Every function
// is read-only; references to missing PDVs or products contribute zero.
package metrics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/period"
)

const AllPDVs = "all"

var hundred = decimal.NewFromInt(100)

func saleDate(s domain.Sale) time.Time { return s.Date }

func realizationDate(r domain.ProfitRealization) time.Time { return r.Date }

// ComputePDV returns the metrics of one PDV over r.
func ComputePDV(doc *domain.Document, pdvID string, r period.Range) domain.PDVMetrics {
	m := domain.PDVMetrics{PDVID: pdvID}

	pdvSales := make([]domain.Sale, 0)
	for _, sale := range doc.Sales {
		if sale.PDVID == pdvID {
			pdvSales = append(pdvSales, sale)
		}
	}
	for _, sale := range period.Filter(pdvSales, r, saleDate) {
		m.SalesCount++
		m.CostOfGoodsSold = m.CostOfGoodsSold.Add(sale.Cost())
		if domain.IsCashEquivalent(sale.PaymentMethod) {
			m.CashSalesCount++
			m.Revenue = m.Revenue.Add(sale.TotalPrice)
		}
		// deferred sales reach gross profit through their realizations only
		if sale.Realized && !sale.Deferred {
			m.GrossProfit = m.GrossProfit.Add(sale.Profit())
		}
		m.OutstandingCredit = m.OutstandingCredit.Add(sale.Outstanding())
	}

	pdvRealizations := make([]domain.ProfitRealization, 0)
	for _, realization := range doc.ProfitRealizations {
		if realization.PDVID == pdvID {
			pdvRealizations = append(pdvRealizations, realization)
		}
	}
	for _, realization := range period.Filter(pdvRealizations, r, realizationDate) {
		m.RealizedFromCredit = m.RealizedFromCredit.Add(realization.Amount)
	}
	m.GrossProfit = m.GrossProfit.Add(m.RealizedFromCredit)

	if pdv, ok := doc.FindPDV(pdvID); ok {
		m.PDVName = pdv.Name
		m.InitialInvestment = pdv.InitialInvestment
		for _, cost := range pdv.FixedCosts {
			m.FixedCosts = m.FixedCosts.Add(cost.Value)
		}
		for _, cost := range pdv.VariableCosts {
			if r.Bounded() && (cost.Date == nil || !r.Contains(*cost.Date)) {
				continue
			}
			m.VariableCosts = m.VariableCosts.Add(cost.Value)
		}
		m.StockValueCost, m.StockValueResale = StockValue(doc, pdv)
	}

	m.TotalCosts = m.FixedCosts.Add(m.VariableCosts)
	m.FinalProfit = m.GrossProfit.Sub(m.TotalCosts)
	m.Ticket = ticket(m.Revenue, m.CashSalesCount)
	return m
}

// StockValue values the PDV inventory at current cost and resale price.
func StockValue(doc *domain.Document, pdv domain.PDV) (cost, resale decimal.Decimal) {
	for _, line := range pdv.Inventory {
		product, ok := doc.FindProduct(line.ProductID)
		if !ok {
			continue
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		cost = cost.Add(product.CurrentCost.Mul(qty))
		resale = resale.Add(product.ResalePrice.Mul(qty))
	}
	return cost, resale
}

// Aggregate computes every PDV and their field-by-field sum.
func Aggregate(doc *domain.Document, r period.Range) (domain.PDVMetrics, []domain.PDVMetrics) {
	perPDV := make([]domain.PDVMetrics, 0, len(doc.PDVs))
	for _, pdv := range doc.PDVs {
		perPDV = append(perPDV, ComputePDV(doc, pdv.ID, r))
	}
	return Sum(perPDV), perPDV
}

// Sum adds metrics field by field. The ticket is recomputed from the summed
// revenue and cash sale count.
func Sum(list []domain.PDVMetrics) domain.PDVMetrics {
	total := domain.PDVMetrics{PDVID: AllPDVs}
	for _, m := range list {
		total.SalesCount += m.SalesCount
		total.CashSalesCount += m.CashSalesCount
		total.Revenue = total.Revenue.Add(m.Revenue)
		total.CostOfGoodsSold = total.CostOfGoodsSold.Add(m.CostOfGoodsSold)
		total.GrossProfit = total.GrossProfit.Add(m.GrossProfit)
		total.RealizedFromCredit = total.RealizedFromCredit.Add(m.RealizedFromCredit)
		total.FixedCosts = total.FixedCosts.Add(m.FixedCosts)
		total.VariableCosts = total.VariableCosts.Add(m.VariableCosts)
		total.TotalCosts = total.TotalCosts.Add(m.TotalCosts)
		total.FinalProfit = total.FinalProfit.Add(m.FinalProfit)
		total.StockValueCost = total.StockValueCost.Add(m.StockValueCost)
		total.StockValueResale = total.StockValueResale.Add(m.StockValueResale)
		total.OutstandingCredit = total.OutstandingCredit.Add(m.OutstandingCredit)
		total.InitialInvestment = total.InitialInvestment.Add(m.InitialInvestment)
	}
	total.Ticket = ticket(total.Revenue, total.CashSalesCount)
	return total
}

func ticket(revenue decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return revenue.DivRound(decimal.NewFromInt(int64(count)), 2)
}

// Product returns sales figures for one product across all PDVs.
func Product(doc *domain.Document, productID string, r period.Range) domain.ProductMetrics {
	m := domain.ProductMetrics{ProductID: productID}
	if product, ok := doc.FindProduct(productID); ok {
		m.Name = product.Name
	}
	for _, sale := range period.Filter(doc.Sales, r, saleDate) {
		if sale.ProductID != productID {
			continue
		}
		m.TotalSold += sale.Quantity
		m.TotalRevenue = m.TotalRevenue.Add(sale.TotalPrice)
		m.TotalProfit = m.TotalProfit.Add(sale.Profit())
	}
	return m
}

// TotalStock is the quantity of a product held across all PDVs.
func TotalStock(doc *domain.Document, productID string) int {
	total := 0
	for _, pdv := range doc.PDVs {
		total += pdv.Quantity(productID)
	}
	return total
}

// CashBalance folds the ledger: credits add, debits subtract, unknown types
// contribute nothing.
func CashBalance(txs []domain.CashTransaction) (balance, credits, debits decimal.Decimal) {
	for _, tx := range txs {
		switch domain.CashSign(tx.Type) {
		case 1:
			credits = credits.Add(tx.Amount)
		case -1:
			debits = debits.Add(tx.Amount)
		}
	}
	return credits.Sub(debits), credits, debits
}

func CashSummary(doc *domain.Document) domain.CashSummary {
	var s domain.CashSummary
	s.Balance, s.Credits, s.Debits = CashBalance(doc.CentralCash.Transactions)
	s.Transactions = len(doc.CentralCash.Transactions)
	for _, pdv := range doc.PDVs {
		cost, _ := StockValue(doc, pdv)
		s.StockValueCost = s.StockValueCost.Add(cost)
	}
	for _, client := range doc.Clients {
		s.PendingFromClients = s.PendingFromClients.Add(client.Debt)
	}
	for _, entry := range doc.AccountsReceivable {
		s.PendingReceivables = s.PendingReceivables.Add(entry.Remaining())
	}
	for _, entry := range doc.AccountsPayable {
		s.PendingPayables = s.PendingPayables.Add(entry.Remaining())
	}
	s.WalletBalance = doc.DigitalWallet.Balance
	s.Equity = s.Balance.Add(s.StockValueCost).Add(s.PendingFromClients)
	return s
}

// GoalProgress measures cash-equivalent revenue against the PDV goal. The
// daily target spreads the goal over the days of the current month; when a
// due date is set, dailyNeeded spreads what is left over the remaining days.
func GoalProgress(doc *domain.Document, pdvID string, goal domain.Goal, now time.Time, loc *time.Location) domain.GoalProgress {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	p := domain.GoalProgress{PDVID: pdvID, Target: goal.Target, Goal: goal}
	p.Revenue = ComputePDV(doc, pdvID, period.FromGoal(goal, loc)).Revenue
	p.Remaining = decimal.Max(goal.Target.Sub(p.Revenue), decimal.Zero)
	if goal.Target.IsPositive() {
		p.ProgressPercent = p.Revenue.Mul(hundred).DivRound(goal.Target, 2)
		p.Achieved = p.Revenue.GreaterThanOrEqual(goal.Target)
	}

	days := daysInMonth(now)
	p.DailyTarget = goal.Target.DivRound(decimal.NewFromInt(int64(days)), 2)

	p.DailyNeeded = p.Remaining
	if !goal.DueDate.IsZero() {
		p.DaysLeft = daysUntil(now, goal.DueDate, loc)
		if p.DaysLeft > 0 {
			p.DailyNeeded = p.Remaining.DivRound(decimal.NewFromInt(int64(p.DaysLeft)), 2)
		}
	}
	return p
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// daysUntil counts calendar days from today through due, both inclusive.
func daysUntil(now time.Time, due domain.Date, loc *time.Location) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	end := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, loc)
	if end.Before(today) {
		return 0
	}
	return int(math.Round(end.Sub(today).Hours()/24)) + 1
}

// Statement gathers a client with its sales (newest first) and realizations.
func Statement(doc *domain.Document, clientID string) (domain.ClientStatement, bool) {
	client, ok := doc.FindClient(clientID)
	if !ok {
		return domain.ClientStatement{}, false
	}
	st := domain.ClientStatement{
		Client:       client,
		Sales:        doc.ClientSales(clientID),
		Realizations: doc.ClientRealizations(clientID),
	}
	for _, sale := range st.Sales {
		st.OpenCredit = st.OpenCredit.Add(sale.Outstanding())
	}
	return st, true
}
