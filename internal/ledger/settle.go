package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"smartpdv/backend/internal/domain"
)

// SettleClientDebt applies a client payment. The amount is clamped to the
// client's debt, allocated over open credit sales oldest first, and every
// sale touched gets one profit realization.
func (l *Ledger) SettleClientDebt(doc *domain.Document, req domain.ClientPaymentRequest) (domain.ClientPaymentResult, error) {
	if !req.Amount.IsPositive() {
		return domain.ClientPaymentResult{}, domain.Invalid("payment amount must be positive")
	}
	clientIdx := doc.ClientIndex(req.ClientID)
	if clientIdx < 0 {
		return domain.ClientPaymentResult{}, domain.NotFound("client", req.ClientID)
	}
	client := &doc.Clients[clientIdx]
	if !client.Debt.IsPositive() {
		return domain.ClientPaymentResult{}, fmt.Errorf("%w: client %s has no debt", domain.ErrAlreadySettled, client.ID)
	}

	applied := decimal.Min(req.Amount, client.Debt)
	allocations, _ := Allocate(doc.Sales, client.ID, applied)

	now := l.now()
	realizations := make([]domain.ProfitRealization, 0, len(allocations))
	for _, alloc := range allocations {
		sale := &doc.Sales[alloc.SaleIndex]
		sale.Collected = sale.Collected.Add(alloc.Amount)
		if alloc.Completes {
			sale.Realized = true
		}
		realization := domain.ProfitRealization{
			ID:       l.newID("real"),
			Date:     now,
			PDVID:    sale.PDVID,
			SaleID:   sale.ID,
			ClientID: client.ID,
			Amount:   alloc.Profit,
		}
		realizations = append(realizations, realization)
	}
	doc.ProfitRealizations = append(doc.ProfitRealizations, realizations...)

	client.Debt = client.Debt.Sub(applied)
	doc.SmartCredit.Receivable = decimal.Max(doc.SmartCredit.Receivable.Sub(applied), decimal.Zero)

	tx := l.appendCash(doc, domain.CashCreditPayment, applied, fmt.Sprintf("Credit payment: %s", client.Name))

	return domain.ClientPaymentResult{
		Client:       *client,
		Applied:      applied,
		Realizations: realizations,
		Transaction:  tx,
	}, nil
}

// SettleReceivable records a (partial) payment on a receivable entry and
// credits the cash ledger.
func (l *Ledger) SettleReceivable(doc *domain.Document, entryID string, amount decimal.Decimal) (domain.FinancePaymentResult, error) {
	return l.settleEntry(doc, domain.FinanceReceivable, entryID, amount)
}

// SettlePayable pays a payable entry and debits the cash ledger. A zero
// amount pays it in full.
func (l *Ledger) SettlePayable(doc *domain.Document, entryID string, amount decimal.Decimal) (domain.FinancePaymentResult, error) {
	return l.settleEntry(doc, domain.FinancePayable, entryID, amount)
}

func (l *Ledger) settleEntry(doc *domain.Document, kind string, entryID string, amount decimal.Decimal) (domain.FinancePaymentResult, error) {
	entries := doc.FinanceEntries(kind)
	if entries == nil {
		return domain.FinancePaymentResult{}, domain.Invalid("unknown finance kind %q", kind)
	}
	idx := financeIndex(*entries, entryID)
	if idx < 0 {
		return domain.FinancePaymentResult{}, domain.NotFound(kind, entryID)
	}
	if amount.IsNegative() {
		return domain.FinancePaymentResult{}, domain.Invalid("payment amount must not be negative")
	}
	entry := &(*entries)[idx]
	if entry.FullyPaid() {
		return domain.FinancePaymentResult{}, fmt.Errorf("%w: %s %s", domain.ErrAlreadySettled, kind, entry.ID)
	}

	remaining := entry.Remaining()
	applied := remaining
	if amount.IsPositive() {
		applied = decimal.Min(amount, remaining)
	}

	now := l.now()
	entry.Payments = append(entry.Payments, domain.Payment{Amount: applied, Date: now})
	if entry.TotalPaid().GreaterThanOrEqual(entry.Amount) {
		entry.Paid = true
	}
	result := domain.FinancePaymentResult{Entry: *entry, Applied: applied}

	if entry.Paid && entry.IsRecurring {
		renewal := l.renew(kind, *entry)
		*entries = append(*entries, renewal)
		result.Renewal = &renewal
	}

	if kind == domain.FinanceReceivable {
		result.Transaction = l.appendCash(doc, domain.CashReceivable, applied, fmt.Sprintf("Receivable: %s", result.Entry.Description))
	} else {
		result.Transaction = l.appendCash(doc, domain.CashPayable, applied, fmt.Sprintf("Payable: %s", result.Entry.Description))
	}
	return result, nil
}

// renew opens the next period of a recurring entry, due one month later.
func (l *Ledger) renew(kind string, entry domain.FinanceEntry) domain.FinanceEntry {
	return domain.FinanceEntry{
		ID:          l.newID(kind),
		Description: entry.Description,
		Amount:      entry.Amount,
		DueDate:     entry.DueDate.AddMonths(1),
		PDVID:       entry.PDVID,
		Payments:    []domain.Payment{},
		IsRecurring: true,
	}
}

func (l *Ledger) CreateFinanceEntry(doc *domain.Document, kind string, req domain.FinanceEntryRequest) (domain.FinanceEntry, error) {
	entries := doc.FinanceEntries(kind)
	if entries == nil {
		return domain.FinanceEntry{}, domain.Invalid("unknown finance kind %q", kind)
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.FinanceEntry{}, domain.Invalid("description is required")
	}
	if !req.Amount.IsPositive() {
		return domain.FinanceEntry{}, domain.Invalid("amount must be positive")
	}
	if req.DueDate.IsZero() {
		return domain.FinanceEntry{}, domain.Invalid("due date is required")
	}
	pdvID := strings.TrimSpace(req.PDVID)
	if pdvID != "" && doc.PDVIndex(pdvID) < 0 {
		return domain.FinanceEntry{}, domain.NotFound("pdv", pdvID)
	}

	entry := domain.FinanceEntry{
		ID:          l.newID(kind),
		Description: description,
		Amount:      req.Amount,
		DueDate:     req.DueDate,
		PDVID:       pdvID,
		Payments:    []domain.Payment{},
		IsRecurring: req.IsRecurring,
	}
	*entries = append(*entries, entry)
	return entry, nil
}

func (l *Ledger) UpdateFinanceEntry(doc *domain.Document, kind string, id string, req domain.FinanceEntryUpdateRequest) (domain.FinanceEntry, error) {
	entries := doc.FinanceEntries(kind)
	if entries == nil {
		return domain.FinanceEntry{}, domain.Invalid("unknown finance kind %q", kind)
	}
	idx := financeIndex(*entries, id)
	if idx < 0 {
		return domain.FinanceEntry{}, domain.NotFound(kind, id)
	}

	updated := (*entries)[idx]
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			return domain.FinanceEntry{}, domain.Invalid("description is required")
		}
		updated.Description = description
	}
	if req.Amount.Valid {
		if !req.Amount.Decimal.IsPositive() {
			return domain.FinanceEntry{}, domain.Invalid("amount must be positive")
		}
		updated.Amount = req.Amount.Decimal
	}
	if req.DueDate != nil {
		if req.DueDate.IsZero() {
			return domain.FinanceEntry{}, domain.Invalid("due date is required")
		}
		updated.DueDate = *req.DueDate
	}
	if req.PDVID != nil {
		pdvID := strings.TrimSpace(*req.PDVID)
		if pdvID != "" && doc.PDVIndex(pdvID) < 0 {
			return domain.FinanceEntry{}, domain.NotFound("pdv", pdvID)
		}
		updated.PDVID = pdvID
	}
	if req.IsRecurring != nil {
		updated.IsRecurring = *req.IsRecurring
	}
	if len(updated.Payments) > 0 && updated.TotalPaid().GreaterThanOrEqual(updated.Amount) {
		updated.Paid = true
	}

	(*entries)[idx] = updated
	return updated, nil
}

func financeIndex(entries []domain.FinanceEntry, id string) int {
	for i, entry := range entries {
		if entry.ID == id {
			return i
		}
	}
	return -1
}
