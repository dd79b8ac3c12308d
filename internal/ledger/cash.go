package ledger

import (
	"fmt"
	"strings"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/metrics"
)

// Withdraw debits the central cash with a free-text reason.
func (l *Ledger) Withdraw(doc *domain.Document, req domain.CashMovementRequest) (domain.CashMovementResult, error) {
	if !req.Amount.IsPositive() {
		return domain.CashMovementResult{}, domain.Invalid("withdrawal amount must be positive")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.CashMovementResult{}, domain.Invalid("withdrawal reason is required")
	}

	tx := l.appendCash(doc, domain.CashWithdrawal, req.Amount, reason)
	balance, _, _ := metrics.CashBalance(doc.CentralCash.Transactions)
	return domain.CashMovementResult{Transaction: tx, Balance: balance}, nil
}

// WalletDeposit credits the central cash and the digital wallet total. When
// a client is given the amount is also added to that client's wallet.
func (l *Ledger) WalletDeposit(doc *domain.Document, req domain.CashMovementRequest) (domain.CashMovementResult, error) {
	if !req.Amount.IsPositive() {
		return domain.CashMovementResult{}, domain.Invalid("deposit amount must be positive")
	}
	clientID := strings.TrimSpace(req.ClientID)
	clientIdx := -1
	if clientID != "" {
		clientIdx = doc.ClientIndex(clientID)
		if clientIdx < 0 {
			return domain.CashMovementResult{}, domain.NotFound("client", clientID)
		}
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Wallet deposit"
		if clientIdx >= 0 {
			reason = fmt.Sprintf("Wallet deposit: %s", doc.Clients[clientIdx].Name)
		}
	}

	doc.DigitalWallet.Balance = doc.DigitalWallet.Balance.Add(req.Amount)
	tx := l.appendCash(doc, domain.CashWalletDeposit, req.Amount, reason)
	result := domain.CashMovementResult{Transaction: tx}
	if clientIdx >= 0 {
		client := &doc.Clients[clientIdx]
		client.WalletBalance = client.WalletBalance.Add(req.Amount)
		snapshot := *client
		result.Client = &snapshot
	}
	result.Balance, _, _ = metrics.CashBalance(doc.CentralCash.Transactions)
	return result, nil
}

// DeleteProduct removes a product that no PDV holds in stock.
func (l *Ledger) DeleteProduct(doc *domain.Document, id string) error {
	idx := doc.ProductIndex(id)
	if idx < 0 {
		return domain.NotFound("product", id)
	}
	if stock := metrics.TotalStock(doc, id); stock > 0 {
		return fmt.Errorf("%w: product %s still has %d units in stock", domain.ErrOutstandingBalance, id, stock)
	}

	doc.Products = append(doc.Products[:idx], doc.Products[idx+1:]...)
	for i := range doc.PDVs {
		pdv := &doc.PDVs[i]
		kept := pdv.Inventory[:0]
		for _, line := range pdv.Inventory {
			if line.ProductID != id {
				kept = append(kept, line)
			}
		}
		pdv.Inventory = kept
	}
	return nil
}

// DeleteClient removes a client that owes nothing and holds no wallet money.
func (l *Ledger) DeleteClient(doc *domain.Document, id string) error {
	idx := doc.ClientIndex(id)
	if idx < 0 {
		return domain.NotFound("client", id)
	}
	client := doc.Clients[idx]
	if client.Debt.IsPositive() {
		return fmt.Errorf("%w: client %s owes %s", domain.ErrOutstandingBalance, id, client.Debt.StringFixed(2))
	}
	if client.WalletBalance.IsPositive() {
		return fmt.Errorf("%w: client %s holds %s in wallet", domain.ErrOutstandingBalance, id, client.WalletBalance.StringFixed(2))
	}

	doc.Clients = append(doc.Clients[:idx], doc.Clients[idx+1:]...)
	return nil
}

// DeleteFinanceEntry removes a payable or receivable. An entry that has
// received payments but is not settled cannot be removed.
func (l *Ledger) DeleteFinanceEntry(doc *domain.Document, kind string, id string) error {
	entries := doc.FinanceEntries(kind)
	if entries == nil {
		return domain.Invalid("unknown finance kind %q", kind)
	}
	idx := financeIndex(*entries, id)
	if idx < 0 {
		return domain.NotFound(kind, id)
	}
	entry := (*entries)[idx]
	if paid := entry.TotalPaid(); paid.IsPositive() && !entry.FullyPaid() {
		return fmt.Errorf("%w: %s %s is partially paid (%s of %s)", domain.ErrOutstandingBalance,
			kind, id, paid.StringFixed(2), entry.Amount.StringFixed(2))
	}

	*entries = append((*entries)[:idx], (*entries)[idx+1:]...)
	return nil
}
