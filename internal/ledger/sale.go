package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"smartpdv/backend/internal/domain"
)

// Restock adds stock to a PDV at unitCost (the product's current cost when
// unset), books the purchase as a variable cost and debits the cash ledger.
// A unit cost different from the current one becomes the new current cost.
func (l *Ledger) Restock(doc *domain.Document, req domain.RestockRequest) (domain.RestockResult, error) {
	if req.Quantity <= 0 {
		return domain.RestockResult{}, domain.Invalid("restock quantity must be positive")
	}
	pdvIdx := doc.PDVIndex(req.PDVID)
	if pdvIdx < 0 {
		return domain.RestockResult{}, domain.NotFound("pdv", req.PDVID)
	}
	productIdx := doc.ProductIndex(req.ProductID)
	if productIdx < 0 {
		return domain.RestockResult{}, domain.NotFound("product", req.ProductID)
	}

	product := doc.Products[productIdx]
	unitCost := product.CurrentCost
	if req.UnitCost.Valid {
		unitCost = req.UnitCost.Decimal
	}
	if unitCost.IsNegative() {
		return domain.RestockResult{}, domain.Invalid("unit cost must not be negative")
	}

	if !unitCost.Equal(product.CurrentCost) {
		product.CurrentCost = unitCost
		doc.Products[productIdx] = product
	}

	pdv := &doc.PDVs[pdvIdx]
	qty := setQuantity(pdv, req.ProductID, pdv.Quantity(req.ProductID)+req.Quantity)

	total := unitCost.Mul(decimal.NewFromInt(int64(req.Quantity)))
	now := l.now()
	cost := domain.CostEntry{
		ID:    l.newID("cost"),
		Name:  fmt.Sprintf("Restock %dx %s", req.Quantity, product.Name),
		Value: total,
		Date:  &now,
	}
	pdv.VariableCosts = append(pdv.VariableCosts, cost)

	tx := l.appendCash(doc, domain.CashStockPurchase, total,
		fmt.Sprintf("Stock purchase: %dx %s (%s)", req.Quantity, product.Name, pdv.Name))

	return domain.RestockResult{
		Product:     product,
		Quantity:    qty,
		CostEntry:   cost,
		Transaction: tx,
	}, nil
}

// RecordSale sells from PDV stock at the product's resale price, freezing
// the current cost on the sale.
func (l *Ledger) RecordSale(doc *domain.Document, req domain.SaleRequest) (domain.SaleResult, error) {
	method := NormalizePaymentMethod(req.PaymentMethod)
	if req.Quantity <= 0 {
		return domain.SaleResult{}, domain.Invalid("sale quantity must be positive")
	}
	if !domain.IsSupportedPaymentMethod(method) {
		return domain.SaleResult{}, domain.Invalid("unsupported payment method %q", req.PaymentMethod)
	}
	pdvIdx := doc.PDVIndex(req.PDVID)
	if pdvIdx < 0 {
		return domain.SaleResult{}, domain.NotFound("pdv", req.PDVID)
	}
	productIdx := doc.ProductIndex(req.ProductID)
	if productIdx < 0 {
		return domain.SaleResult{}, domain.NotFound("product", req.ProductID)
	}

	product := doc.Products[productIdx]
	available := doc.PDVs[pdvIdx].Quantity(req.ProductID)
	if req.Quantity > available {
		return domain.SaleResult{}, &domain.StockError{
			PDVID:     req.PDVID,
			ProductID: req.ProductID,
			Available: available,
			Requested: req.Quantity,
		}
	}

	total := product.ResalePrice.Mul(decimal.NewFromInt(int64(req.Quantity)))

	clientID := strings.TrimSpace(req.ClientID)
	clientIdx := -1
	if clientID != "" {
		clientIdx = doc.ClientIndex(clientID)
		if clientIdx < 0 {
			return domain.SaleResult{}, domain.NotFound("client", clientID)
		}
	}

	switch method {
	case domain.PaymentCredit:
		if clientIdx < 0 {
			return domain.SaleResult{}, domain.Invalid("a client is required for credit sales")
		}
		client := doc.Clients[clientIdx]
		if room, limited := client.AvailableCredit(); limited && total.GreaterThan(room) {
			return domain.SaleResult{}, &domain.BalanceError{ClientID: clientID, Available: room, Requested: total}
		}
	case domain.PaymentWallet:
		if clientIdx < 0 {
			return domain.SaleResult{}, domain.Invalid("a client is required for wallet sales")
		}
		client := doc.Clients[clientIdx]
		if total.GreaterThan(client.WalletBalance) {
			return domain.SaleResult{}, &domain.BalanceError{ClientID: clientID, Wallet: true, Available: client.WalletBalance, Requested: total}
		}
	}

	pdv := &doc.PDVs[pdvIdx]
	setQuantity(pdv, req.ProductID, available-req.Quantity)

	sale := domain.Sale{
		ID:               l.newID("sale"),
		PDVID:            req.PDVID,
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		UnitPrice:        product.ResalePrice,
		TotalPrice:       total,
		CostAtTimeOfSale: product.CurrentCost,
		Date:             l.now(),
		PaymentMethod:    method,
		ClientID:         clientID,
		Realized:         method != domain.PaymentCredit,
		Deferred:         method == domain.PaymentCredit,
	}
	// nothing to collect on a free credit sale, its profit is booked now
	if sale.Deferred && !total.IsPositive() {
		sale.Deferred = false
		sale.Realized = true
	}
	if sale.Realized {
		sale.Collected = total
	}
	doc.Sales = append(doc.Sales, sale)

	result := domain.SaleResult{Sale: sale}
	switch method {
	case domain.PaymentCash, domain.PaymentPix:
		tx := l.appendCash(doc, domain.CashSale, total,
			fmt.Sprintf("Sale: %dx %s (%s)", req.Quantity, product.Name, pdv.Name))
		result.Transaction = &tx
	case domain.PaymentWallet:
		client := &doc.Clients[clientIdx]
		client.WalletBalance = client.WalletBalance.Sub(total)
		doc.DigitalWallet.Balance = decimal.Max(doc.DigitalWallet.Balance.Sub(total), decimal.Zero)
	case domain.PaymentCredit:
		client := &doc.Clients[clientIdx]
		client.Debt = client.Debt.Add(total)
		doc.SmartCredit.Receivable = doc.SmartCredit.Receivable.Add(total)
	}
	if clientIdx >= 0 {
		client := doc.Clients[clientIdx]
		result.Client = &client
	}
	return result, nil
}

// AdjustInventory overrides a stock count, for corrections after a count.
func (l *Ledger) AdjustInventory(doc *domain.Document, req domain.InventoryAdjustRequest) (domain.InventoryAdjustResult, error) {
	if req.Quantity < 0 {
		return domain.InventoryAdjustResult{}, domain.Invalid("quantity must not be negative")
	}
	pdvIdx := doc.PDVIndex(req.PDVID)
	if pdvIdx < 0 {
		return domain.InventoryAdjustResult{}, domain.NotFound("pdv", req.PDVID)
	}
	if doc.ProductIndex(req.ProductID) < 0 {
		return domain.InventoryAdjustResult{}, domain.NotFound("product", req.ProductID)
	}

	pdv := &doc.PDVs[pdvIdx]
	previous := pdv.Quantity(req.ProductID)
	setQuantity(pdv, req.ProductID, req.Quantity)
	return domain.InventoryAdjustResult{
		PDVID:     req.PDVID,
		ProductID: req.ProductID,
		Previous:  previous,
		Quantity:  req.Quantity,
	}, nil
}

// NormalizePaymentMethod lowercases the method and maps the fiado alias.
func NormalizePaymentMethod(method string) string {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "fiado" {
		return domain.PaymentCredit
	}
	return method
}

func setQuantity(pdv *domain.PDV, productID string, qty int) int {
	for i := range pdv.Inventory {
		if pdv.Inventory[i].ProductID == productID {
			pdv.Inventory[i].Quantity = qty
			return qty
		}
	}
	pdv.Inventory = append(pdv.Inventory, domain.InventoryLine{ProductID: productID, Quantity: qty})
	return qty
}
