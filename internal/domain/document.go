package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// SchemaVersion is the canonical document layout written by this package.
// Version 0 covers every document saved before versioning existed.
const SchemaVersion = 2

func init() {
	// stored documents carry amounts as plain JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// NewDocument returns the empty initial state.
func NewDocument() *Document {
	doc := &Document{}
	Normalize(doc)
	return doc
}

func EncodeDocument(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("encode document: nil document")
	}
	return json.Marshal(doc)
}

// DecodeDocument parses a stored document of any known version and returns
// it migrated to the canonical schema. Empty input yields the initial state.
func DecodeDocument(raw []byte) (*Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return NewDocument(), nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("decode document: unsupported schema version %d", doc.SchemaVersion)
	}
	if doc.SchemaVersion < SchemaVersion {
		var legacy legacyDocument
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return nil, fmt.Errorf("decode legacy document: %w", err)
		}
		migrateLegacy(&doc, legacy)
	}

	Normalize(&doc)
	return &doc, nil
}

type legacyCustomer struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	WalletBalance decimal.Decimal `json:"walletBalance"`
}

type legacySale struct {
	CustomerID string `json:"customerId"`
}

type legacyDocument struct {
	Customers []legacyCustomer `json:"customers"`
	Sales     []legacySale     `json:"sales"`
}

func migrateLegacy(doc *Document, legacy legacyDocument) {
	walletDebtors := make(map[string]struct{}, len(legacy.Customers))
	for _, customer := range legacy.Customers {
		walletDebtors[customer.ID] = struct{}{}
		if doc.ClientIndex(customer.ID) >= 0 {
			continue
		}
		debt := customer.WalletBalance
		if debt.IsNegative() {
			debt = decimal.Zero
		}
		doc.Clients = append(doc.Clients, Client{
			ID:   customer.ID,
			Name: customer.Name,
			Debt: debt,
		})
	}

	for i := range doc.Sales {
		sale := &doc.Sales[i]
		var old legacySale
		if i < len(legacy.Sales) {
			old = legacy.Sales[i]
		}
		if sale.ClientID == "" {
			sale.ClientID = old.CustomerID
		}
		if sale.PaymentMethod == "" {
			sale.PaymentMethod = PaymentCash
		}
		if sale.PaymentMethod == paymentFiado {
			sale.PaymentMethod = PaymentCredit
		}

		_, walletDebtor := walletDebtors[sale.ClientID]
		switch {
		case sale.PaymentMethod == PaymentWallet && walletDebtor:
			// the wallet model booked profit at sale time and tracked the
			// debt on the customer only
			sale.PaymentMethod = PaymentCredit
			sale.Realized = true
			sale.Deferred = false
			sale.Collected = sale.TotalPrice
		case sale.PaymentMethod == PaymentCredit:
			sale.Deferred = true
			if sale.Realized {
				sale.Collected = sale.TotalPrice
			}
		default:
			sale.Realized = true
			sale.Deferred = false
			sale.Collected = sale.TotalPrice
		}
	}

	reconcileCollected(doc)
}

// reconcileCollected spreads what each client already paid over its open
// credit sales oldest first, so that the open balance of those sales never
// exceeds the client's debt.
func reconcileCollected(doc *Document) {
	for _, client := range doc.Clients {
		open := make([]int, 0)
		outstanding := decimal.Zero
		for i, sale := range doc.Sales {
			if sale.ClientID != client.ID || sale.Outstanding().IsZero() {
				continue
			}
			open = append(open, i)
			outstanding = outstanding.Add(sale.Outstanding())
		}
		paid := outstanding.Sub(client.Debt)
		if !paid.IsPositive() {
			continue
		}
		slices.SortStableFunc(open, func(a, b int) int {
			return doc.Sales[a].Date.Compare(doc.Sales[b].Date)
		})
		for _, idx := range open {
			if !paid.IsPositive() {
				break
			}
			sale := &doc.Sales[idx]
			portion := decimal.Min(paid, sale.Outstanding())
			sale.Collected = sale.Collected.Add(portion)
			paid = paid.Sub(portion)
			if sale.Collected.GreaterThanOrEqual(sale.TotalPrice) {
				sale.Realized = true
			}
		}
	}
}

// Normalize fills every missing collection and merges duplicate inventory
// lines. It is idempotent.
func Normalize(doc *Document) {
	if doc.PDVs == nil {
		doc.PDVs = []PDV{}
	}
	if doc.Products == nil {
		doc.Products = []Product{}
	}
	if doc.Sales == nil {
		doc.Sales = []Sale{}
	}
	if doc.AccountsPayable == nil {
		doc.AccountsPayable = []FinanceEntry{}
	}
	if doc.AccountsReceivable == nil {
		doc.AccountsReceivable = []FinanceEntry{}
	}
	if doc.Clients == nil {
		doc.Clients = []Client{}
	}
	if doc.Goals == nil {
		doc.Goals = map[string]Goal{}
	}
	if doc.CentralCash.Transactions == nil {
		doc.CentralCash.Transactions = []CashTransaction{}
	}
	if doc.ProfitRealizations == nil {
		doc.ProfitRealizations = []ProfitRealization{}
	}

	for i := range doc.PDVs {
		pdv := &doc.PDVs[i]
		if pdv.FixedCosts == nil {
			pdv.FixedCosts = []CostEntry{}
		}
		if pdv.VariableCosts == nil {
			pdv.VariableCosts = []CostEntry{}
		}
		pdv.Inventory = mergeInventory(pdv.Inventory)
	}
	for i := range doc.AccountsPayable {
		if doc.AccountsPayable[i].Payments == nil {
			doc.AccountsPayable[i].Payments = []Payment{}
		}
	}
	for i := range doc.AccountsReceivable {
		if doc.AccountsReceivable[i].Payments == nil {
			doc.AccountsReceivable[i].Payments = []Payment{}
		}
	}

	doc.SchemaVersion = SchemaVersion
}

func mergeInventory(lines []InventoryLine) []InventoryLine {
	merged := make([]InventoryLine, 0, len(lines))
	seen := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.ProductID == "" {
			continue
		}
		qty := max(line.Quantity, 0)
		if idx, ok := seen[line.ProductID]; ok {
			merged[idx].Quantity += qty
			continue
		}
		seen[line.ProductID] = len(merged)
		merged = append(merged, InventoryLine{ProductID: line.ProductID, Quantity: qty})
	}
	return merged
}

func (d *Document) PDVIndex(id string) int {
	return slices.IndexFunc(d.PDVs, func(p PDV) bool { return p.ID == id })
}

func (d *Document) ProductIndex(id string) int {
	return slices.IndexFunc(d.Products, func(p Product) bool { return p.ID == id })
}

func (d *Document) ClientIndex(id string) int {
	return slices.IndexFunc(d.Clients, func(c Client) bool { return c.ID == id })
}

func (d *Document) FindPDV(id string) (PDV, bool) {
	if idx := d.PDVIndex(id); idx >= 0 {
		return d.PDVs[idx], true
	}
	return PDV{}, false
}

func (d *Document) FindProduct(id string) (Product, bool) {
	if idx := d.ProductIndex(id); idx >= 0 {
		return d.Products[idx], true
	}
	return Product{}, false
}

func (d *Document) FindClient(id string) (Client, bool) {
	if idx := d.ClientIndex(id); idx >= 0 {
		return d.Clients[idx], true
	}
	return Client{}, false
}

// FinanceEntries returns the collection for kind, or nil for an unknown kind.
func (d *Document) FinanceEntries(kind string) *[]FinanceEntry {
	switch kind {
	case FinancePayable:
		return &d.AccountsPayable
	case FinanceReceivable:
		return &d.AccountsReceivable
	default:
		return nil
	}
}

// ClientSales returns the client's sales, newest first.
func (d *Document) ClientSales(clientID string) []Sale {
	sales := make([]Sale, 0)
	for _, sale := range d.Sales {
		if sale.ClientID == clientID {
			sales = append(sales, sale)
		}
	}
	slices.SortStableFunc(sales, func(a, b Sale) int {
		return b.Date.Compare(a.Date)
	})
	return sales
}

func (d *Document) ClientRealizations(clientID string) []ProfitRealization {
	out := make([]ProfitRealization, 0)
	for _, r := range d.ProfitRealizations {
		if r.ClientID == clientID {
			out = append(out, r)
		}
	}
	return out
}
