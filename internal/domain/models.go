package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentCash   = "cash"
	PaymentPix    = "pix"
	PaymentWallet = "wallet"
	PaymentCredit = "credit"

	// legacy alias for credit sales
	paymentFiado = "fiado"
)

const (
	CashSale          = "sale"
	CashReceivable    = "receivable"
	CashCreditPayment = "credit_payment"
	CashWalletDeposit = "wallet_deposit"
	CashWalletPayment = "wallet_payment"
	CashWithdrawal    = "withdrawal"
	CashPayable       = "payable"
	CashStockPurchase = "stock_purchase"
)

const (
	FinancePayable    = "payable"
	FinanceReceivable = "receivable"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CurrentCost decimal.Decimal `json:"currentCost"`
	ResalePrice decimal.Decimal `json:"resalePrice"`
}

type CostEntry struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
	Date  *time.Time      `json:"date,omitempty"`
}

type InventoryLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type PDV struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	InitialInvestment decimal.Decimal `json:"initialInvestment"`
	FixedCosts        []CostEntry     `json:"fixedCosts"`
	VariableCosts     []CostEntry     `json:"variableCosts"`
	Inventory         []InventoryLine `json:"inventory"`
}

// Quantity returns the stock held for productID, zero when the line is absent.
func (p PDV) Quantity(productID string) int {
	for _, line := range p.Inventory {
		if line.ProductID == productID {
			return line.Quantity
		}
	}
	return 0
}

type Sale struct {
	ID               string          `json:"id"`
	PDVID            string          `json:"pdvId"`
	ProductID        string          `json:"productId"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	TotalPrice       decimal.Decimal `json:"totalPrice"`
	CostAtTimeOfSale decimal.Decimal `json:"costAtTimeOfSale"`
	Date             time.Time       `json:"date"`
	PaymentMethod    string          `json:"paymentMethod"`
	ClientID         string          `json:"clientId,omitempty"`
	Realized         bool            `json:"realized"`
	Deferred         bool            `json:"deferred"`
	Collected        decimal.Decimal `json:"collected"`
}

// Cost is the frozen cost of goods for the sale.
func (s Sale) Cost() decimal.Decimal {
	return s.CostAtTimeOfSale.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

func (s Sale) Profit() decimal.Decimal {
	return s.TotalPrice.Sub(s.Cost())
}

// Outstanding is the part of a credit sale not collected yet.
func (s Sale) Outstanding() decimal.Decimal {
	if !s.Deferred || s.Realized {
		return decimal.Zero
	}
	rest := s.TotalPrice.Sub(s.Collected)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

type Client struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	PDVID         string              `json:"pdvId,omitempty"`
	CreditLimit   decimal.NullDecimal `json:"creditLimit"`
	Debt          decimal.Decimal     `json:"debt"`
	WalletBalance decimal.Decimal     `json:"walletBalance"`
}

// AvailableCredit returns creditLimit - debt. limited is false when the
// client has no limit configured.
func (c Client) AvailableCredit() (available decimal.Decimal, limited bool) {
	if !c.CreditLimit.Valid {
		return decimal.Zero, false
	}
	return c.CreditLimit.Decimal.Sub(c.Debt), true
}

type Payment struct {
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

type FinanceEntry struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     Date            `json:"dueDate"`
	PDVID       string          `json:"pdvId,omitempty"`
	Paid        bool            `json:"paid"`
	Payments    []Payment       `json:"payments"`
	IsRecurring bool            `json:"isRecurring"`
}

func (f FinanceEntry) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range f.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// FullyPaid reports whether the entry is flagged paid or its payments cover the amount.
func (f FinanceEntry) FullyPaid() bool {
	return f.Paid || f.TotalPaid().GreaterThanOrEqual(f.Amount)
}

func (f FinanceEntry) Remaining() decimal.Decimal {
	if f.FullyPaid() {
		return decimal.Zero
	}
	return f.Amount.Sub(f.TotalPaid())
}

type CashTransaction struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
	Date   time.Time       `json:"date"`
}

type CentralCash struct {
	Transactions []CashTransaction `json:"transactions"`
}

type DigitalWallet struct {
	Balance decimal.Decimal `json:"balance"`
}

type SmartCredit struct {
	Receivable decimal.Decimal `json:"receivable"`
}

type Goal struct {
	Target    decimal.Decimal `json:"target"`
	StartDate Date            `json:"startDate"`
	EndDate   Date            `json:"endDate"`
	DueDate   Date            `json:"dueDate"`
}

type ProfitRealization struct {
	ID       string          `json:"id"`
	Date     time.Time       `json:"date"`
	PDVID    string          `json:"pdvId"`
	SaleID   string          `json:"saleId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
}

// Document is the whole business state, loaded and saved as one unit.
type Document struct {
	SchemaVersion      int                 `json:"schemaVersion"`
	Revision           int64               `json:"revision"`
	PDVs               []PDV               `json:"pdvs"`
	Products           []Product           `json:"products"`
	Sales              []Sale              `json:"sales"`
	AccountsPayable    []FinanceEntry      `json:"accountsPayable"`
	AccountsReceivable []FinanceEntry      `json:"accountsReceivable"`
	Clients            []Client            `json:"clients"`
	Goals              map[string]Goal     `json:"goals"`
	CentralCash        CentralCash         `json:"centralCash"`
	DigitalWallet      DigitalWallet       `json:"digitalWallet"`
	SmartCredit        SmartCredit         `json:"smartCredit"`
	ProfitRealizations []ProfitRealization `json:"profitRealizations"`
}

// IsCashEquivalent reports whether a payment method counts as real inflow.
func IsCashEquivalent(method string) bool {
	return method == PaymentCash || method == PaymentPix
}

func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentPix, PaymentWallet, PaymentCredit:
		return true
	default:
		return false
	}
}

// CashSign returns +1 for credit transaction types, -1 for debits and 0 for
// types the ledger does not know.
func CashSign(txType string) int {
	switch txType {
	case CashSale, CashReceivable, CashCreditPayment, CashWalletDeposit, CashWalletPayment:
		return 1
	case CashWithdrawal, CashPayable, CashStockPurchase:
		return -1
	default:
		return 0
	}
}
