package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expiresAt"`
}

type CostEntryRequest struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
	Date  *time.Time      `json:"date,omitempty"`
}

type PDVCreateRequest struct {
	Name              string            `json:"name"`
	InitialInvestment decimal.Decimal   `json:"initialInvestment"`
	InitialFixedCost  *CostEntryRequest `json:"initialFixedCost,omitempty"`
}

type ProductCreateRequest struct {
	Name        string          `json:"name"`
	CurrentCost decimal.Decimal `json:"currentCost"`
	ResalePrice decimal.Decimal `json:"resalePrice"`
}

type ProductUpdateRequest struct {
	Name        *string             `json:"name,omitempty"`
	CurrentCost decimal.NullDecimal `json:"currentCost"`
	ResalePrice decimal.NullDecimal `json:"resalePrice"`
}

type ClientCreateRequest struct {
	Name        string              `json:"name"`
	PDVID       string              `json:"pdvId,omitempty"`
	CreditLimit decimal.NullDecimal `json:"creditLimit"`
}

type ClientUpdateRequest struct {
	Name             *string             `json:"name,omitempty"`
	PDVID            *string             `json:"pdvId,omitempty"`
	CreditLimit      decimal.NullDecimal `json:"creditLimit"`
	ClearCreditLimit bool                `json:"clearCreditLimit,omitempty"`
}

type RestockRequest struct {
	PDVID     string              `json:"pdvId"`
	ProductID string              `json:"productId"`
	Quantity  int                 `json:"quantity"`
	UnitCost  decimal.NullDecimal `json:"unitCost"`
}

type RestockResult struct {
	Product     Product         `json:"product"`
	Quantity    int             `json:"quantity"`
	CostEntry   CostEntry       `json:"costEntry"`
	Transaction CashTransaction `json:"transaction"`
}

type SaleRequest struct {
	PDVID         string `json:"pdvId"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	PaymentMethod string `json:"paymentMethod"`
	ClientID      string `json:"clientId,omitempty"`
}

type SaleResult struct {
	Sale        Sale             `json:"sale"`
	Transaction *CashTransaction `json:"transaction,omitempty"`
	Client      *Client          `json:"client,omitempty"`
}

type InventoryAdjustRequest struct {
	PDVID     string `json:"pdvId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type InventoryAdjustResult struct {
	PDVID     string `json:"pdvId"`
	ProductID string `json:"productId"`
	Previous  int    `json:"previous"`
	Quantity  int    `json:"quantity"`
}

type ClientPaymentRequest struct {
	ClientID string          `json:"clientId"`
	Amount   decimal.Decimal `json:"amount"`
}

type ClientPaymentResult struct {
	Client       Client              `json:"client"`
	Applied      decimal.Decimal     `json:"applied"`
	Realizations []ProfitRealization `json:"realizations"`
	Transaction  CashTransaction     `json:"transaction"`
}

type FinanceEntryRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     Date            `json:"dueDate"`
	PDVID       string          `json:"pdvId,omitempty"`
	IsRecurring bool            `json:"isRecurring"`
}

type FinanceEntryUpdateRequest struct {
	Description *string             `json:"description,omitempty"`
	Amount      decimal.NullDecimal `json:"amount"`
	DueDate     *Date               `json:"dueDate,omitempty"`
	PDVID       *string             `json:"pdvId,omitempty"`
	IsRecurring *bool               `json:"isRecurring,omitempty"`
}

// FinancePaymentRequest settles a payable or receivable entry. A zero
// amount pays whatever is still open.
type FinancePaymentRequest struct {
	Kind    string          `json:"kind"`
	EntryID string          `json:"entryId"`
	Amount  decimal.Decimal `json:"amount"`
}

type FinancePaymentResult struct {
	Entry       FinanceEntry    `json:"entry"`
	Applied     decimal.Decimal `json:"applied"`
	Renewal     *FinanceEntry   `json:"renewal,omitempty"`
	Transaction CashTransaction `json:"transaction"`
}

type CashMovementRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Reason   string          `json:"reason"`
	ClientID string          `json:"clientId,omitempty"`
}

type CashMovementResult struct {
	Transaction CashTransaction `json:"transaction"`
	Client      *Client         `json:"client,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
}

type GoalRequest struct {
	Target    decimal.Decimal `json:"target"`
	StartDate Date            `json:"startDate"`
	EndDate   Date            `json:"endDate"`
	DueDate   Date            `json:"dueDate"`
}

type PDVMetrics struct {
	PDVID              string          `json:"pdvId"`
	PDVName            string          `json:"pdvName,omitempty"`
	SalesCount         int             `json:"salesCount"`
	CashSalesCount     int             `json:"cashSalesCount"`
	Revenue            decimal.Decimal `json:"revenue"`
	CostOfGoodsSold    decimal.Decimal `json:"costOfGoodsSold"`
	GrossProfit        decimal.Decimal `json:"grossProfit"`
	RealizedFromCredit decimal.Decimal `json:"realizedFromCredit"`
	FixedCosts         decimal.Decimal `json:"fixedCosts"`
	VariableCosts      decimal.Decimal `json:"variableCosts"`
	TotalCosts         decimal.Decimal `json:"totalCosts"`
	FinalProfit        decimal.Decimal `json:"finalProfit"`
	StockValueCost     decimal.Decimal `json:"stockValueCost"`
	StockValueResale   decimal.Decimal `json:"stockValueResale"`
	Ticket             decimal.Decimal `json:"ticket"`
	OutstandingCredit  decimal.Decimal `json:"outstandingCredit"`
	InitialInvestment  decimal.Decimal `json:"initialInvestment"`
}

type ProductMetrics struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	TotalSold    int             `json:"totalSold"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	TotalProfit  decimal.Decimal `json:"totalProfit"`
}

type ProductView struct {
	Product
	Metrics ProductMetrics `json:"metrics"`
	Stock   int            `json:"stock"`
}

type CashSummary struct {
	Balance            decimal.Decimal `json:"balance"`
	Credits            decimal.Decimal `json:"credits"`
	Debits             decimal.Decimal `json:"debits"`
	StockValueCost     decimal.Decimal `json:"stockValueCost"`
	PendingFromClients decimal.Decimal `json:"pendingFromClients"`
	PendingReceivables decimal.Decimal `json:"pendingReceivables"`
	PendingPayables    decimal.Decimal `json:"pendingPayables"`
	WalletBalance      decimal.Decimal `json:"walletBalance"`
	Equity             decimal.Decimal `json:"equity"`
	Transactions       int             `json:"transactions"`
}

type CashView struct {
	Summary      CashSummary       `json:"summary"`
	Transactions []CashTransaction `json:"transactions"`
}

type GoalProgress struct {
	PDVID           string          `json:"pdvId"`
	Target          decimal.Decimal `json:"target"`
	Revenue         decimal.Decimal `json:"revenue"`
	Remaining       decimal.Decimal `json:"remaining"`
	ProgressPercent decimal.Decimal `json:"progressPercent"`
	DailyTarget     decimal.Decimal `json:"dailyTarget"`
	DailyNeeded     decimal.Decimal `json:"dailyNeeded"`
	DaysLeft        int             `json:"daysLeft"`
	Achieved        bool            `json:"achieved"`
	Goal            Goal            `json:"goal"`
}

type ClientStatement struct {
	Client       Client              `json:"client"`
	Sales        []Sale              `json:"sales"`
	Realizations []ProfitRealization `json:"realizations"`
	OpenCredit   decimal.Decimal     `json:"openCredit"`
}

type MetricsReport struct {
	Scope   string       `json:"scope"`
	Start   string       `json:"start,omitempty"`
	End     string       `json:"end,omitempty"`
	Metrics PDVMetrics   `json:"metrics"`
	PDVs    []PDVMetrics `json:"pdvs,omitempty"`
}

type Dashboard struct {
	Revision    int64          `json:"revision"`
	Start       string         `json:"start,omitempty"`
	End         string         `json:"end,omitempty"`
	Totals      PDVMetrics     `json:"totals"`
	PDVs        []PDVMetrics   `json:"pdvs"`
	Goals       []GoalProgress `json:"goals"`
	Cash        CashSummary    `json:"cash"`
	GeneratedAt time.Time      `json:"generatedAt"`
}
