package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEmptyInputYieldsInitialState(t *testing.T) {
	for _, raw := range []string{"", "  ", "null"} {
		doc, err := DecodeDocument([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, SchemaVersion, doc.SchemaVersion)
		assert.NotNil(t, doc.PDVs)
		assert.NotNil(t, doc.Goals)
		assert.NotNil(t, doc.CentralCash.Transactions)
		assert.NotNil(t, doc.ProfitRealizations)
	}
}

func TestDecodeRejectsUnknownVersionAndGarbage(t *testing.T) {
	_, err := DecodeDocument([]byte(`{"schemaVersion": 3}`))
	assert.Error(t, err)

	_, err = DecodeDocument([]byte(`{"pdvs": [`))
	assert.Error(t, err)
}

func TestEncodeWritesAmountsAsNumbers(t *testing.T) {
	doc := NewDocument()
	doc.Products = append(doc.Products, Product{
		ID:          "p1",
		Name:        "Bolo",
		CurrentCost: decimal.RequireFromString("2.5"),
		ResalePrice: decimal.NewFromInt(5),
	})

	raw, err := EncodeDocument(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"currentCost":2.5`)
	assert.Contains(t, string(raw), `"schemaVersion":2`)

	back, err := DecodeDocument(raw)
	require.NoError(t, err)
	assert.True(t, back.Products[0].CurrentCost.Equal(decimal.RequireFromString("2.50")))

	_, err = EncodeDocument(nil)
	assert.Error(t, err)
}

func TestLegacyDocumentMigration(t *testing.T) {
	legacy := `{
		"products": [{"id": "x", "name": "Bolo", "currentCost": 4, "resalePrice": 10}],
		"customers": [
			{"id": "c1", "name": "Ana", "walletBalance": 30},
			{"id": "c2", "name": "Rui", "walletBalance": -5}
		],
		"sales": [
			{"id": "s1", "pdvId": "p", "productId": "x", "quantity": 5, "totalPrice": 50, "costAtTimeOfSale": 4, "date": "2025-01-01T10:00:00Z", "paymentMethod": "wallet", "customerId": "c1"},
			{"id": "s2", "pdvId": "p", "productId": "x", "quantity": 2, "totalPrice": 20, "costAtTimeOfSale": 4, "date": "2025-01-02T10:00:00Z", "paymentMethod": "fiado", "customerId": "c1"},
			{"id": "s3", "pdvId": "p", "productId": "x", "quantity": 4, "totalPrice": 40, "costAtTimeOfSale": 4, "date": "2025-01-03T10:00:00Z", "paymentMethod": "fiado", "customerId": "c1"},
			{"id": "s4", "pdvId": "p", "productId": "x", "quantity": 1, "totalPrice": 10, "costAtTimeOfSale": 4, "date": "2025-01-04T10:00:00Z"}
		]
	}`

	doc, err := DecodeDocument([]byte(legacy))
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, doc.SchemaVersion)

	require.Len(t, doc.Clients, 2)
	ana, ok := doc.FindClient("c1")
	require.True(t, ok)
	assert.True(t, ana.Debt.Equal(decimal.NewFromInt(30)))
	assert.False(t, ana.CreditLimit.Valid)
	rui, _ := doc.FindClient("c2")
	assert.True(t, rui.Debt.IsZero())

	byID := map[string]Sale{}
	for _, sale := range doc.Sales {
		byID[sale.ID] = sale
	}

	// old wallet sales booked profit up front
	assert.Equal(t, PaymentCredit, byID["s1"].PaymentMethod)
	assert.Equal(t, "c1", byID["s1"].ClientID)
	assert.True(t, byID["s1"].Realized)
	assert.False(t, byID["s1"].Deferred)

	// 60 open against a debt of 30: the oldest sale is settled first
	assert.True(t, byID["s2"].Deferred)
	assert.True(t, byID["s2"].Realized)
	assert.True(t, byID["s2"].Collected.Equal(decimal.NewFromInt(20)))
	assert.False(t, byID["s3"].Realized)
	assert.True(t, byID["s3"].Outstanding().Equal(decimal.NewFromInt(30)))

	assert.Equal(t, PaymentCash, byID["s4"].PaymentMethod)
	assert.True(t, byID["s4"].Realized)
	assert.True(t, byID["s4"].Collected.Equal(decimal.NewFromInt(10)))
}

func TestNormalizeMergesInventoryAndIsIdempotent(t *testing.T) {
	doc := &Document{PDVs: []PDV{{
		ID: "p",
		Inventory: []InventoryLine{
			{ProductID: "a", Quantity: 2},
			{ProductID: "b", Quantity: 1},
			{ProductID: "a", Quantity: 3},
			{ProductID: "", Quantity: 9},
			{ProductID: "c", Quantity: -4},
		},
	}}}

	Normalize(doc)
	first, err := json.Marshal(doc)
	require.NoError(t, err)

	assert.Equal(t, []InventoryLine{
		{ProductID: "a", Quantity: 5},
		{ProductID: "b", Quantity: 1},
		{ProductID: "c", Quantity: 0},
	}, doc.PDVs[0].Inventory)
	assert.NotNil(t, doc.PDVs[0].FixedCosts)
	assert.NotNil(t, doc.AccountsPayable)

	Normalize(doc)
	second, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestClientSalesNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	doc := NewDocument()
	doc.Sales = []Sale{
		{ID: "old", ClientID: "c", Date: base},
		{ID: "other", ClientID: "d", Date: base.Add(time.Hour)},
		{ID: "new", ClientID: "c", Date: base.Add(48 * time.Hour)},
	}

	sales := doc.ClientSales("c")
	require.Len(t, sales, 2)
	assert.Equal(t, "new", sales[0].ID)
	assert.Equal(t, "old", sales[1].ID)
}

func TestFinanceEntriesByKind(t *testing.T) {
	doc := NewDocument()
	assert.Same(t, &doc.AccountsPayable, doc.FinanceEntries(FinancePayable))
	assert.Same(t, &doc.AccountsReceivable, doc.FinanceEntries(FinanceReceivable))
	assert.Nil(t, doc.FinanceEntries("loan"))
}

func TestErrorClassification(t *testing.T) {
	stock := &StockError{PDVID: "p", ProductID: "x", Available: 1, Requested: 2}
	assert.True(t, errors.Is(stock, ErrInsufficientStock))
	assert.True(t, IsValidation(stock))
	assert.True(t, IsConflict(stock))

	wallet := &BalanceError{ClientID: "c", Wallet: true}
	assert.ErrorIs(t, wallet, ErrInsufficientWallet)
	assert.NotErrorIs(t, wallet, ErrInsufficientCredit)

	missing := NotFound("pdv", "p9")
	assert.True(t, IsNotFound(missing))
	assert.False(t, IsValidation(missing))
	assert.Equal(t, `pdv "p9" not found`, missing.Error())

	invalid := Invalid("name is required")
	assert.True(t, IsValidation(invalid))
	assert.False(t, IsConflict(invalid))
}

func TestSaleAndClientFigures(t *testing.T) {
	sale := Sale{
		Quantity:         3,
		TotalPrice:       decimal.NewFromInt(30),
		CostAtTimeOfSale: decimal.NewFromInt(6),
		Deferred:         true,
		Collected:        decimal.NewFromInt(12),
	}
	assert.True(t, sale.Cost().Equal(decimal.NewFromInt(18)))
	assert.True(t, sale.Profit().Equal(decimal.NewFromInt(12)))
	assert.True(t, sale.Outstanding().Equal(decimal.NewFromInt(18)))

	sale.Realized = true
	assert.True(t, sale.Outstanding().IsZero())

	client := Client{Debt: decimal.NewFromInt(70)}
	_, limited := client.AvailableCredit()
	assert.False(t, limited)

	client.CreditLimit = decimal.NewNullDecimal(decimal.NewFromInt(100))
	room, limited := client.AvailableCredit()
	assert.True(t, limited)
	assert.True(t, room.Equal(decimal.NewFromInt(30)))
}

func TestCashSign(t *testing.T) {
	for _, credit := range []string{CashSale, CashReceivable, CashCreditPayment, CashWalletDeposit, CashWalletPayment} {
		assert.Equal(t, 1, CashSign(credit), credit)
	}
	for _, debit := range []string{CashWithdrawal, CashPayable, CashStockPurchase} {
		assert.Equal(t, -1, CashSign(debit), debit)
	}
	assert.Equal(t, 0, CashSign("refund"))
}
