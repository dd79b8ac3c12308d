package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/metrics"
	"smartpdv/backend/internal/period"
)

var testNow = time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestLedger() *Ledger {
	seq := 0
	return New(
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func(prefix string) string {
			seq++
			return fmt.Sprintf("%s-%d", prefix, seq)
		}),
	)
}

type shop struct {
	doc     *domain.Document
	pdv     domain.PDV
	product domain.Product
	client  domain.Client
}

func newShop(t *testing.T, l *Ledger) shop {
	t.Helper()
	doc := domain.NewDocument()

	pdv, err := l.CreatePDV(doc, domain.PDVCreateRequest{Name: "Centro"})
	require.NoError(t, err)
	product, err := l.CreateProduct(doc, domain.ProductCreateRequest{Name: "Bolo", CurrentCost: dec("10"), ResalePrice: dec("20")})
	require.NoError(t, err)
	_, err = l.Restock(doc, domain.RestockRequest{PDVID: pdv.ID, ProductID: product.ID, Quantity: 10})
	require.NoError(t, err)
	client, err := l.CreateClient(doc, domain.ClientCreateRequest{
		Name:        "Maria",
		CreditLimit: decimal.NewNullDecimal(dec("100")),
	})
	require.NoError(t, err)

	return shop{doc: doc, pdv: pdv, product: product, client: client}
}

func encoded(t *testing.T, doc *domain.Document) string {
	t.Helper()
	raw, err := domain.EncodeDocument(doc)
	require.NoError(t, err)
	return string(raw)
}

func TestRestockWithNewUnitCost(t *testing.T) {
	l := newTestLedger()
	doc := domain.NewDocument()
	pdv, err := l.CreatePDV(doc, domain.PDVCreateRequest{Name: "Praia"})
	require.NoError(t, err)
	product, err := l.CreateProduct(doc, domain.ProductCreateRequest{Name: "Água", CurrentCost: dec("2"), ResalePrice: dec("4")})
	require.NoError(t, err)

	result, err := l.Restock(doc, domain.RestockRequest{
		PDVID:     pdv.ID,
		ProductID: product.ID,
		Quantity:  10,
		UnitCost:  decimal.NewNullDecimal(dec("3")),
	})
	require.NoError(t, err)

	assert.Equal(t, 10, result.Quantity)
	assert.True(t, result.Product.CurrentCost.Equal(dec("3")))
	assert.True(t, doc.Products[0].CurrentCost.Equal(dec("3")))

	require.Len(t, doc.PDVs[0].VariableCosts, 1)
	cost := doc.PDVs[0].VariableCosts[0]
	assert.True(t, cost.Value.Equal(dec("30")))
	require.NotNil(t, cost.Date)
	assert.Equal(t, testNow, *cost.Date)

	require.Len(t, doc.CentralCash.Transactions, 1)
	tx := doc.CentralCash.Transactions[0]
	assert.Equal(t, domain.CashStockPurchase, tx.Type)
	assert.True(t, tx.Amount.Equal(dec("30")))

	balance, _, _ := metrics.CashBalance(doc.CentralCash.Transactions)
	assert.True(t, balance.Equal(dec("-30")))
}

func TestRestockTwiceAtDifferentCosts(t *testing.T) {
	l := newTestLedger()
	doc := domain.NewDocument()
	pdv, err := l.CreatePDV(doc, domain.PDVCreateRequest{Name: "Praia"})
	require.NoError(t, err)
	product, err := l.CreateProduct(doc, domain.ProductCreateRequest{Name: "Água", CurrentCost: dec("2"), ResalePrice: dec("4")})
	require.NoError(t, err)

	_, err = l.Restock(doc, domain.RestockRequest{PDVID: pdv.ID, ProductID: product.ID, Quantity: 5, UnitCost: decimal.NewNullDecimal(dec("2"))})
	require.NoError(t, err)
	second, err := l.Restock(doc, domain.RestockRequest{PDVID: pdv.ID, ProductID: product.ID, Quantity: 10, UnitCost: decimal.NewNullDecimal(dec("3"))})
	require.NoError(t, err)

	assert.Equal(t, 15, second.Quantity)
	assert.Equal(t, 15, doc.PDVs[0].Quantity(product.ID))
	assert.True(t, doc.Products[0].CurrentCost.Equal(dec("3")))

	costs := doc.PDVs[0].VariableCosts
	require.Len(t, costs, 2)
	assert.True(t, costs[0].Value.Equal(dec("10")))
	assert.True(t, costs[1].Value.Equal(dec("30")))
	assert.NotEqual(t, costs[0].ID, costs[1].ID)

	txs := doc.CentralCash.Transactions
	require.Len(t, txs, 2)
	for i, want := range []string{"10", "30"} {
		assert.Equal(t, domain.CashStockPurchase, txs[i].Type)
		assert.True(t, txs[i].Amount.Equal(dec(want)), txs[i].Amount.String())
	}
	balance, _, _ := metrics.CashBalance(txs)
	assert.True(t, balance.Equal(dec("-40")))
}

func TestRestockThenCashSaleMetrics(t *testing.T) {
	l := newTestLedger()
	doc := domain.NewDocument()
	pdv, err := l.CreatePDV(doc, domain.PDVCreateRequest{Name: "Centro"})
	require.NoError(t, err)
	product, err := l.CreateProduct(doc, domain.ProductCreateRequest{Name: "Bolo", CurrentCost: dec("10"), ResalePrice: dec("15")})
	require.NoError(t, err)

	_, err = l.Restock(doc, domain.RestockRequest{PDVID: pdv.ID, ProductID: product.ID, Quantity: 10, UnitCost: decimal.NewNullDecimal(dec("10"))})
	require.NoError(t, err)
	result, err := l.RecordSale(doc, domain.SaleRequest{PDVID: pdv.ID, ProductID: product.ID, Quantity: 4, PaymentMethod: "cash"})
	require.NoError(t, err)

	assert.Equal(t, 6, doc.PDVs[0].Quantity(product.ID))
	assert.True(t, result.Sale.TotalPrice.Equal(dec("60")))
	assert.True(t, result.Sale.Realized)

	txs := doc.CentralCash.Transactions
	require.Len(t, txs, 2)
	assert.Equal(t, domain.CashStockPurchase, txs[0].Type)
	assert.True(t, txs[0].Amount.Equal(dec("100")))
	assert.Equal(t, domain.CashSale, txs[1].Type)
	assert.True(t, txs[1].Amount.Equal(dec("60")))
	balance, _, _ := metrics.CashBalance(txs)
	assert.True(t, balance.Equal(dec("-40")))

	m := metrics.ComputePDV(doc, pdv.ID, period.All)
	assert.True(t, m.Revenue.Equal(dec("60")), m.Revenue.String())
	assert.True(t, m.CostOfGoodsSold.Equal(dec("40")), m.CostOfGoodsSold.String())
	assert.True(t, m.GrossProfit.Equal(dec("20")), m.GrossProfit.String())
	assert.True(t, m.StockValueCost.Equal(dec("60")), m.StockValueCost.String())
	assert.True(t, m.StockValueResale.Equal(dec("90")), m.StockValueResale.String())
}

func TestFreeCreditSaleIsRealizedAtOnce(t *testing.T) {
	l := newTestLedger()
	doc := domain.NewDocument()
	pdv, err := l.CreatePDV(doc, domain.PDVCreateRequest{Name: "Feira"})
	require.NoError(t, err)
	product, err := l.CreateProduct(doc, domain.ProductCreateRequest{Name: "Brinde", CurrentCost: dec("5"), ResalePrice: dec("0")})
	require.NoError(t, err)
	client, err := l.CreateClient(doc, domain.ClientCreateRequest{Name: "Rui"})
	require.NoError(t, err)
	_, err = l.Restock(doc, domain.RestockRequest{PDVID: pdv.ID, ProductID: product.ID, Quantity: 4})
	require.NoError(t, err)

	credit, err := l.RecordSale(doc, domain.SaleRequest{PDVID: pdv.ID, ProductID: product.ID, Quantity: 2, PaymentMethod: "credit", ClientID: client.ID})
	require.NoError(t, err)
	_, err = l.RecordSale(doc, domain.SaleRequest{PDVID: pdv.ID, ProductID: product.ID, Quantity: 2, PaymentMethod: "cash"})
	require.NoError(t, err)

	assert.True(t, credit.Sale.Realized)
	assert.False(t, credit.Sale.Deferred)
	assert.True(t, credit.Sale.Outstanding().IsZero())
	assert.True(t, doc.Clients[0].Debt.IsZero())

	m := metrics.ComputePDV(doc, pdv.ID, period.All)
	assert.True(t, m.GrossProfit.Equal(dec("-20")), m.GrossProfit.String())
	assert.True(t, m.OutstandingCredit.IsZero())
}

func TestRestockValidation(t *testing.T) {
	l := newTestLedger()
	s := newShop(t, l)

	_, err := l.Restock(s.doc, domain.RestockRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 0})
	assert.True(t, domain.IsValidation(err))

	_, err = l.Restock(s.doc, domain.RestockRequest{PDVID: "nope", ProductID: s.product.ID, Quantity: 1})
	assert.True(t, domain.IsNotFound(err))

	_, err = l.Restock(s.doc, domain.RestockRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 1, UnitCost: decimal.NewNullDecimal(dec("-1"))})
	assert.True(t, domain.IsValidation(err))
}

func TestSaleFreezesCost(t *testing.T) {
	l := newTestLedger()
	s := newShop(t, l)

	first, err := l.RecordSale(s.doc, domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 2, PaymentMethod: "cash"})
	require.NoError(t, err)
	require.NotNil(t, first.Transaction)
	assert.True(t, first.Sale.TotalPrice.Equal(dec("40")))
	assert.True(t, first.Sale.Realized)
	assert.False(t, first.Sale.Deferred)

	_, err = l.UpdateProduct(s.doc, s.product.ID, domain.ProductUpdateRequest{CurrentCost: decimal.NewNullDecimal(dec("15"))})
	require.NoError(t, err)

	second, err := l.RecordSale(s.doc, domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 1, PaymentMethod: "PIX"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPix, second.Sale.PaymentMethod)

	assert.True(t, s.doc.Sales[0].CostAtTimeOfSale.Equal(dec("10")))
	assert.True(t, s.doc.Sales[1].CostAtTimeOfSale.Equal(dec("15")))
	assert.Equal(t, 7, s.doc.PDVs[0].Quantity(s.product.ID))
}

func TestRejectedSaleLeavesDocumentUntouched(t *testing.T) {
	l := newTestLedger()
	s := newShop(t, l)
	before := encoded(t, s.doc)

	cases := []struct {
		name string
		req  domain.SaleRequest
		want error
	}{
		{"insufficient stock", domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 11, PaymentMethod: "cash"}, domain.ErrInsufficientStock},
		{"over credit limit", domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 6, PaymentMethod: "credit", ClientID: s.client.ID}, domain.ErrInsufficientCredit},
		{"empty wallet", domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 1, PaymentMethod: "wallet", ClientID: s.client.ID}, domain.ErrInsufficientWallet},
		{"credit without client", domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 1, PaymentMethod: "fiado"}, domain.ErrValidation},
		{"unknown method", domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 1, PaymentMethod: "barter"}, domain.ErrValidation},
		{"unknown client", domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 1, PaymentMethod: "cash", ClientID: "ghost"}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.RecordSale(s.doc, tc.req)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, encoded(t, s.doc))
		})
	}
}

func TestWalletSale(t *testing.T) {
	l := newTestLedger()
	s := newShop(t, l)

	_, err := l.WalletDeposit(s.doc, domain.CashMovementRequest{Amount: dec("50"), ClientID: s.client.ID})
	require.NoError(t, err)

	result, err := l.RecordSale(s.doc, domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 2, PaymentMethod: "wallet", ClientID: s.client.ID})
	require.NoError(t, err)
	assert.Nil(t, result.Transaction)
	require.NotNil(t, result.Client)
	assert.True(t, result.Client.WalletBalance.Equal(dec("10")))
	assert.True(t, s.doc.DigitalWallet.Balance.Equal(dec("10")))
	assert.True(t, result.Sale.Realized)
}

func TestDeleteProductRequiresEmptyStock(t *testing.T) {
	l := newTestLedger()
	s := newShop(t, l)

	err := l.DeleteProduct(s.doc, s.product.ID)
	require.ErrorIs(t, err, domain.ErrOutstandingBalance)
	assert.Len(t, s.doc.Products, 1)

	adjusted, err := l.AdjustInventory(s.doc, domain.InventoryAdjustRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 0})
	require.NoError(t, err)
	assert.Equal(t, 10, adjusted.Previous)

	require.NoError(t, l.DeleteProduct(s.doc, s.product.ID))
	assert.Empty(t, s.doc.Products)
	assert.Empty(t, s.doc.PDVs[0].Inventory)

	assert.True(t, domain.IsNotFound(l.DeleteProduct(s.doc, s.product.ID)))
}

func TestDeleteClientGuards(t *testing.T) {
	l := newTestLedger()
	s := newShop(t, l)

	_, err := l.RecordSale(s.doc, domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 1, PaymentMethod: "credit", ClientID: s.client.ID})
	require.NoError(t, err)
	require.ErrorIs(t, l.DeleteClient(s.doc, s.client.ID), domain.ErrOutstandingBalance)

	_, err = l.SettleClientDebt(s.doc, domain.ClientPaymentRequest{ClientID: s.client.ID, Amount: dec("20")})
	require.NoError(t, err)
	require.NoError(t, l.DeleteClient(s.doc, s.client.ID))
	assert.Empty(t, s.doc.Clients)
}

func TestSetGoalValidation(t *testing.T) {
	l := newTestLedger()
	s := newShop(t, l)

	_, err := l.SetGoal(s.doc, s.pdv.ID, domain.GoalRequest{Target: dec("0")})
	assert.True(t, domain.IsValidation(err))

	_, err = l.SetGoal(s.doc, s.pdv.ID, domain.GoalRequest{
		Target:    dec("500"),
		StartDate: domain.NewDate(2026, time.March, 10),
		EndDate:   domain.NewDate(2026, time.March, 1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)

	_, err = l.SetGoal(s.doc, "ghost", domain.GoalRequest{Target: dec("500")})
	assert.True(t, domain.IsNotFound(err))

	goal, err := l.SetGoal(s.doc, s.pdv.ID, domain.GoalRequest{Target: dec("500")})
	require.NoError(t, err)
	assert.True(t, s.doc.Goals[s.pdv.ID].Target.Equal(goal.Target))

	require.NoError(t, l.DeleteGoal(s.doc, s.pdv.ID))
	assert.True(t, domain.IsNotFound(l.DeleteGoal(s.doc, s.pdv.ID)))
}

func TestUpdateClientClearsCreditLimit(t *testing.T) {
	l := newTestLedger()
	s := newShop(t, l)

	updated, err := l.UpdateClient(s.doc, s.client.ID, domain.ClientUpdateRequest{ClearCreditLimit: true})
	require.NoError(t, err)
	assert.False(t, updated.CreditLimit.Valid)

	// without a limit any amount of credit is accepted
	_, err = l.RecordSale(s.doc, domain.SaleRequest{PDVID: s.pdv.ID, ProductID: s.product.ID, Quantity: 10, PaymentMethod: "credit", ClientID: s.client.ID})
	require.NoError(t, err)
	assert.True(t, s.doc.Clients[0].Debt.Equal(dec("200")))

	_, err = l.UpdateClient(s.doc, s.client.ID, domain.ClientUpdateRequest{CreditLimit: decimal.NewNullDecimal(dec("-5"))})
	assert.True(t, domain.IsValidation(err))

	_, err = l.UpdateClient(s.doc, s.client.ID, domain.ClientUpdateRequest{PDVID: ptr("ghost")})
	assert.True(t, domain.IsNotFound(err))
}

func TestCreateValidation(t *testing.T) {
	l := newTestLedger()
	doc := domain.NewDocument()

	_, err := l.CreatePDV(doc, domain.PDVCreateRequest{Name: "  "})
	assert.True(t, domain.IsValidation(err))

	pdv, err := l.CreatePDV(doc, domain.PDVCreateRequest{
		Name:             "Feira",
		InitialFixedCost: &domain.CostEntryRequest{Name: "Licença", Value: dec("80")},
	})
	require.NoError(t, err)
	require.Len(t, pdv.FixedCosts, 1)
	assert.Nil(t, pdv.FixedCosts[0].Date)

	variable, err := l.AddVariableCost(doc, pdv.ID, domain.CostEntryRequest{Name: "Gelo", Value: dec("12")})
	require.NoError(t, err)
	require.NotNil(t, variable.Date)

	_, err = l.AddFixedCost(doc, pdv.ID, domain.CostEntryRequest{Name: "Luz", Value: dec("-1")})
	assert.True(t, domain.IsValidation(err))

	_, err = l.CreateProduct(doc, domain.ProductCreateRequest{Name: "Pão", CurrentCost: dec("-1")})
	assert.True(t, domain.IsValidation(err))
}

func ptr[T any](v T) *T {
	return &v
}
