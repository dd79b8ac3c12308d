package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/period"
)

type countingCache struct {
	items  map[string]domain.Dashboard
	gets   int
	sets   int
	getErr error
}

func newCountingCache() *countingCache {
	return &countingCache{items: map[string]domain.Dashboard{}}
}

func (c *countingCache) Get(_ context.Context, key string) (*domain.Dashboard, bool, error) {
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	item, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	return &item, true, nil
}

func (c *countingCache) Set(_ context.Context, key string, value *domain.Dashboard, _ time.Duration) error {
	c.sets++
	c.items[key] = *value
	return nil
}

func testDocument() *domain.Document {
	doc := domain.NewDocument()
	doc.Revision = 4
	doc.Products = []domain.Product{{ID: "x", Name: "Bolo", CurrentCost: decimal.NewFromInt(5), ResalePrice: decimal.NewFromInt(10)}}
	doc.PDVs = []domain.PDV{
		{ID: "b", Name: "Praia", Inventory: []domain.InventoryLine{{ProductID: "x", Quantity: 2}}},
		{ID: "a", Name: "Centro"},
	}
	doc.Sales = []domain.Sale{{
		ID: "s1", PDVID: "b", ProductID: "x", Quantity: 1,
		TotalPrice: decimal.NewFromInt(10), CostAtTimeOfSale: decimal.NewFromInt(5),
		Date: time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC), PaymentMethod: domain.PaymentCash,
		Realized: true, Collected: decimal.NewFromInt(10),
	}}
	doc.Goals["b"] = domain.Goal{Target: decimal.NewFromInt(100)}
	doc.Goals["a"] = domain.Goal{Target: decimal.NewFromInt(50)}
	return doc
}

func newTestEngine(c *countingCache) *Engine {
	e := NewEngine(c, time.Minute, time.UTC)
	e.now = func() time.Time { return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestDashboardIsCachedPerRevision(t *testing.T) {
	c := newCountingCache()
	e := newTestEngine(c)
	doc := testDocument()
	ctx := context.Background()

	first, cached, warn := e.Dashboard(ctx, doc, period.All)
	require.NoError(t, warn)
	assert.False(t, cached)
	assert.Equal(t, int64(4), first.Revision)
	assert.True(t, first.Totals.Revenue.Equal(decimal.NewFromInt(10)))
	require.Len(t, first.Goals, 2)
	assert.Equal(t, "a", first.Goals[0].PDVID)

	_, cached, warn = e.Dashboard(ctx, doc, period.All)
	require.NoError(t, warn)
	assert.True(t, cached)
	assert.Equal(t, 1, c.sets)

	doc.Revision++
	next, cached, _ := e.Dashboard(ctx, doc, period.All)
	assert.False(t, cached)
	assert.Equal(t, int64(5), next.Revision)
	assert.Equal(t, 2, c.sets)
}

func TestDashboardSurvivesCacheFailure(t *testing.T) {
	c := newCountingCache()
	c.getErr = errors.New("connection refused")
	e := newTestEngine(c)

	dashboard, cached, warn := e.Dashboard(context.Background(), testDocument(), period.All)
	require.Error(t, warn)
	assert.False(t, cached)
	assert.Len(t, dashboard.PDVs, 2)
}

func TestMetricsScope(t *testing.T) {
	e := newTestEngine(newCountingCache())
	doc := testDocument()

	all, err := e.Metrics(doc, "", period.All)
	require.NoError(t, err)
	assert.Equal(t, "all", all.Scope)
	assert.Len(t, all.PDVs, 2)
	assert.Equal(t, 1, all.Metrics.SalesCount)

	one, err := e.Metrics(doc, "b", period.All)
	require.NoError(t, err)
	assert.Empty(t, one.PDVs)
	assert.True(t, one.Metrics.StockValueCost.Equal(decimal.NewFromInt(10)))

	_, err = e.Metrics(doc, "ghost", period.All)
	assert.True(t, domain.IsNotFound(err))
}

func TestGoalProgressLookup(t *testing.T) {
	e := newTestEngine(newCountingCache())
	doc := testDocument()

	progress, err := e.GoalProgress(doc, "b")
	require.NoError(t, err)
	assert.True(t, progress.Revenue.Equal(decimal.NewFromInt(10)))

	delete(doc.Goals, "b")
	_, err = e.GoalProgress(doc, "b")
	assert.True(t, domain.IsNotFound(err))
}

func TestBuildCacheKeyVaries(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	r, err := period.ParseRange("2026-03-01", "2026-03-31", time.UTC)
	require.NoError(t, err)

	base := buildCacheKey(1, period.All, now)
	assert.Equal(t, base, buildCacheKey(1, period.All, now.Add(time.Hour)))
	assert.NotEqual(t, base, buildCacheKey(2, period.All, now))
	assert.NotEqual(t, base, buildCacheKey(1, r, now))
	assert.NotEqual(t, base, buildCacheKey(1, period.All, now.AddDate(0, 0, 1)))
}
