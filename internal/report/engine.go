// Package report assembles dashboards and metric reports from a document.
package report

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"smartpdv/backend/internal/cache"
	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/metrics"
	"smartpdv/backend/internal/period"
)

type Engine struct {
	cache    cache.DashboardCache
	cacheTTL time.Duration
	loc      *time.Location
	now      func() time.Time
}

func NewEngine(cacheStore cache.DashboardCache, cacheTTL time.Duration, loc *time.Location) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopDashboardCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		loc:      loc,
		now:      time.Now,
	}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// Dashboard returns the whole-business view for r. Results are cached per
// document revision, so any mutation invalidates them. The caller must keep
// doc from changing while this runs. Cache failures are returned as warn
// alongside a freshly computed dashboard.
func (e *Engine) Dashboard(ctx context.Context, doc *domain.Document, r period.Range) (dashboard domain.Dashboard, cached bool, warn error) {
	now := e.now().In(e.loc)
	key := buildCacheKey(doc.Revision, r, now)

	hit, ok, err := e.cache.Get(ctx, key)
	if err == nil && ok {
		return *hit, true, nil
	}
	if err != nil {
		warn = fmt.Errorf("dashboard cache get: %w", err)
	}

	dashboard = e.build(doc, r, now)
	if err := e.cache.Set(ctx, key, &dashboard, e.cacheTTL); err != nil && warn == nil {
		warn = fmt.Errorf("dashboard cache set: %w", err)
	}
	return dashboard, false, warn
}

func (e *Engine) build(doc *domain.Document, r period.Range, now time.Time) domain.Dashboard {
	totals, perPDV := metrics.Aggregate(doc, r)
	start, end := r.Label()

	goals := make([]domain.GoalProgress, 0, len(doc.Goals))
	for pdvID, goal := range doc.Goals {
		goals = append(goals, metrics.GoalProgress(doc, pdvID, goal, now, e.loc))
	}
	slices.SortFunc(goals, func(a, b domain.GoalProgress) int {
		return strings.Compare(a.PDVID, b.PDVID)
	})

	return domain.Dashboard{
		Revision:    doc.Revision,
		Start:       start,
		End:         end,
		Totals:      totals,
		PDVs:        perPDV,
		Goals:       goals,
		Cash:        metrics.CashSummary(doc),
		GeneratedAt: now.UTC(),
	}
}

// Metrics reports one PDV, or every PDV plus their sum when scope is "all"
// or empty.
func (e *Engine) Metrics(doc *domain.Document, scope string, r period.Range) (domain.MetricsReport, error) {
	start, end := r.Label()
	rep := domain.MetricsReport{Scope: scope, Start: start, End: end}
	if scope == "" || scope == metrics.AllPDVs {
		rep.Scope = metrics.AllPDVs
		rep.Metrics, rep.PDVs = metrics.Aggregate(doc, r)
		return rep, nil
	}
	if doc.PDVIndex(scope) < 0 {
		return domain.MetricsReport{}, domain.NotFound("pdv", scope)
	}
	rep.Metrics = metrics.ComputePDV(doc, scope, r)
	return rep, nil
}

// GoalProgress evaluates the goal of one PDV as of now.
func (e *Engine) GoalProgress(doc *domain.Document, pdvID string) (domain.GoalProgress, error) {
	goal, ok := doc.Goals[pdvID]
	if !ok {
		return domain.GoalProgress{}, domain.NotFound("goal", pdvID)
	}
	return metrics.GoalProgress(doc, pdvID, goal, e.now(), e.loc), nil
}

func buildCacheKey(revision int64, r period.Range, now time.Time) string {
	start, end := r.Label()
	raw := fmt.Sprintf("%d|%s|%s|%s|%s", revision, start, end, now.Format(domain.DateLayout), now.Location())
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
