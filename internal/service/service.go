package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/ledger"
	"smartpdv/backend/internal/metrics"
	"smartpdv/backend/internal/period"
	"smartpdv/backend/internal/report"
	"smartpdv/backend/internal/store"
)

var ErrNotLoaded = fmt.Errorf("%w: document not loaded", store.ErrPersistence)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service owns the business document. Mutations are serialized and the
// whole document is saved after each one; reads share a read lock.
type Service struct {
	mu      sync.RWMutex
	repo    store.Gateway
	ledger  *ledger.Ledger
	reports *report.Engine
	log     *zap.Logger
	doc     *domain.Document
	dirty   bool
}

func New(repo store.Gateway, reports *report.Engine, logger *zap.Logger, opts ...ledger.Option) *Service {
	if reports == nil {
		reports = report.NewEngine(nil, 0, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:    repo,
		ledger:  ledger.New(opts...),
		reports: reports,
		log:     logger.Named("service"),
	}
}

// Load reads the document from the gateway, replacing whatever is held.
func (s *Service) Load(ctx context.Context) error {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrPersistence) {
			err = store.Wrap("load document", err)
		}
		return err
	}

	s.mu.Lock()
	s.doc = doc
	s.dirty = false
	s.mu.Unlock()

	s.log.Info("document loaded",
		zap.Int64("revision", doc.Revision),
		zap.Int("pdvs", len(doc.PDVs)),
		zap.Int("sales", len(doc.Sales)),
	)
	return nil
}

// mutate runs fn against the document and saves it. A rejected fn leaves
// the document untouched. When the save fails the change stays in memory,
// the document is marked dirty and the persistence error is returned.
func (s *Service) mutate(ctx context.Context, action string, fn func(doc *domain.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return ErrNotLoaded
	}
	if err := fn(s.doc); err != nil {
		return err
	}

	s.doc.Revision++
	s.dirty = true
	return s.saveLocked(ctx, action)
}

func (s *Service) saveLocked(ctx context.Context, action string) error {
	if err := s.repo.Save(ctx, s.doc); err != nil {
		s.log.Error("save document failed",
			zap.String("action", action),
			zap.Int64("revision", s.doc.Revision),
			zap.Error(err),
		)
		if !errors.Is(err, store.ErrPersistence) {
			err = store.Wrap("save document", err)
		}
		return err
	}
	s.dirty = false
	return nil
}

func (s *Service) read(fn func(doc *domain.Document) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc == nil {
		return ErrNotLoaded
	}
	return fn(s.doc)
}

// Flush saves the held document again, used after a failed save.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return ErrNotLoaded
	}
	if err := s.saveLocked(ctx, "flush"); err != nil {
		return err
	}
	s.log.Info("document flushed", zap.Int64("revision", s.doc.Revision))
	return nil
}

// Dirty reports whether the last change has not been saved.
func (s *Service) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *Service) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return 0
	}
	return s.doc.Revision
}

// ParsePeriod parses request bounds in the reporting timezone.
func (s *Service) ParsePeriod(start, end string) (period.Range, error) {
	return period.ParseRange(start, end, s.reports.Location())
}

// Export encodes the whole document.
func (s *Service) Export(_ context.Context) ([]byte, error) {
	var raw []byte
	err := s.read(func(doc *domain.Document) error {
		var err error
		raw, err = domain.EncodeDocument(doc)
		return err
	})
	return raw, err
}

// Import replaces the document with raw, migrating older layouts.
func (s *Service) Import(ctx context.Context, raw []byte) error {
	incoming, err := domain.DecodeDocument(raw)
	if err != nil {
		return domain.Invalid("%v", err)
	}

	err = s.mutate(ctx, "document_import", func(doc *domain.Document) error {
		incoming.Revision = doc.Revision
		*doc = *incoming
		return nil
	})
	if err != nil {
		return err
	}
	s.logAction(ctx, "document_import", "document", "", zap.Int("pdvs", len(incoming.PDVs)))
	return nil
}

func (s *Service) ListPDVs(_ context.Context) ([]domain.PDV, error) {
	var pdvs []domain.PDV
	err := s.read(func(doc *domain.Document) error {
		pdvs = make([]domain.PDV, 0, len(doc.PDVs))
		for _, pdv := range doc.PDVs {
			pdvs = append(pdvs, clonePDV(pdv))
		}
		return nil
	})
	return pdvs, err
}

func (s *Service) GetPDV(_ context.Context, id string) (domain.PDV, error) {
	var pdv domain.PDV
	err := s.read(func(doc *domain.Document) error {
		found, ok := doc.FindPDV(id)
		if !ok {
			return domain.NotFound("pdv", id)
		}
		pdv = clonePDV(found)
		return nil
	})
	return pdv, err
}

func (s *Service) CreatePDV(ctx context.Context, req domain.PDVCreateRequest) (domain.PDV, error) {
	var pdv domain.PDV
	err := s.mutate(ctx, "pdv_create", func(doc *domain.Document) error {
		var err error
		pdv, err = s.ledger.CreatePDV(doc, req)
		return err
	})
	if err != nil {
		return domain.PDV{}, err
	}
	s.logAction(ctx, "pdv_create", "pdv", pdv.ID, zap.String("name", pdv.Name))
	return clonePDV(pdv), nil
}

func (s *Service) AddFixedCost(ctx context.Context, pdvID string, req domain.CostEntryRequest) (domain.CostEntry, error) {
	var cost domain.CostEntry
	err := s.mutate(ctx, "fixed_cost_add", func(doc *domain.Document) error {
		var err error
		cost, err = s.ledger.AddFixedCost(doc, pdvID, req)
		return err
	})
	if err != nil {
		return domain.CostEntry{}, err
	}
	s.logAction(ctx, "fixed_cost_add", "pdv", pdvID, zap.Stringer("value", cost.Value))
	return cost, nil
}

func (s *Service) AddVariableCost(ctx context.Context, pdvID string, req domain.CostEntryRequest) (domain.CostEntry, error) {
	var cost domain.CostEntry
	err := s.mutate(ctx, "variable_cost_add", func(doc *domain.Document) error {
		var err error
		cost, err = s.ledger.AddVariableCost(doc, pdvID, req)
		return err
	})
	if err != nil {
		return domain.CostEntry{}, err
	}
	s.logAction(ctx, "variable_cost_add", "pdv", pdvID, zap.Stringer("value", cost.Value))
	return cost, nil
}

func (s *Service) Restock(ctx context.Context, req domain.RestockRequest) (domain.RestockResult, error) {
	req.PDVID = strings.TrimSpace(req.PDVID)
	req.ProductID = strings.TrimSpace(req.ProductID)

	var result domain.RestockResult
	err := s.mutate(ctx, "restock", func(doc *domain.Document) error {
		var err error
		result, err = s.ledger.Restock(doc, req)
		return err
	})
	if err != nil {
		return domain.RestockResult{}, err
	}
	s.logAction(ctx, "restock", "pdv", req.PDVID,
		zap.String("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity),
		zap.Stringer("total", result.Transaction.Amount),
	)
	return result, nil
}

func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResult, error) {
	req.PDVID = strings.TrimSpace(req.PDVID)
	req.ProductID = strings.TrimSpace(req.ProductID)

	var result domain.SaleResult
	err := s.mutate(ctx, "sale_record", func(doc *domain.Document) error {
		var err error
		result, err = s.ledger.RecordSale(doc, req)
		return err
	})
	if err != nil {
		return domain.SaleResult{}, err
	}
	s.logAction(ctx, "sale_record", "sale", result.Sale.ID,
		zap.String("pdv_id", result.Sale.PDVID),
		zap.String("method", result.Sale.PaymentMethod),
		zap.Stringer("total", result.Sale.TotalPrice),
	)
	return result, nil
}

func (s *Service) AdjustInventory(ctx context.Context, req domain.InventoryAdjustRequest) (domain.InventoryAdjustResult, error) {
	var result domain.InventoryAdjustResult
	err := s.mutate(ctx, "inventory_adjust", func(doc *domain.Document) error {
		var err error
		result, err = s.ledger.AdjustInventory(doc, req)
		return err
	})
	if err != nil {
		return domain.InventoryAdjustResult{}, err
	}
	s.logAction(ctx, "inventory_adjust", "pdv", req.PDVID,
		zap.String("product_id", req.ProductID),
		zap.Int("previous", result.Previous),
		zap.Int("quantity", result.Quantity),
	)
	return result, nil
}

func (s *Service) PDVMetrics(_ context.Context, pdvID string, r period.Range) (domain.PDVMetrics, error) {
	var m domain.PDVMetrics
	err := s.read(func(doc *domain.Document) error {
		if doc.PDVIndex(pdvID) < 0 {
			return domain.NotFound("pdv", pdvID)
		}
		m = metrics.ComputePDV(doc, pdvID, r)
		return nil
	})
	return m, err
}

func (s *Service) SetGoal(ctx context.Context, pdvID string, req domain.GoalRequest) (domain.GoalProgress, error) {
	var progress domain.GoalProgress
	err := s.mutate(ctx, "goal_set", func(doc *domain.Document) error {
		if _, err := s.ledger.SetGoal(doc, pdvID, req); err != nil {
			return err
		}
		var err error
		progress, err = s.reports.GoalProgress(doc, pdvID)
		return err
	})
	if err != nil {
		return domain.GoalProgress{}, err
	}
	s.logAction(ctx, "goal_set", "pdv", pdvID, zap.Stringer("target", req.Target))
	return progress, nil
}

func (s *Service) DeleteGoal(ctx context.Context, pdvID string) error {
	err := s.mutate(ctx, "goal_delete", func(doc *domain.Document) error {
		return s.ledger.DeleteGoal(doc, pdvID)
	})
	if err != nil {
		return err
	}
	s.logAction(ctx, "goal_delete", "pdv", pdvID)
	return nil
}

func (s *Service) GoalProgress(_ context.Context, pdvID string) (domain.GoalProgress, error) {
	var progress domain.GoalProgress
	err := s.read(func(doc *domain.Document) error {
		var err error
		progress, err = s.reports.GoalProgress(doc, pdvID)
		return err
	})
	return progress, err
}

// ListProducts returns every product with its stock across PDVs and its
// sales figures over r.
func (s *Service) ListProducts(_ context.Context, r period.Range) ([]domain.ProductView, error) {
	var views []domain.ProductView
	err := s.read(func(doc *domain.Document) error {
		views = make([]domain.ProductView, 0, len(doc.Products))
		for _, product := range doc.Products {
			views = append(views, domain.ProductView{
				Product: product,
				Metrics: metrics.Product(doc, product.ID, r),
				Stock:   metrics.TotalStock(doc, product.ID),
			})
		}
		return nil
	})
	return views, err
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	var product domain.Product
	err := s.mutate(ctx, "product_create", func(doc *domain.Document) error {
		var err error
		product, err = s.ledger.CreateProduct(doc, req)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logAction(ctx, "product_create", "product", product.ID,
		zap.String("name", product.Name),
		zap.Stringer("cost", product.CurrentCost),
		zap.Stringer("price", product.ResalePrice),
	)
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	var product domain.Product
	err := s.mutate(ctx, "product_update", func(doc *domain.Document) error {
		var err error
		product, err = s.ledger.UpdateProduct(doc, id, req)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logAction(ctx, "product_update", "product", id)
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	err := s.mutate(ctx, "product_delete", func(doc *domain.Document) error {
		return s.ledger.DeleteProduct(doc, id)
	})
	if err != nil {
		return err
	}
	s.logAction(ctx, "product_delete", "product", id)
	return nil
}

func (s *Service) ListClients(_ context.Context) ([]domain.Client, error) {
	var clients []domain.Client
	err := s.read(func(doc *domain.Document) error {
		clients = slices.Clone(doc.Clients)
		return nil
	})
	return clients, err
}

func (s *Service) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error) {
	var client domain.Client
	err := s.mutate(ctx, "client_create", func(doc *domain.Document) error {
		var err error
		client, err = s.ledger.CreateClient(doc, req)
		return err
	})
	if err != nil {
		return domain.Client{}, err
	}
	s.logAction(ctx, "client_create", "client", client.ID, zap.String("name", client.Name))
	return client, nil
}

func (s *Service) UpdateClient(ctx context.Context, id string, req domain.ClientUpdateRequest) (domain.Client, error) {
	var client domain.Client
	err := s.mutate(ctx, "client_update", func(doc *domain.Document) error {
		var err error
		client, err = s.ledger.UpdateClient(doc, id, req)
		return err
	})
	if err != nil {
		return domain.Client{}, err
	}
	s.logAction(ctx, "client_update", "client", id)
	return client, nil
}

func (s *Service) DeleteClient(ctx context.Context, id string) error {
	err := s.mutate(ctx, "client_delete", func(doc *domain.Document) error {
		return s.ledger.DeleteClient(doc, id)
	})
	if err != nil {
		return err
	}
	s.logAction(ctx, "client_delete", "client", id)
	return nil
}

func (s *Service) ClientStatement(_ context.Context, id string) (domain.ClientStatement, error) {
	var statement domain.ClientStatement
	err := s.read(func(doc *domain.Document) error {
		st, ok := metrics.Statement(doc, id)
		if !ok {
			return domain.NotFound("client", id)
		}
		statement = st
		return nil
	})
	return statement, err
}

func (s *Service) SettleClientDebt(ctx context.Context, req domain.ClientPaymentRequest) (domain.ClientPaymentResult, error) {
	var result domain.ClientPaymentResult
	err := s.mutate(ctx, "client_payment", func(doc *domain.Document) error {
		var err error
		result, err = s.ledger.SettleClientDebt(doc, req)
		return err
	})
	if err != nil {
		return domain.ClientPaymentResult{}, err
	}
	s.logAction(ctx, "client_payment", "client", req.ClientID,
		zap.Stringer("applied", result.Applied),
		zap.Int("realizations", len(result.Realizations)),
		zap.Stringer("debt", result.Client.Debt),
	)
	return result, nil
}

func (s *Service) ListFinanceEntries(_ context.Context, kind string) ([]domain.FinanceEntry, error) {
	var entries []domain.FinanceEntry
	err := s.read(func(doc *domain.Document) error {
		source := doc.FinanceEntries(kind)
		if source == nil {
			return domain.Invalid("unknown finance kind %q", kind)
		}
		entries = make([]domain.FinanceEntry, 0, len(*source))
		for _, entry := range *source {
			entries = append(entries, cloneFinanceEntry(entry))
		}
		return nil
	})
	return entries, err
}

func (s *Service) CreateFinanceEntry(ctx context.Context, kind string, req domain.FinanceEntryRequest) (domain.FinanceEntry, error) {
	var entry domain.FinanceEntry
	err := s.mutate(ctx, "finance_create", func(doc *domain.Document) error {
		var err error
		entry, err = s.ledger.CreateFinanceEntry(doc, kind, req)
		return err
	})
	if err != nil {
		return domain.FinanceEntry{}, err
	}
	s.logAction(ctx, "finance_create", kind, entry.ID,
		zap.Stringer("amount", entry.Amount),
		zap.Bool("recurring", entry.IsRecurring),
	)
	return entry, nil
}

func (s *Service) UpdateFinanceEntry(ctx context.Context, kind string, id string, req domain.FinanceEntryUpdateRequest) (domain.FinanceEntry, error) {
	var entry domain.FinanceEntry
	err := s.mutate(ctx, "finance_update", func(doc *domain.Document) error {
		var err error
		entry, err = s.ledger.UpdateFinanceEntry(doc, kind, id, req)
		return err
	})
	if err != nil {
		return domain.FinanceEntry{}, err
	}
	s.logAction(ctx, "finance_update", kind, id)
	return cloneFinanceEntry(entry), nil
}

func (s *Service) DeleteFinanceEntry(ctx context.Context, kind string, id string) error {
	err := s.mutate(ctx, "finance_delete", func(doc *domain.Document) error {
		return s.ledger.DeleteFinanceEntry(doc, kind, id)
	})
	if err != nil {
		return err
	}
	s.logAction(ctx, "finance_delete", kind, id)
	return nil
}

// SettleFinanceEntry pays a receivable (credit) or payable (debit) entry.
func (s *Service) SettleFinanceEntry(ctx context.Context, req domain.FinancePaymentRequest) (domain.FinancePaymentResult, error) {
	var result domain.FinancePaymentResult
	err := s.mutate(ctx, "finance_settle", func(doc *domain.Document) error {
		var err error
		switch req.Kind {
		case domain.FinanceReceivable:
			result, err = s.ledger.SettleReceivable(doc, req.EntryID, req.Amount)
		case domain.FinancePayable:
			result, err = s.ledger.SettlePayable(doc, req.EntryID, req.Amount)
		default:
			err = domain.Invalid("unknown finance kind %q", req.Kind)
		}
		return err
	})
	if err != nil {
		return domain.FinancePaymentResult{}, err
	}

	fields := []zap.Field{
		zap.Stringer("applied", result.Applied),
		zap.Bool("paid", result.Entry.Paid),
	}
	if result.Renewal != nil {
		fields = append(fields, zap.String("renewal_id", result.Renewal.ID))
	}
	s.logAction(ctx, "finance_settle", req.Kind, req.EntryID, fields...)

	result.Entry = cloneFinanceEntry(result.Entry)
	return result, nil
}

func (s *Service) Cash(_ context.Context) (domain.CashView, error) {
	var view domain.CashView
	err := s.read(func(doc *domain.Document) error {
		view = domain.CashView{
			Summary:      metrics.CashSummary(doc),
			Transactions: slices.Clone(doc.CentralCash.Transactions),
		}
		return nil
	})
	return view, err
}

func (s *Service) Withdraw(ctx context.Context, req domain.CashMovementRequest) (domain.CashMovementResult, error) {
	var result domain.CashMovementResult
	err := s.mutate(ctx, "cash_withdrawal", func(doc *domain.Document) error {
		var err error
		result, err = s.ledger.Withdraw(doc, req)
		return err
	})
	if err != nil {
		return domain.CashMovementResult{}, err
	}
	s.logAction(ctx, "cash_withdrawal", "cash", result.Transaction.ID, zap.Stringer("amount", req.Amount))
	return result, nil
}

func (s *Service) WalletDeposit(ctx context.Context, req domain.CashMovementRequest) (domain.CashMovementResult, error) {
	var result domain.CashMovementResult
	err := s.mutate(ctx, "wallet_deposit", func(doc *domain.Document) error {
		var err error
		result, err = s.ledger.WalletDeposit(doc, req)
		return err
	})
	if err != nil {
		return domain.CashMovementResult{}, err
	}
	s.logAction(ctx, "wallet_deposit", "cash", result.Transaction.ID,
		zap.Stringer("amount", req.Amount),
		zap.String("client_id", req.ClientID),
	)
	return result, nil
}

// ListSales returns sales newest first, optionally limited to one PDV.
func (s *Service) ListSales(_ context.Context, pdvID string, r period.Range) ([]domain.Sale, error) {
	var sales []domain.Sale
	err := s.read(func(doc *domain.Document) error {
		sales = make([]domain.Sale, 0)
		for _, sale := range period.Filter(doc.Sales, r, func(s domain.Sale) time.Time { return s.Date }) {
			if pdvID == "" || sale.PDVID == pdvID {
				sales = append(sales, sale)
			}
		}
		return nil
	})
	slices.SortStableFunc(sales, func(a, b domain.Sale) int {
		return b.Date.Compare(a.Date)
	})
	return sales, err
}

func (s *Service) Report(_ context.Context, scope string, r period.Range) (domain.MetricsReport, error) {
	var rep domain.MetricsReport
	err := s.read(func(doc *domain.Document) error {
		var err error
		rep, err = s.reports.Metrics(doc, scope, r)
		return err
	})
	return rep, err
}

func (s *Service) Dashboard(ctx context.Context, r period.Range) (domain.Dashboard, error) {
	var dashboard domain.Dashboard
	err := s.read(func(doc *domain.Document) error {
		var cached bool
		var warn error
		dashboard, cached, warn = s.reports.Dashboard(ctx, doc, r)
		if warn != nil {
			s.log.Warn("dashboard cache unavailable", zap.Error(warn))
		}
		if cached {
			s.log.Debug("dashboard served from cache", zap.Int64("revision", dashboard.Revision))
		}
		return nil
	})
	return dashboard, err
}

func (s *Service) logAction(ctx context.Context, action string, entityType string, entityID string, fields ...zap.Field) {
	actor := "system"
	if a, ok := ActorFromContext(ctx); ok && a.Username != "" {
		actor = a.Username
	}
	base := []zap.Field{
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("actor", actor),
	}
	if entityID != "" {
		base = append(base, zap.String("entity_id", entityID))
	}
	s.log.Info("document updated", append(base, fields...)...)
}

func clonePDV(pdv domain.PDV) domain.PDV {
	pdv.FixedCosts = slices.Clone(pdv.FixedCosts)
	pdv.VariableCosts = slices.Clone(pdv.VariableCosts)
	pdv.Inventory = slices.Clone(pdv.Inventory)
	return pdv
}

func cloneFinanceEntry(entry domain.FinanceEntry) domain.FinanceEntry {
	entry.Payments = slices.Clone(entry.Payments)
	return entry
}
