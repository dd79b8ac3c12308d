// Package ledger holds the mutators of the business document. Each mutator
// validates every precondition before touching the document, so a rejected
// call leaves it exactly as it was.
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/xid"
)

type Ledger struct {
	now   func() time.Time
	newID func(prefix string) string
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func WithIDGenerator(gen func(prefix string) string) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		now:   func() time.Time { return time.Now().UTC() },
		newID: xid.New,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// appendCash records one ledger transaction. The balance is never stored.
func (l *Ledger) appendCash(doc *domain.Document, txType string, amount decimal.Decimal, reason string) domain.CashTransaction {
	tx := domain.CashTransaction{
		ID:     l.newID("cash"),
		Type:   txType,
		Amount: amount,
		Reason: reason,
		Date:   l.now(),
	}
	doc.CentralCash.Transactions = append(doc.CentralCash.Transactions, tx)
	return tx
}

func (l *Ledger) CreatePDV(doc *domain.Document, req domain.PDVCreateRequest) (domain.PDV, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.PDV{}, domain.Invalid("pdv name is required")
	}
	if req.InitialInvestment.IsNegative() {
		return domain.PDV{}, domain.Invalid("initial investment must not be negative")
	}

	pdv := domain.PDV{
		ID:                l.newID("pdv"),
		Name:              name,
		InitialInvestment: req.InitialInvestment,
		FixedCosts:        []domain.CostEntry{},
		VariableCosts:     []domain.CostEntry{},
		Inventory:         []domain.InventoryLine{},
	}
	if req.InitialFixedCost != nil {
		cost, err := l.costEntry(*req.InitialFixedCost, false)
		if err != nil {
			return domain.PDV{}, err
		}
		pdv.FixedCosts = append(pdv.FixedCosts, cost)
	}

	doc.PDVs = append(doc.PDVs, pdv)
	return pdv, nil
}

func (l *Ledger) AddFixedCost(doc *domain.Document, pdvID string, req domain.CostEntryRequest) (domain.CostEntry, error) {
	idx := doc.PDVIndex(pdvID)
	if idx < 0 {
		return domain.CostEntry{}, domain.NotFound("pdv", pdvID)
	}
	cost, err := l.costEntry(req, false)
	if err != nil {
		return domain.CostEntry{}, err
	}
	doc.PDVs[idx].FixedCosts = append(doc.PDVs[idx].FixedCosts, cost)
	return cost, nil
}

// AddVariableCost records a dated cost. Entries without a date are stamped
// with the current time.
func (l *Ledger) AddVariableCost(doc *domain.Document, pdvID string, req domain.CostEntryRequest) (domain.CostEntry, error) {
	idx := doc.PDVIndex(pdvID)
	if idx < 0 {
		return domain.CostEntry{}, domain.NotFound("pdv", pdvID)
	}
	cost, err := l.costEntry(req, true)
	if err != nil {
		return domain.CostEntry{}, err
	}
	doc.PDVs[idx].VariableCosts = append(doc.PDVs[idx].VariableCosts, cost)
	return cost, nil
}

func (l *Ledger) costEntry(req domain.CostEntryRequest, dated bool) (domain.CostEntry, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.CostEntry{}, domain.Invalid("cost name is required")
	}
	if req.Value.IsNegative() {
		return domain.CostEntry{}, domain.Invalid("cost value must not be negative")
	}
	entry := domain.CostEntry{ID: l.newID("cost"), Name: name, Value: req.Value, Date: req.Date}
	if dated && entry.Date == nil {
		now := l.now()
		entry.Date = &now
	}
	return entry, nil
}

func (l *Ledger) CreateProduct(doc *domain.Document, req domain.ProductCreateRequest) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, domain.Invalid("product name is required")
	}
	if req.CurrentCost.IsNegative() || req.ResalePrice.IsNegative() {
		return domain.Product{}, domain.Invalid("cost and resale price must not be negative")
	}

	product := domain.Product{
		ID:          l.newID("prod"),
		Name:        name,
		CurrentCost: req.CurrentCost,
		ResalePrice: req.ResalePrice,
	}
	doc.Products = append(doc.Products, product)
	return product, nil
}

// UpdateProduct edits name, cost and price. Past sales keep their frozen cost.
func (l *Ledger) UpdateProduct(doc *domain.Document, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	idx := doc.ProductIndex(id)
	if idx < 0 {
		return domain.Product{}, domain.NotFound("product", id)
	}

	updated := doc.Products[idx]
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, domain.Invalid("product name is required")
		}
		updated.Name = name
	}
	if req.CurrentCost.Valid {
		if req.CurrentCost.Decimal.IsNegative() {
			return domain.Product{}, domain.Invalid("cost must not be negative")
		}
		updated.CurrentCost = req.CurrentCost.Decimal
	}
	if req.ResalePrice.Valid {
		if req.ResalePrice.Decimal.IsNegative() {
			return domain.Product{}, domain.Invalid("resale price must not be negative")
		}
		updated.ResalePrice = req.ResalePrice.Decimal
	}

	doc.Products[idx] = updated
	return updated, nil
}

func (l *Ledger) CreateClient(doc *domain.Document, req domain.ClientCreateRequest) (domain.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Client{}, domain.Invalid("client name is required")
	}
	pdvID := strings.TrimSpace(req.PDVID)
	if pdvID != "" && doc.PDVIndex(pdvID) < 0 {
		return domain.Client{}, domain.NotFound("pdv", pdvID)
	}
	if req.CreditLimit.Valid && req.CreditLimit.Decimal.IsNegative() {
		return domain.Client{}, domain.Invalid("credit limit must not be negative")
	}

	client := domain.Client{
		ID:          l.newID("client"),
		Name:        name,
		PDVID:       pdvID,
		CreditLimit: req.CreditLimit,
	}
	doc.Clients = append(doc.Clients, client)
	return client, nil
}

// UpdateClient edits the client profile. Lowering the limit below the
// current debt is allowed; it only blocks further credit sales.
func (l *Ledger) UpdateClient(doc *domain.Document, id string, req domain.ClientUpdateRequest) (domain.Client, error) {
	idx := doc.ClientIndex(id)
	if idx < 0 {
		return domain.Client{}, domain.NotFound("client", id)
	}

	updated := doc.Clients[idx]
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Client{}, domain.Invalid("client name is required")
		}
		updated.Name = name
	}
	if req.PDVID != nil {
		pdvID := strings.TrimSpace(*req.PDVID)
		if pdvID != "" && doc.PDVIndex(pdvID) < 0 {
			return domain.Client{}, domain.NotFound("pdv", pdvID)
		}
		updated.PDVID = pdvID
	}
	switch {
	case req.ClearCreditLimit:
		updated.CreditLimit = decimal.NullDecimal{}
	case req.CreditLimit.Valid:
		if req.CreditLimit.Decimal.IsNegative() {
			return domain.Client{}, domain.Invalid("credit limit must not be negative")
		}
		updated.CreditLimit = req.CreditLimit
	}

	doc.Clients[idx] = updated
	return updated, nil
}

func (l *Ledger) SetGoal(doc *domain.Document, pdvID string, req domain.GoalRequest) (domain.Goal, error) {
	if doc.PDVIndex(pdvID) < 0 {
		return domain.Goal{}, domain.NotFound("pdv", pdvID)
	}
	if !req.Target.IsPositive() {
		return domain.Goal{}, domain.Invalid("goal target must be positive")
	}
	if !req.StartDate.IsZero() && !req.EndDate.IsZero() && req.EndDate.Before(req.StartDate.Time) {
		return domain.Goal{}, domain.ErrInvalidPeriod
	}

	goal := domain.Goal{
		Target:    req.Target,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		DueDate:   req.DueDate,
	}
	doc.Goals[pdvID] = goal
	return goal, nil
}

func (l *Ledger) DeleteGoal(doc *domain.Document, pdvID string) error {
	if _, ok := doc.Goals[pdvID]; !ok {
		return domain.NotFound("goal", pdvID)
	}
	delete(doc.Goals, pdvID)
	return nil
}
