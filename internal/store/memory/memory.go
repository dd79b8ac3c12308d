package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/ledger"
	"smartpdv/backend/internal/store"
)

// Store keeps the encoded document in memory. Load always decodes a fresh
// copy, so callers never share state with the store.
type Store struct {
	mu    sync.RWMutex
	raw   []byte
	saves int
}

func New() *Store {
	return &Store{}
}

// NewSeeded returns a store holding a small demo business: one PDV, two
// products with opening stock and one credit client.
func NewSeeded() *Store {
	doc := domain.NewDocument()
	l := ledger.New()

	pdv, err := l.CreatePDV(doc, domain.PDVCreateRequest{
		Name:              "Centro",
		InitialInvestment: decimal.NewFromInt(1500),
		InitialFixedCost:  &domain.CostEntryRequest{Name: "Aluguel", Value: decimal.NewFromInt(300)},
	})
	if err != nil {
		panic(fmt.Sprintf("memory seed: %v", err))
	}
	for _, p := range []struct {
		name  string
		cost  int64
		price int64
		qty   int
	}{
		{"Coxinha", 3, 6, 50},
		{"Refrigerante", 4, 7, 40},
	} {
		product, err := l.CreateProduct(doc, domain.ProductCreateRequest{
			Name:        p.name,
			CurrentCost: decimal.NewFromInt(p.cost),
			ResalePrice: decimal.NewFromInt(p.price),
		})
		if err != nil {
			panic(fmt.Sprintf("memory seed: %v", err))
		}
		if _, err := l.Restock(doc, domain.RestockRequest{PDVID: pdv.ID, ProductID: product.ID, Quantity: p.qty}); err != nil {
			panic(fmt.Sprintf("memory seed: %v", err))
		}
	}
	if _, err := l.CreateClient(doc, domain.ClientCreateRequest{
		Name:        "Maria",
		PDVID:       pdv.ID,
		CreditLimit: decimal.NewNullDecimal(decimal.NewFromInt(200)),
	}); err != nil {
		panic(fmt.Sprintf("memory seed: %v", err))
	}

	raw, err := domain.EncodeDocument(doc)
	if err != nil {
		panic(fmt.Sprintf("memory seed: %v", err))
	}
	return &Store{raw: raw}
}

func (s *Store) Load(_ context.Context) (*domain.Document, error) {
	s.mu.RLock()
	raw := s.raw
	s.mu.RUnlock()

	doc, err := domain.DecodeDocument(raw)
	if err != nil {
		return nil, store.Wrap("load document", err)
	}
	return doc, nil
}

func (s *Store) Save(_ context.Context, doc *domain.Document) error {
	raw, err := domain.EncodeDocument(doc)
	if err != nil {
		return store.Wrap("encode document", err)
	}

	s.mu.Lock()
	s.raw = raw
	s.saves++
	s.mu.Unlock()
	return nil
}

// Saves reports how many times the document was saved.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Raw returns a copy of the stored bytes.
func (s *Store) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.raw...)
}
