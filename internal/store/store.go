package store

import (
	"context"
	"errors"
	"fmt"

	"smartpdv/backend/internal/domain"
)

var ErrPersistence = errors.New("persistence failure")

// Gateway loads and saves the whole business document. Load returns the
// initial state when nothing was saved yet; Save replaces the stored
// document in one step.
type Gateway interface {
	Load(ctx context.Context) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
}

// Wrap marks err as a persistence failure, keeping the cause.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
