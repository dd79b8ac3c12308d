package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")

	ErrInsufficientStock  = fmt.Errorf("%w: insufficient stock", ErrValidation)
	ErrInsufficientCredit = fmt.Errorf("%w: insufficient credit", ErrValidation)
	ErrInsufficientWallet = fmt.Errorf("%w: insufficient wallet balance", ErrValidation)
	ErrOutstandingBalance = fmt.Errorf("%w: outstanding balance", ErrValidation)
	ErrAlreadySettled     = fmt.Errorf("%w: already settled", ErrValidation)
	ErrInvalidPeriod      = fmt.Errorf("%w: invalid period", ErrValidation)
)

// Invalid builds a validation error with a formatted reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

type StockError struct {
	PDVID     string
	ProductID string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s at pdv %s: available %d, requested %d",
		e.ProductID, e.PDVID, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// BalanceError reports a credit or wallet shortfall for a client.
type BalanceError struct {
	ClientID  string
	Wallet    bool
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *BalanceError) Error() string {
	kind := "credit"
	if e.Wallet {
		kind = "wallet balance"
	}
	return fmt.Sprintf("insufficient %s for client %s: available %s, requested %s",
		kind, e.ClientID, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *BalanceError) Unwrap() error {
	if e.Wallet {
		return ErrInsufficientWallet
	}
	return ErrInsufficientCredit
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports errors caused by the current state rather than by the
// request shape: stock, credit, wallet and outstanding balance checks.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrInsufficientWallet) ||
		errors.Is(err, ErrOutstandingBalance) ||
		errors.Is(err, ErrAlreadySettled)
}
