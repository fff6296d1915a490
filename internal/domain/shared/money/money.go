package money

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrNegativeAmount   = errors.New("money: amount must not be negative")
)

// DefaultCurrency is the resort's tariff currency.
const DefaultCurrency = "INR"

// Money keeps amounts in whole base-currency units. Tariffs are integral, so
// no fractional arithmetic is needed anywhere in pricing.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}, nil
}

// Must creates Money and panics if validation fails; used by fixtures and tests.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(currency)}
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sum folds values onto a zero of the given currency.
func Sum(currency string, values ...Money) (Money, error) {
	total := Zero(currency)
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Money{}, err
		}
		total = next
	}
	return total, nil
}

func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Validate rejects negative amounts and malformed currencies.
func (m Money) Validate() error {
	if len(m.Currency) != 3 {
		return ErrInvalidCurrency
	}
	if m.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
