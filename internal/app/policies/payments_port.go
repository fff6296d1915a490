package policies

import (
	"context"
	"time"

	"resort/internal/domain/shared/money"
)

type PaymentCustomer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

type PaymentOrder struct {
	ID        string
	Amount    money.Money
	Receipt   string
	CreatedAt time.Time
}

// PaymentGateway is the external processor. Orders are created before the
// guest pays; the client returns a signed payment reference afterwards.
//
// Refund must be idempotent on key: a repeated call with the same key returns
// the first refund reference and moves no money.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount money.Money, receipt string, customer PaymentCustomer) (PaymentOrder, error)
	VerifySignature(orderID, paymentID, signature string) bool
	Refund(ctx context.Context, paymentID string, amount money.Money, key string) (string, error)
}
