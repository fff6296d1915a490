package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"resort/internal/app/policies"
	"resort/internal/domain/shared/money"
)

var (
	ErrSecretRequired = errors.New("payments: sandbox secret required")
	ErrUnknownPayment = errors.New("payments: unknown payment")
	ErrRefundDeclined = errors.New("payments: refund declined")
)

// Sandbox is a local stand-in for the card processor. Signatures are
// HMAC-SHA256 over "orderID|paymentID", the scheme the hosted checkout uses.
type Sandbox struct {
	Secret []byte
	// DeclineRefunds makes every Refund fail.
	DeclineRefunds bool
	Now            func() time.Time

	mu       sync.Mutex
	refunded map[string]money.Money
	byKey    map[string]string
	issued   int
}

func NewSandbox(secret string) (*Sandbox, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	return &Sandbox{Secret: []byte(secret)}, nil
}

func (s *Sandbox) CreateOrder(ctx context.Context, amount money.Money, receipt string, _ policies.PaymentCustomer) (policies.PaymentOrder, error) {
	if err := ctx.Err(); err != nil {
		return policies.PaymentOrder{}, err
	}
	if err := amount.Validate(); err != nil {
		return policies.PaymentOrder{}, err
	}
	return policies.PaymentOrder{
		ID:        "order_" + uuid.NewString(),
		Amount:    amount,
		Receipt:   receipt,
		CreatedAt: s.now(),
	}, nil
}

// Sign produces the signature the checkout would hand back to the client.
func (s *Sandbox) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Sandbox) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	want, err := hex.DecodeString(s.Sign(orderID, paymentID))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

// Refund returns the earlier reference when key was already refunded. An
// empty key falls back to the payment id.
func (s *Sandbox) Refund(ctx context.Context, paymentID string, amount money.Money, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if paymentID == "" {
		return "", ErrUnknownPayment
	}
	if key == "" {
		key = paymentID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.byKey[key]; ok {
		return ref, nil
	}
	if s.DeclineRefunds {
		return "", ErrRefundDeclined
	}
	if s.refunded == nil {
		s.refunded = make(map[string]money.Money)
		s.byKey = make(map[string]string)
	}
	ref := "rfnd_" + uuid.NewString()
	s.refunded[paymentID] = amount
	s.byKey[key] = ref
	s.issued++
	return ref, nil
}

// Issued counts the refunds that actually moved money.
func (s *Sandbox) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

// Refunded reports the amount refunded for paymentID, if any.
func (s *Sandbox) Refunded(paymentID string) (money.Money, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.refunded[paymentID]
	return amount, ok
}

func (s *Sandbox) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ policies.PaymentGateway = (*Sandbox)(nil)
