package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailjet/mailjet-apiv3-go"

	"resort/internal/app/policies"
	domainbooking "resort/internal/domain/booking"
	domainuser "resort/internal/domain/user"
)

var ErrNoRecipient = errors.New("notify: user has no email address")

type MailjetConfig struct {
	APIKey    string
	SecretKey string
	FromEmail string
	FromName  string
}

// Mailjet sends plain-text booking emails through the Send API v3.1.
type Mailjet struct {
	from MailjetConfig
	send func(*mailjet.MessagesV31) (*mailjet.ResultsV31, error)
}

func NewMailjet(cfg MailjetConfig) *Mailjet {
	client := mailjet.NewMailjetClient(cfg.APIKey, cfg.SecretKey)
	return &Mailjet{
		from: cfg,
		send: func(m *mailjet.MessagesV31) (*mailjet.ResultsV31, error) { return client.SendMailV31(m) },
	}
}

func (m *Mailjet) SendBookingConfirmation(ctx context.Context, b *domainbooking.Booking, u *domainuser.User) error {
	return m.deliver(ctx, confirmationMessage(b, u))
}

func (m *Mailjet) SendBookingCancellation(ctx context.Context, b *domainbooking.Booking, u *domainuser.User) error {
	return m.deliver(ctx, cancellationMessage(b, u))
}

// deliver gives up when ctx ends; the HTTP call itself cannot be cancelled.
func (m *Mailjet) deliver(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	payload := &mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{{
		From: &mailjet.RecipientV31{Email: m.from.FromEmail, Name: m.from.FromName},
		To:   &mailjet.RecipientsV31{mailjet.RecipientV31{Email: msg.To, Name: msg.ToName}},

		Subject:  msg.Subject,
		TextPart: msg.Body,
		CustomID: msg.CustomID,
	}}}

	done := make(chan error, 1)
	go func() {
		_, err := m.send(payload)
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mailjet: %w", err)
		}
		return nil
	}
}

var _ policies.Notifier = (*Mailjet)(nil)
