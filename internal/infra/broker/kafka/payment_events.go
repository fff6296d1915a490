package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"resort/internal/app/commands"
	bookinghandlers "resort/internal/app/handlers/booking"
	domainbooking "resort/internal/domain/booking"
)

// Inbox deduplicates broker deliveries by event id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

var ErrMalformedEvent = errors.New("kafka: malformed payment event")

type paymentEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		BookingID string `json:"booking_id"`
		PaymentID string `json:"payment_id"`
	} `json:"data"`
}

// PaymentEvents turns gateway CloudEvents into RecordPaymentEvent commands.
type PaymentEvents struct {
	Bus    commands.Bus
	Inbox  Inbox
	Logger *slog.Logger
}

func (h PaymentEvents) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt paymentEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.logger().Warn("dropping undecodable payment event", "offset", msg.Offset, "error", err)
		return nil
	}
	if evt.ID == "" {
		evt.ID = header(msg, "ce_id")
	}
	cmd, err := toCommand(evt)
	if err != nil {
		h.logger().Warn("dropping payment event", "id", evt.ID, "type", evt.Type, "error", err)
		return nil
	}

	if h.Inbox != nil && evt.ID != "" {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	_, err = commands.Dispatch[bookinghandlers.RecordPaymentEventCommand, bookinghandlers.PaymentResult](ctx, h.Bus, cmd)
	if err == nil {
		return nil
	}
	if errors.Is(err, domainbooking.ErrNotFound) || errors.Is(err, domainbooking.ErrInvalidStateTransition) {
		h.logger().Warn("payment event rejected", "id", evt.ID, "booking_id", cmd.BookingID, "error", err)
		return nil
	}
	if h.Inbox != nil && evt.ID != "" {
		if ferr := h.Inbox.Forget(ctx, evt.ID); ferr != nil {
			return errors.Join(err, ferr)
		}
	}
	return err
}

func toCommand(evt paymentEvent) (bookinghandlers.RecordPaymentEventCommand, error) {
	cmd := bookinghandlers.RecordPaymentEventCommand{
		BookingID: evt.Data.BookingID,
		PaymentID: evt.Data.PaymentID,
	}
	switch strings.TrimSuffix(evt.Type, ".v1") {
	case "payment.captured":
		cmd.Outcome = bookinghandlers.PaymentCaptured
	case "payment.failed":
		cmd.Outcome = bookinghandlers.PaymentFailed
	default:
		return cmd, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, evt.Type)
	}
	if cmd.BookingID == "" {
		return cmd, fmt.Errorf("%w: booking_id missing", ErrMalformedEvent)
	}
	return cmd, nil
}

func header(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (h PaymentEvents) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
