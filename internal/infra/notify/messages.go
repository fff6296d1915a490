package notify

import (
	"fmt"
	"strings"
	"time"

	domainbooking "resort/internal/domain/booking"
	domainuser "resort/internal/domain/user"
)

// Message is a rendered plain-text email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	Body     string
	CustomID string
}

func confirmationMessage(b *domainbooking.Booking, u *domainuser.User) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", u.Name)
	fmt.Fprintf(&body, "Your booking %s is received.\n\n", b.ID)
	writeStay(&body, b)
	fmt.Fprintf(&body, "Total: %d %s\n", b.Pricing.Total.Amount, b.Pricing.Total.Currency)
	if b.YogaSessionID != "" {
		fmt.Fprintf(&body, "Yoga session: %s (%d seats)\n", b.YogaSessionID, b.YogaSeats)
	}
	if b.Transport.Pickup || b.Transport.Drop {
		fmt.Fprintf(&body, "Transport: pickup=%t drop=%t\n", b.Transport.Pickup, b.Transport.Drop)
	}
	body.WriteString("\nWe look forward to hosting you.\n")
	return Message{
		To:       u.Email,
		ToName:   u.Name,
		Subject:  fmt.Sprintf("Booking %s confirmed", b.ID),
		Body:     body.String(),
		CustomID: "confirmation-" + string(b.ID),
	}
}

func cancellationMessage(b *domainbooking.Booking, u *domainuser.User) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", u.Name)
	fmt.Fprintf(&body, "Your booking %s has been cancelled.\n\n", b.ID)
	writeStay(&body, b)
	if b.CancelReason != "" {
		fmt.Fprintf(&body, "Reason: %s\n", b.CancelReason)
	}
	if b.PaymentStatus == domainbooking.PaymentRefunded {
		fmt.Fprintf(&body, "A refund of %d %s has been issued.\n", b.Pricing.Total.Amount, b.Pricing.Total.Currency)
	}
	return Message{
		To:       u.Email,
		ToName:   u.Name,
		Subject:  fmt.Sprintf("Booking %s cancelled", b.ID),
		Body:     body.String(),
		CustomID: "cancellation-" + string(b.ID),
	}
}

func writeStay(w *strings.Builder, b *domainbooking.Booking) {
	fmt.Fprintf(w, "Room: %s\n", b.RoomID)
	fmt.Fprintf(w, "Check-in: %s\n", b.Range.CheckIn.Format(time.DateOnly))
	fmt.Fprintf(w, "Check-out: %s\n", b.Range.CheckOut.Format(time.DateOnly))
	fmt.Fprintf(w, "Guests: %d\n", b.Guests.Total())
}
