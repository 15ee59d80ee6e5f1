package notifier

import (
	"fmt"
	"time"

	"github.com/aurasync/timehold/services/notification-service/internal/storage"
)

type message struct {
	Subject string
	Body    string
}

func extraAmount(extra map[string]any, key string) (float64, bool) {
	v, ok := extra[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func formatDate(t time.Time) string {
	return t.UTC().Format("Mon, 2 Jan 2006 15:04 MST")
}

// composeMessages builds the per-audience texts for one lifecycle event.
// A nil message means that audience is not notified for this event type.
func composeMessages(eventType string, evt BookingEvent, client, master storage.Contact) (clientMsg, masterMsg *message) {
	when := formatDate(evt.BookingDate)

	switch eventType {
	case EventBookingCreated:
		clientMsg = &message{
			Subject: "Your booking is confirmed",
			Body: fmt.Sprintf(
				"Hi %s,\n\nYour appointment with %s on %s is confirmed.\nPrice: EUR %.2f. Deposit hold: EUR %.2f.\n\nYou can cancel free of charge up to 24 hours before the appointment.",
				client.Name, master.Name, when, evt.ServicePrice, evt.HoldAmount,
			),
		}
		masterMsg = &message{
			Subject: "New booking",
			Body: fmt.Sprintf(
				"%s booked an appointment on %s (%d min, EUR %.2f). Deposit hold: EUR %.2f.",
				client.Name, when, evt.DurationMinutes, evt.ServicePrice, evt.HoldAmount,
			),
		}

	case EventBookingCompleted:
		body := fmt.Sprintf("Hi %s,\n\nThanks for visiting %s on %s.", client.Name, master.Name, when)
		if evt.HoldAmount > 0 {
			body += fmt.Sprintf("\nYour deposit hold of EUR %.2f has been released.", evt.HoldAmount)
		}
		clientMsg = &message{Subject: "Thanks for your visit", Body: body}

	case EventBookingNoShow:
		body := fmt.Sprintf(
			"Hi %s,\n\nYou missed your appointment with %s on %s, so the deposit hold of EUR %.2f was charged.",
			client.Name, master.Name, when, evt.HoldAmount,
		)
		if credit, ok := extraAmount(evt.Extra, "client_wallet_credit"); ok && credit > 0 {
			body += fmt.Sprintf("\nEUR %.2f of it was credited to your wallet for future bookings.", credit)
		}
		clientMsg = &message{Subject: "Missed appointment", Body: body}

		masterBody := fmt.Sprintf("%s did not show up on %s.", client.Name, when)
		if comp, ok := extraAmount(evt.Extra, "master_compensation"); ok && comp > 0 {
			masterBody += fmt.Sprintf(" You receive EUR %.2f compensation from the deposit.", comp)
		}
		masterMsg = &message{Subject: "No-show recorded", Body: masterBody}

	case EventBookingCancelled:
		clientMsg = &message{
			Subject: "Booking cancelled",
			Body: fmt.Sprintf(
				"Hi %s,\n\nYour appointment with %s on %s has been cancelled. Any deposit hold has been released.",
				client.Name, master.Name, when,
			),
		}
		masterMsg = &message{
			Subject: "Booking cancelled",
			Body:    fmt.Sprintf("%s cancelled the appointment on %s.", client.Name, when),
		}
	}
	return clientMsg, masterMsg
}
