package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aurasync/timehold/services/notification-service/internal/storage"
	"github.com/aurasync/timehold/services/notification-service/internal/telegram"
)

const (
	EventBookingCreated   = "booking.created.v1"
	EventBookingCompleted = "booking.completed.v1"
	EventBookingNoShow    = "booking.no_show.v1"
	EventBookingCancelled = "booking.cancelled.v1"
)

// BookingEvent is the payload the booking service publishes per lifecycle
// transition. Split amounts ride in Extra on no-show events.
type BookingEvent struct {
	BookingID       string         `json:"booking_id"`
	MasterID        string         `json:"master_id"`
	ClientID        string         `json:"client_id"`
	ServiceID       string         `json:"service_id"`
	BookingDate     time.Time      `json:"booking_date"`
	DurationMinutes int            `json:"duration_minutes"`
	ServicePrice    float64        `json:"service_price"`
	HoldAmount      float64        `json:"hold_amount"`
	Status          string         `json:"status"`
	Extra           map[string]any `json:"extra"`
}

type Contacts interface {
	GetMasterContact(ctx context.Context, masterID string) (storage.Contact, error)
	GetClientContact(ctx context.Context, clientID string) (storage.Contact, error)
}

type Log interface {
	Insert(ctx context.Context, n storage.Notification) error
}

// EmailSender matches email.Sender; redeclared here so the notifier has no
// transport imports.
type EmailSender interface {
	Send(to string, subject string, body string) error
}

// Events records delivery outcomes for downstream consumers.
type Events interface {
	Sent(ctx context.Context, bookingID, channel, providerID string) error
	Failed(ctx context.Context, bookingID, channel, reason string) error
}

// Notifier fans a booking lifecycle event out to the client and the master.
// Delivery is best-effort: a failed send is logged and recorded, never
// returned, so one dead mailbox cannot stall the topic.
type Notifier struct {
	contacts Contacts
	log      Log
	email    EmailSender
	telegram telegram.Sender
	events   Events
	logger   *slog.Logger
}

func New(contacts Contacts, log Log, email EmailSender, tg telegram.Sender, events Events, logger *slog.Logger) *Notifier {
	return &Notifier{
		contacts: contacts,
		log:      log,
		email:    email,
		telegram: tg,
		events:   events,
		logger:   logger,
	}
}

// Handle processes one lifecycle event. It returns an error only when the
// notification log cannot be written; send failures are absorbed.
func (n *Notifier) Handle(ctx context.Context, eventType string, payload []byte) error {
	var evt BookingEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		n.logger.Error("invalid booking event payload", "err", err, "event_type", eventType)
		return nil
	}
	if evt.BookingID == "" {
		n.logger.Error("booking event missing booking_id", "event_type", eventType)
		return nil
	}

	client, err := n.contacts.GetClientContact(ctx, evt.ClientID)
	if err != nil {
		n.logger.Error("client contact lookup failed", "err", err, "client_id", evt.ClientID)
		client = storage.Contact{}
	}
	master, err := n.contacts.GetMasterContact(ctx, evt.MasterID)
	if err != nil {
		n.logger.Error("master contact lookup failed", "err", err, "master_id", evt.MasterID)
		master = storage.Contact{}
	}

	clientMsg, masterMsg := composeMessages(eventType, evt, client, master)

	if clientMsg != nil && client.Email != "" {
		if err := n.deliverEmail(ctx, evt, "client", client.Email, clientMsg); err != nil {
			return err
		}
	}
	if masterMsg != nil {
		if master.Email != "" {
			if err := n.deliverEmail(ctx, evt, "master", master.Email, masterMsg); err != nil {
				return err
			}
		}
		if master.TelegramChatID != "" {
			if err := n.deliverTelegram(ctx, evt, master.TelegramChatID, masterMsg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *Notifier) deliverEmail(ctx context.Context, evt BookingEvent, audience, recipient string, msg *message) error {
	status := "sent"
	if err := n.email.Send(recipient, msg.Subject, msg.Body); err != nil {
		status = "failed"
		n.logger.Error("email send failed", "err", err, "recipient", recipient, "booking_id", evt.BookingID)
		n.recordOutcome(ctx, evt.BookingID, "email", "", err.Error())
	} else {
		n.recordOutcome(ctx, evt.BookingID, "email", "smtp", "")
	}
	return n.log.Insert(ctx, storage.Notification{
		BookingID: evt.BookingID,
		MasterID:  evt.MasterID,
		ClientID:  evt.ClientID,
		Channel:   "email",
		Recipient: recipient,
		Payload:   map[string]any{"audience": audience, "subject": msg.Subject},
		Status:    status,
	})
}

func (n *Notifier) deliverTelegram(ctx context.Context, evt BookingEvent, chatID string, msg *message) error {
	status := "sent"
	if err := n.telegram.Send(ctx, chatID, msg.Subject+"\n"+msg.Body); err != nil {
		status = "failed"
		n.logger.Error("telegram send failed", "err", err, "chat_id", chatID, "booking_id", evt.BookingID)
		n.recordOutcome(ctx, evt.BookingID, "telegram", "", err.Error())
	} else {
		n.recordOutcome(ctx, evt.BookingID, "telegram", n.telegram.ProviderID(), "")
	}
	return n.log.Insert(ctx, storage.Notification{
		BookingID: evt.BookingID,
		MasterID:  evt.MasterID,
		ClientID:  evt.ClientID,
		Channel:   "telegram",
		Recipient: chatID,
		Payload:   map[string]any{"audience": "master", "subject": msg.Subject},
		Status:    status,
	})
}

func (n *Notifier) recordOutcome(ctx context.Context, bookingID, channel, providerID, failReason string) {
	if n.events == nil {
		return
	}
	var err error
	if failReason != "" {
		err = n.events.Failed(ctx, bookingID, channel, failReason)
	} else {
		err = n.events.Sent(ctx, bookingID, channel, providerID)
	}
	if err != nil {
		n.logger.Error("failed to record delivery outcome", "err", err, "booking_id", bookingID, "channel", channel)
	}
}
