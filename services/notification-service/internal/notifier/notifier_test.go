package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aurasync/timehold/services/notification-service/internal/storage"
)

type fakeContacts struct {
	client storage.Contact
	master storage.Contact
}

func (f *fakeContacts) GetMasterContact(context.Context, string) (storage.Contact, error) {
	return f.master, nil
}

func (f *fakeContacts) GetClientContact(context.Context, string) (storage.Contact, error) {
	return f.client, nil
}

type fakeLog struct {
	rows []storage.Notification
}

func (f *fakeLog) Insert(_ context.Context, n storage.Notification) error {
	f.rows = append(f.rows, n)
	return nil
}

type fakeEmail struct {
	sent    []string
	bodies  []string
	sendErr error
}

func (f *fakeEmail) Send(to, _, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, body)
	return nil
}

type fakeTelegram struct {
	chats []string
	texts []string
}

func (f *fakeTelegram) ProviderID() string { return "telegram-test" }

func (f *fakeTelegram) Send(_ context.Context, chatID, text string) error {
	f.chats = append(f.chats, chatID)
	f.texts = append(f.texts, text)
	return nil
}

type fakeEvents struct {
	sent   []string
	failed []string
}

func (f *fakeEvents) Sent(_ context.Context, bookingID, channel, _ string) error {
	f.sent = append(f.sent, bookingID+"/"+channel)
	return nil
}

func (f *fakeEvents) Failed(_ context.Context, bookingID, channel, _ string) error {
	f.failed = append(f.failed, bookingID+"/"+channel)
	return nil
}

type fixture struct {
	contacts *fakeContacts
	log      *fakeLog
	email    *fakeEmail
	telegram *fakeTelegram
	events   *fakeEvents
	notifier *Notifier
}

func newFixture() *fixture {
	f := &fixture{
		contacts: &fakeContacts{
			client: storage.Contact{Name: "Lena", Email: "lena@example.com"},
			master: storage.Contact{Name: "Anna", Email: "anna@studio.example", TelegramChatID: "12345"},
		},
		log:      &fakeLog{},
		email:    &fakeEmail{},
		telegram: &fakeTelegram{},
		events:   &fakeEvents{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.notifier = New(f.contacts, f.log, f.email, f.telegram, f.events, logger)
	return f
}

func payload(t *testing.T, evt BookingEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func baseEvent() BookingEvent {
	return BookingEvent{
		BookingID:       "b1",
		MasterID:        "m1",
		ClientID:        "c1",
		ServiceID:       "s1",
		BookingDate:     time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		ServicePrice:    100,
		HoldAmount:      32,
	}
}

func TestCreatedNotifiesBothParties(t *testing.T) {
	f := newFixture()

	err := f.notifier.Handle(context.Background(), EventBookingCreated, payload(t, baseEvent()))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(f.email.sent) != 2 {
		t.Fatalf("emails sent = %v, want client and master", f.email.sent)
	}
	if len(f.telegram.chats) != 1 || f.telegram.chats[0] != "12345" {
		t.Fatalf("telegram chats = %v, want [12345]", f.telegram.chats)
	}
	if len(f.log.rows) != 3 {
		t.Fatalf("log rows = %d, want 3 (two emails, one telegram)", len(f.log.rows))
	}
	if len(f.events.sent) != 3 || len(f.events.failed) != 0 {
		t.Fatalf("events sent=%v failed=%v", f.events.sent, f.events.failed)
	}
}

func TestNoShowMentionsAmounts(t *testing.T) {
	f := newFixture()

	evt := baseEvent()
	evt.Status = "no-show"
	evt.Extra = map[string]any{
		"master_compensation":  25.6,
		"client_wallet_credit": 6.4,
	}
	if err := f.notifier.Handle(context.Background(), EventBookingNoShow, payload(t, evt)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	joined := strings.Join(f.email.bodies, "\n---\n")
	if !strings.Contains(joined, "32.00") {
		t.Fatalf("no-show bodies missing hold amount:\n%s", joined)
	}
	if !strings.Contains(joined, "6.40") {
		t.Fatalf("client body missing wallet credit:\n%s", joined)
	}
	if len(f.telegram.texts) != 1 || !strings.Contains(f.telegram.texts[0], "25.60") {
		t.Fatalf("telegram alert missing compensation: %v", f.telegram.texts)
	}
}

func TestCompletedNotifiesClientOnly(t *testing.T) {
	f := newFixture()

	if err := f.notifier.Handle(context.Background(), EventBookingCompleted, payload(t, baseEvent())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.email.sent) != 1 || f.email.sent[0] != "lena@example.com" {
		t.Fatalf("emails = %v, want only client", f.email.sent)
	}
	if len(f.telegram.chats) != 0 {
		t.Fatalf("unexpected telegram pushes: %v", f.telegram.chats)
	}
	if !strings.Contains(f.email.bodies[0], "released") {
		t.Fatalf("completion body should mention hold release:\n%s", f.email.bodies[0])
	}
}

func TestSendFailureIsRecordedNotReturned(t *testing.T) {
	f := newFixture()
	f.email.sendErr = errors.New("smtp down")

	if err := f.notifier.Handle(context.Background(), EventBookingCancelled, payload(t, baseEvent())); err != nil {
		t.Fatalf("handle should absorb send failures, got %v", err)
	}
	if len(f.events.failed) == 0 {
		t.Fatal("expected failed delivery events")
	}
	for _, row := range f.log.rows {
		if row.Channel == "email" && row.Status != "failed" {
			t.Fatalf("email log row status = %s, want failed", row.Status)
		}
	}
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	f := newFixture()

	if err := f.notifier.Handle(context.Background(), "booking.rescheduled.v1", payload(t, baseEvent())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.email.sent) != 0 || len(f.log.rows) != 0 {
		t.Fatalf("unknown event should produce nothing, got emails=%v rows=%d", f.email.sent, len(f.log.rows))
	}
}
