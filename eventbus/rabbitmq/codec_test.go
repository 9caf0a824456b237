package rabbitmq

import (
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

type refundIssued struct {
	WalletID  string `json:"walletId"`
	ExpenseID string `json:"expenseId"`
}

func (e *refundIssued) AggregateID() string { return e.WalletID }
func (e *refundIssued) EventType() string   { return "rabbitmq-test.RefundIssued" }

func init() {
	cqrs.RegisterEventByType(func() cqrs.Event { return &refundIssued{} })
}

func TestPublishingRoundTripsThroughDelivery(t *testing.T) {
	env := &cqrs.Envelope{
		EventID:       uuid.New(),
		StreamID:      "wallet-7",
		Event:         &refundIssued{WalletID: "7", ExpenseID: "e-1"},
		Metadata:      map[string]any{cqrs.MetadataCorrelationID: "r-1"},
		Version:       4,
		GlobalVersion: 19,
		OccurredAt:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	msg, err := toPublishing(env)
	if err != nil {
		t.Fatalf("toPublishing: %v", err)
	}
	if msg.Type != "rabbitmq-test.RefundIssued" || msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected publishing: type=%q mode=%d", msg.Type, msg.DeliveryMode)
	}

	got, err := fromDelivery(amqp.Delivery{
		Headers:   msg.Headers,
		MessageId: msg.MessageId,
		Type:      msg.Type,
		Timestamp: msg.Timestamp,
		Body:      msg.Body,
	})
	if err != nil {
		t.Fatalf("fromDelivery: %v", err)
	}

	ev, ok := got.Event.(*refundIssued)
	if !ok || ev.ExpenseID != "e-1" {
		t.Fatalf("event = %#v", got.Event)
	}
	if got.EventID != env.EventID || got.StreamID != "wallet-7" || got.Version != 4 || got.GlobalVersion != 19 {
		t.Fatalf("envelope = %+v", got)
	}
	if got.Metadata[cqrs.MetadataCorrelationID] != "r-1" {
		t.Fatalf("metadata = %v", got.Metadata)
	}
	if !got.OccurredAt.Equal(env.OccurredAt) {
		t.Fatalf("occurredAt = %v", got.OccurredAt)
	}
}

func TestFromDeliveryRejectsUnknownType(t *testing.T) {
	_, err := fromDelivery(amqp.Delivery{Type: "nope", MessageId: uuid.NewString(), Body: []byte(`{}`)})
	if err == nil {
		t.Fatal("expected error for unregistered event type")
	}
}

func TestOptionsPanicOnForeignConfig(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	WithRoutingKeys([]string{"x"})(&struct{}{})
}
