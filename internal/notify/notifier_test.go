package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"rewear/internal/types"
)

func newMockNotifier(t *testing.T) (*KafkaNotifier, *mocks.SyncProducer) {
	t.Helper()
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	return NewKafkaNotifier(producer, "rewear.notifications"), producer
}

func TestKafkaNotifier_PublishesEvent(t *testing.T) {
	n, producer := newMockNotifier(t)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != EventOrderPlaced || e.Recipient != "buyer-1" {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	err := n.Notify(context.Background(), Event{
		Type:      EventOrderPlaced,
		Recipient: types.ID("buyer-1"),
		OrderID:   types.ID("order-1"),
		Message:   "order placed",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
}

func TestFire_SwallowsSendFailure(t *testing.T) {
	n, producer := newMockNotifier(t)
	producer.ExpectSendMessageAndFail(errors.New("broker down"))

	// Fire must not panic or propagate the failure.
	Fire(context.Background(), n, Event{Type: EventOrderPlaced, Recipient: "buyer-1"})
}

func TestFire_NilNotifier(t *testing.T) {
	Fire(context.Background(), nil, Event{Type: EventOrderPlaced})
}
