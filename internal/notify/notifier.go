// README: Lifecycle event notifications. Delivery of notifications is an
// external concern; the core fires events and never fails a business
// transaction over them.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"

	"rewear/internal/types"
)

// Event kinds emitted by the lifecycle managers.
const (
	EventOrderPlaced         = "order.placed"
	EventOrderConfirmed      = "order.confirmed"
	EventOrderCancelled      = "order.cancelled"
	EventDeliveryAssigned    = "delivery.assigned"
	EventDeliveryPickedUp    = "delivery.picked_up"
	EventDeliveryDelivered   = "delivery.delivered"
	EventDeliveryCancelled   = "delivery.cancelled"
	EventDonationAccepted    = "donation.accepted"
	EventDonationUnavailable = "donation.unavailable"
	EventDonationDistributed = "donation.distributed"
)

type Event struct {
	Type       string    `json:"type"`
	Recipient  types.ID  `json:"recipient"`
	OrderID    types.ID  `json:"order_id,omitempty"`
	DeliveryID types.ID  `json:"delivery_id,omitempty"`
	ItemID     types.ID  `json:"item_id,omitempty"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Fire sends an event and swallows the error; lifecycle code calls this for
// single notifications where a send failure must not affect the transaction.
func Fire(ctx context.Context, n Notifier, e Event) {
	if n == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if err := n.Notify(ctx, e); err != nil {
		log.Printf("notify %s to %s: %v", e.Type, e.Recipient, err)
	}
}

// KafkaNotifier publishes events to a Kafka topic.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (k *KafkaNotifier) Notify(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(e.Recipient),
		Value: sarama.ByteEncoder(data),
	})
	return err
}

// LogNotifier writes events to the process log; used when no brokers are
// configured (local development).
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, e Event) error {
	log.Printf("notify [%s] -> %s: %s", e.Type, e.Recipient, e.Message)
	return nil
}
