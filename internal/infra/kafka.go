// README: Kafka sync producer initialization for the notification sink.
package infra

import (
	"time"

	"github.com/IBM/sarama"
)

func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 5 * time.Second
	return sarama.NewSyncProducer(brokers, cfg)
}
