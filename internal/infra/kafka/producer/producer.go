package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/config"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/model"
)

// Producer publishes lifecycle events to Kafka.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy applied to every send
func New(
	cfg *config.Kafka,
	s retry.Strategy,
) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	return &Producer{
		Client:   producer,
		cfg:      cfg,
		strategy: s,
	}
}

// Publish serializes the event to JSON and sends it to Kafka.
// The file name is used as the message key so events for one file stay ordered.
func (p *Producer) Publish(ctx context.Context, e model.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err = p.Client.SendWithRetry(ctx, p.strategy, []byte(e.Name), data); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}

	return nil
}
