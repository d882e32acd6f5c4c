package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/config"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/model"
)

// EventHandler is called for every decoded lifecycle event.
type EventHandler func(ctx context.Context, e model.Event) error

// Consumer reads lifecycle events from Kafka.
type Consumer struct {
	Client   *wbfkafka.Consumer
	handle   EventHandler
	cfg      *config.Kafka
	strategy retry.Strategy
}

// New creates a new Consumer.
// - cfg: Kafka configuration struct
// - s: retry strategy for fetches and commits
// - h: handler for decoded events
func New(
	cfg *config.Kafka,
	s retry.Strategy,
	h EventHandler,
) *Consumer {
	consumer := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	return &Consumer{
		Client:   consumer,
		handle:   h,
		cfg:      cfg,
		strategy: s,
	}
}

// Decode parses a Kafka message into an Event.
func Decode(msg kafka.Message) (model.Event, error) {
	var e model.Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return model.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}

	return e, nil
}

// LogEvent is an EventHandler that writes each event to the log.
func LogEvent(_ context.Context, e model.Event) error {
	zlog.Logger.Info().
		Str("id", e.ID.String()).
		Str("type", string(e.Type)).
		Str("area", e.Area).
		Str("file", e.Name).
		Int64("size", e.Size).
		Time("occurred_at", e.OccurredAt).
		Msg("file event")

	return nil
}

// Consume fetches events until ctx is canceled, handing each to the handler
// and committing its offset afterwards. Malformed messages are committed and
// skipped.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().
		Str("topic", c.cfg.Topic).
		Str("group", c.cfg.GroupID).
		Msg("starting consumer")

	for {
		if ctx.Err() != nil {
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return
		}

		var msg kafka.Message
		err := retry.Do(func() error {
			var fetchErr error
			msg, fetchErr = c.Client.Fetch(ctx)
			return fetchErr
		}, c.strategy)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			zlog.Logger.Err(err).Msg("failed to fetch message")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		e, err := Decode(msg)
		if err != nil {
			zlog.Logger.Err(err).
				Str("message", string(msg.Value)).
				Msg("skipping malformed event")
		} else if err := c.handle(ctx, e); err != nil {
			zlog.Logger.Err(err).
				Str("file", e.Name).
				Msg("failed to handle event")
			continue
		}

		err = retry.Do(func() error {
			return c.Client.Commit(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to commit message after retries")
		}
	}
}
