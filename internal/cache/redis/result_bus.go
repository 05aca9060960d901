package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// resultsChannel is the Pub/Sub channel terminal execution results are
// published on.
const resultsChannel = "executions"

// ResultBus implements domain.ResultBus using Redis Pub/Sub. The dashboard
// and alerting collaborators subscribe to the executions channel; the
// pipeline only publishes.
type ResultBus struct {
	rdb *redis.Client
}

// NewResultBus creates a ResultBus backed by the given Client.
func NewResultBus(c *Client) *ResultBus {
	return &ResultBus{rdb: c.rdb}
}

// PublishResult sends one execution result as JSON to the executions
// channel.
func (b *ResultBus) PublishResult(ctx context.Context, res domain.ExecutionResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: marshal result %s: %w", res.TradeID, err)
	}
	if err := b.rdb.Publish(ctx, resultsChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish result %s: %w", res.TradeID, err)
	}
	return nil
}

// SubscribeResults creates a subscription to the executions channel and
// returns a read-only channel of decoded results. The subscription is closed
// when the context is cancelled; the returned channel is closed at that
// point as well.
func (b *ResultBus) SubscribeResults(ctx context.Context) (<-chan domain.ExecutionResult, error) {
	pubsub := b.rdb.Subscribe(ctx, resultsChannel)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", resultsChannel, err)
	}

	out := make(chan domain.ExecutionResult, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var res domain.ExecutionResult
				if err := json.Unmarshal([]byte(msg.Payload), &res); err != nil {
					continue
				}
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
