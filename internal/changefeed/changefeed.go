// Package changefeed publishes document mutations and lets callers listen to them per collection.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"clinicdocs/internal/config"
	"clinicdocs/internal/model"
	"clinicdocs/pkg/logging"
)

// ChangeType names the mutation that produced a Change.
type ChangeType string

const (
	ChangeSet    ChangeType = "set"
	ChangePatch  ChangeType = "patch"
	ChangeDelete ChangeType = "delete"
)

// Change describes one applied mutation. Data carries the document payload after the
// mutation and is empty for deletes.
type Change struct {
	Type       ChangeType   `json:"type"`
	Collection string       `json:"collection"`
	ID         string       `json:"id"`
	Data       model.Fields `json:"data,omitempty"`
	At         time.Time    `json:"at"`
}

// Feed fans document changes out to listeners.
type Feed interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe returns a channel of changes for one collection. The channel is closed
	// once ctx is done.
	Subscribe(ctx context.Context, collection string) (<-chan Change, error)
}

const subscriberBuffer = 16

// RedisFeed implements Feed on Redis pub/sub, one channel per collection.
type RedisFeed struct {
	client *redis.Client
	prefix string
	logger *logging.Logger
}

var _ Feed = (*RedisFeed)(nil)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisFeed creates a feed publishing on "<prefix>:<collection>" channels.
func NewRedisFeed(client *redis.Client, prefix string, logger *logging.Logger) *RedisFeed {
	if prefix == "" {
		prefix = "clinicdocs"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisFeed{client: client, prefix: prefix, logger: logger.With("component", "changefeed")}
}

func (f *RedisFeed) channel(collection string) string {
	return f.prefix + ":" + collection
}

// Publish sends c to the collection's channel.
func (f *RedisFeed) Publish(ctx context.Context, c Change) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("changefeed: marshal change: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel(c.Collection), b).Err(); err != nil {
		return fmt.Errorf("changefeed: publish: %w", err)
	}
	return nil
}

// Subscribe listens on the collection's channel until ctx is done.
func (f *RedisFeed) Subscribe(ctx context.Context, collection string) (<-chan Change, error) {
	ps := f.client.Subscribe(ctx, f.channel(collection))
	// Wait for the subscription confirmation so no publish after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("changefeed: subscribe %s: %w", collection, err)
	}

	msgs := ps.Channel()
	out := make(chan Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				dec := json.NewDecoder(strings.NewReader(msg.Payload))
				dec.UseNumber()
				if err := dec.Decode(&c); err != nil {
					f.logger.Warn("changefeed_decode_failed", "channel", msg.Channel, "error", err.Error())
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
