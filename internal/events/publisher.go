package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultChannelPrefix is the Redis channel prefix; the event category is
// appended, e.g. "parallax:events:payout".
const DefaultChannelPrefix = "parallax:events"

// Record is a committed event as seen by off-chain listeners.
type Record struct {
	Height     int64             `json:"height"`
	TxIndex    int               `json:"txIndex"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func NewRecord(height int64, txIndex int, ev Event) Record {
	attrs := ev.Attributes()
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return Record{Height: height, TxIndex: txIndex, Type: ev.Type(), Attributes: m}
}

// Publisher forwards committed records. Implementations must not block block
// execution for long; failures are reported, never retried.
type Publisher interface {
	Publish(ctx context.Context, recs []Record) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []Record) error { return nil }
func (NopPublisher) Close() error                           { return nil }

type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) (*RedisPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix}, nil
}

// Channel returns the channel a record of the given type is published on.
func (p *RedisPublisher) Channel(typ string) string {
	return fmt.Sprintf("%s:%s", p.prefix, Category(typ))
}

func (p *RedisPublisher) Publish(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()
	for _, r := range recs {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode %s record: %w", r.Type, err)
		}
		pipe.Publish(ctx, p.Channel(r.Type), b)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %d records: %w", len(recs), err)
	}
	log.WithField("count", len(recs)).Debug("published ledger events")
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
