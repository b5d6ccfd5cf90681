package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"transitbook/internal/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// envelope is the wire form of an Event on a Redis channel.
type envelope struct {
	Kind   Kind            `json:"kind"`
	Entity json.RawMessage `json:"entity"`
}

// RedisBus fans events out through Redis pub/sub so several API processes
// share one set of owner channels. Delivery is asynchronous: handlers run on
// a per-subscription receive goroutine and get the entity as json.RawMessage.
type RedisBus struct {
	client *redis.Client
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[uint64]*redis.PubSub
	nextID uint64
	wg     sync.WaitGroup
}

// NewRedisBus pings addr and returns a bus bound to it.
func NewRedisBus(ctx context.Context, addr, password string, db int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisBusWithClient(client), nil
}

func NewRedisBusWithClient(client *redis.Client) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisBus{
		client: client,
		ctx:    ctx,
		cancel: cancel,
		subs:   map[uint64]*redis.PubSub{},
	}
}

// Subscribe returns once Redis has confirmed the subscription, so every
// event published afterwards reaches h.
func (b *RedisBus) Subscribe(channel string, h Handler) *Subscription {
	ps := b.client.Subscribe(b.ctx, channel)
	if _, err := ps.Receive(b.ctx); err != nil {
		// the receive loop below reconnects and resubscribes
		utils.Logger().Warn("redis subscribe not confirmed", zap.String("channel", channel), zap.Error(err))
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = ps
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ps.Channel() {
			ev, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				utils.Logger().Warn("dropping malformed event",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			deliver(msg.Channel, h, ev)
		}
	}()

	return &Subscription{ID: id, Channel: channel, bus: b}
}

func (b *RedisBus) Unsubscribe(channel string, id uint64) {
	b.mu.Lock()
	ps, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	if err := ps.Close(); err != nil {
		utils.Logger().Warn("redis unsubscribe", zap.String("channel", channel), zap.Error(err))
	}
}

func (b *RedisBus) Emit(channel string, ev Event) {
	data, err := encodeEnvelope(ev)
	if err != nil {
		utils.Logger().Error("encode event", zap.String("channel", channel), zap.Error(err))
		return
	}
	countEmitted(channel, ev.Kind)
	if err := b.client.Publish(b.ctx, channel, data).Err(); err != nil {
		utils.Logger().Error("publish event", zap.String("channel", channel), zap.Error(err))
	}
}

// Close drops every subscription and waits for receive loops to exit.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = map[uint64]*redis.PubSub{}
	b.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

func encodeEnvelope(ev Event) ([]byte, error) {
	entity, err := json.Marshal(ev.Entity)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: ev.Kind, Entity: entity})
}

func decodeEnvelope(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, err
	}
	switch env.Kind {
	case Insert, Update, Delete:
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", env.Kind)
	}
	return Event{Kind: env.Kind, Entity: env.Entity}, nil
}
