package events

import (
	"fmt"
	"sync"

	"transitbook/internal/domain"
	"transitbook/internal/utils"

	"go.uber.org/zap"
)

type registration struct {
	id uint64
	h  Handler
}

// LocalBus delivers synchronously, in subscription order, on the emitter's
// goroutine.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[string][]registration
	nextID uint64
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: map[string][]registration{}}
}

func (b *LocalBus) Subscribe(channel string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[channel] = append(b.subs[channel], registration{id: id, h: h})
	return &Subscription{ID: id, Channel: channel, bus: b}
}

func (b *LocalBus) Unsubscribe(channel string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.subs[channel]
	for i, r := range regs {
		if r.id != id {
			continue
		}
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, channel)
		} else {
			b.subs[channel] = next
		}
		return
	}
}

// Emit snapshots the handler list before delivering, so handlers may
// subscribe or unsubscribe while being called.
func (b *LocalBus) Emit(channel string, ev Event) {
	b.mu.RLock()
	regs := b.subs[channel]
	b.mu.RUnlock()

	countEmitted(channel, ev.Kind)
	for _, r := range regs {
		deliver(channel, r.h, ev)
	}
}

// HandlerCount reports how many handlers are registered on channel.
func (b *LocalBus) HandlerCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

func deliver(channel string, h Handler, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			countFailure(channel)
			herr := domain.HandlerError{Channel: channel, Cause: rec}
			utils.Logger().Error("event handler failed",
				zap.String("channel", channel),
				zap.String("kind", string(ev.Kind)),
				zap.String("cause", fmt.Sprint(rec)),
				zap.Error(herr),
			)
		}
	}()
	h(ev)
}
