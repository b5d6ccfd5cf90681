// Package events is the named-channel publish/subscribe layer the store emits
// mutations on. Channels are named "<collection>:<ownerKey>" so a subscriber
// only ever sees its own owner's changes.
package events

import (
	"strings"
	"sync"

	"transitbook/internal/domain"
)

// Kind tags the mutation an Event describes.
type Kind string

const (
	Insert Kind = "INSERT"
	Update Kind = "UPDATE"
	Delete Kind = "DELETE"
)

const (
	CollectionBookings     = "bookings"
	CollectionActivities   = "activities"
	CollectionTransactions = "transactions"
	CollectionProfile      = "profile"
)

// Collections lists every collection that has an owner channel.
var Collections = []string{
	CollectionBookings,
	CollectionActivities,
	CollectionTransactions,
	CollectionProfile,
}

// Event is the tagged payload delivered to subscribers.
type Event struct {
	Kind   Kind `json:"kind"`
	Entity any  `json:"entity"`
}

type Handler func(Event)

// Channel returns the owner-scoped channel name for a collection.
func Channel(collection string, owner domain.OwnerKey) string {
	return collection + ":" + string(owner)
}

// SplitChannel is the inverse of Channel. ok is false when name has no separator.
func SplitChannel(name string) (collection string, owner domain.OwnerKey, ok bool) {
	c, o, found := strings.Cut(name, ":")
	if !found {
		return name, "", false
	}
	return c, domain.OwnerKey(o), true
}

// IsCollection reports whether name is one of the known collections.
func IsCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Bus is implemented by LocalBus and RedisBus.
type Bus interface {
	// Subscribe registers h on channel from now on. Unknown channels are created.
	Subscribe(channel string, h Handler) *Subscription
	// Unsubscribe removes the registration with id; unknown ids are ignored.
	Unsubscribe(channel string, id uint64)
	// Emit delivers ev to every handler on channel. A failing handler never
	// stops delivery to the rest.
	Emit(channel string, ev Event)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	ID      uint64
	Channel string

	bus  Bus
	once sync.Once
}

// Unsubscribe removes exactly this registration. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() { s.bus.Unsubscribe(s.Channel, s.ID) })
}
