// Package realtime fans out "something changed" notifications to in-process
// subscribers. Notifications carry no diff; consumers re-read what they need.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bar_backoffice/pkg/utils"

	"github.com/google/uuid"
)

// Entity names a watched collection.
type Entity string

const (
	EntityAll            Entity = "" // subscribe to / signal every entity
	EntityTables         Entity = "tables"
	EntityOrderLines     Entity = "order_lines"
	EntityProducts       Entity = "products"
	EntityEstablishments Entity = "establishments"
	EntitySettlements    Entity = "settlements"
)

// Change says that rows of Entity changed for an establishment. An
// EstablishmentID of 0 means every tenant must resynchronise.
type Change struct {
	Entity          Entity    `json:"entity"`
	EstablishmentID int64     `json:"establishment_id"`
	Operation       string    `json:"operation,omitempty"`
	At              time.Time `json:"at"`
}

// Concerns reports whether the change may affect the given establishment.
func (c Change) Concerns(establishmentID int64) bool {
	return c.EstablishmentID == 0 || c.EstablishmentID == establishmentID
}

// ParseNotification decodes the JSON payload sent by the database triggers.
func ParseNotification(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("invalid change notification %q: %w", payload, err)
	}
	if c.At.IsZero() {
		c.At = time.Now()
	}
	return c, nil
}

// Handle identifies a subscription.
type Handle string

type subscription struct {
	entity Entity
	fn     func(Change)
}

// Hub is a concurrency-safe subscriber registry.
type Hub struct {
	mu   sync.RWMutex
	subs map[Handle]subscription
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[Handle]subscription)}
}

// Subscribe registers fn for changes of entity (EntityAll for everything).
// fn runs on the publisher's goroutine and must not block.
func (h *Hub) Subscribe(entity Entity, fn func(Change)) Handle {
	handle := Handle(uuid.NewString())
	h.mu.Lock()
	h.subs[handle] = subscription{entity: entity, fn: fn}
	h.mu.Unlock()
	return handle
}

// Unsubscribe removes a subscription; it reports whether the handle was known.
func (h *Hub) Unsubscribe(handle Handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[handle]; !ok {
		return false
	}
	delete(h.subs, handle)
	return true
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers c to every matching subscriber.
func (h *Hub) Publish(c Change) {
	h.mu.RLock()
	targets := make([]func(Change), 0, len(h.subs))
	for _, s := range h.subs {
		if s.entity == EntityAll || c.Entity == EntityAll || s.entity == c.Entity {
			targets = append(targets, s.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		deliver(fn, c)
	}
}

func deliver(fn func(Change), c Change) {
	defer func() {
		if r := recover(); r != nil {
			utils.LogWarn("Realtime subscriber panicked", map[string]interface{}{"entity": string(c.Entity), "panic": fmt.Sprint(r)})
		}
	}()
	fn(c)
}
