// Package pubsub provides typed, synchronous fan-out with explicit unsubscribe handles.
package pubsub

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub delivers published values to every current subscriber, in subscription order.
type Hub[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber[T]
	name   string
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// NewHub creates a hub; name is only used in logs.
func NewHub[T any](name string) *Hub[T] {
	return &Hub[T]{name: name}
}

// Subscribe registers fn and returns a func that removes it. Calling the returned
// func more than once is safe.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscriber[T]{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, s := range h.subs {
				if s.id == id {
					h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish calls every subscriber with v. A panicking subscriber is logged and skipped
// so one bad consumer cannot take down the event loop.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	targets := make([]subscriber[T], len(h.subs))
	copy(targets, h.subs)
	h.mu.RUnlock()

	for _, s := range targets {
		h.deliver(s, v)
	}
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub[T]) deliver(s subscriber[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("hub", h.name).
				Interface("panic", r).
				Msg("subscriber panicked")
		}
	}()
	s.fn(v)
}
