// Package authstate fans sign-in and sign-out transitions out to registered
// listeners. It mirrors the mobile client's auth-state subscription: a
// listener receives the identity on sign-in and nil on sign-out, and owns its
// subscription lifecycle via the returned unsubscribe function.
package authstate

import (
	"sync"
)

// Identity is the authenticated actor as reported by the identity provider.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

type Listener func(*Identity)

type Broker struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func NewBroker() *Broker {
	return &Broker{listeners: make(map[int]Listener)}
}

// Subscribe registers fn and returns its unsubscribe function. Unsubscribing
// twice is harmless.
func (b *Broker) Subscribe(fn Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Publish delivers a transition to every listener. A nil identity means the
// session ended. Listeners run on the caller's goroutine, so they must not
// block.
func (b *Broker) Publish(identity *Identity) {
	b.mu.Lock()
	fns := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}
