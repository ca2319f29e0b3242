package middleware

import (
	"sync"
	"time"

	"chatlinkAPI/internal/authstate"
)

// SessionTracker turns per-request token verifications into sign-in and
// sign-out transitions on the auth-state broker. A UID not seen for the
// idle window is treated as signed out.
type SessionTracker struct {
	broker *authstate.Broker
	idle   time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewSessionTracker(broker *authstate.Broker, idle time.Duration) *SessionTracker {
	return &SessionTracker{
		broker:   broker,
		idle:     idle,
		lastSeen: make(map[string]time.Time),
	}
}

func (t *SessionTracker) Observe(uid, email string) {
	t.mu.Lock()
	_, known := t.lastSeen[uid]
	t.lastSeen[uid] = time.Now()
	t.mu.Unlock()

	if !known {
		t.broker.Publish(&authstate.Identity{UID: uid, Email: email})
	}
}

// CleanupSessions expires idle sessions and publishes their sign-out.
// Run it from main with `go tracker.CleanupSessions()`.
func (t *SessionTracker) CleanupSessions() {
	for {
		time.Sleep(time.Minute)

		var expired []string
		t.mu.Lock()
		for uid, seen := range t.lastSeen {
			if time.Since(seen) > t.idle {
				delete(t.lastSeen, uid)
				expired = append(expired, uid)
			}
		}
		t.mu.Unlock()

		for range expired {
			t.broker.Publish(nil)
		}
	}
}
