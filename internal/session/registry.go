// Package session tracks the upload session controllers of connected
// consoles.
package session

import (
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/google/uuid"

	"github.com/threatlens/console-backend/internal/ingest"
	"github.com/threatlens/console-backend/internal/notify"
	"github.com/threatlens/console-backend/internal/transport"
)

// DefaultTTL is how long an idle session survives before the registry drops
// it. Lookups refresh the timer.
const DefaultTTL = 30 * time.Minute

// Registry creates and resolves upload session controllers. Sessions expire
// after a period of inactivity; an expired session simply disappears and the
// console creates a new one.
type Registry struct {
	mu        sync.Mutex
	sessions  *ttlworker.Cache[string, *ingest.Controller]
	transport transport.Ingest
	sink      notify.Sink
	opener    ingest.PayloadOpener
}

// NewRegistry creates a registry whose controllers share the given
// collaborators.
func NewRegistry(t transport.Ingest, sink notify.Sink, opener ingest.PayloadOpener, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		sessions:  ttlworker.NewCache[string, *ingest.Controller](ttl),
		transport: t,
		sink:      sink,
		opener:    opener,
	}
}

// Create makes a new session and returns its controller.
func (r *Registry) Create() *ingest.Controller {
	id := uuid.New().String()
	c := ingest.New(id, r.transport, r.sink, r.opener, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.Set(id, c)
	return c
}

// Get resolves a session by ID and restarts its TTL, so the timeout is
// measured from the last access. Expired sessions are gone.
func (r *Registry) Get(id string) (*ingest.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.sessions.Get(id)
	if c == nil {
		return nil, false
	}
	r.sessions.Set(id, c)
	return c, true
}

// Drop removes a session from the registry.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.Delete(id)
}
