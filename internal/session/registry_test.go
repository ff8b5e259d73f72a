package session

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/threatlens/console-backend/internal/transport"
)

type nopTransport struct{}

func (nopTransport) Send(ctx context.Context, req *transport.SendRequest) error { return nil }

type nopSink struct{}

func (nopSink) Notify(message, key string) {}

type nopOpener struct{}

func (nopOpener) Open(id string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func newTestRegistry(ttl time.Duration) *Registry {
	return NewRegistry(nopTransport{}, nopSink{}, nopOpener{}, ttl)
}

func TestRegistryCreateAndGet(t *testing.T) {
	r := newTestRegistry(time.Minute)

	c := r.Create()
	if c.SessionID() == "" {
		t.Fatal("expected session ID to be assigned")
	}

	got, ok := r.Get(c.SessionID())
	if !ok {
		t.Fatal("expected session to be resolvable")
	}
	if got != c {
		t.Error("expected the same controller instance")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := newTestRegistry(time.Minute)

	if _, ok := r.Get("nope"); ok {
		t.Error("expected unknown session to be absent")
	}
}

func TestRegistryDrop(t *testing.T) {
	r := newTestRegistry(time.Minute)

	c := r.Create()
	r.Drop(c.SessionID())

	if _, ok := r.Get(c.SessionID()); ok {
		t.Error("expected dropped session to be absent")
	}
}

func TestRegistryExpiry(t *testing.T) {
	r := newTestRegistry(50 * time.Millisecond)

	c := r.Create()
	time.Sleep(120 * time.Millisecond)

	if _, ok := r.Get(c.SessionID()); ok {
		t.Error("expected session to expire")
	}
}

func TestRegistryGetRefreshesTTL(t *testing.T) {
	r := newTestRegistry(80 * time.Millisecond)

	c := r.Create()
	// Keep accessing the session past the original deadline.
	for i := 0; i < 3; i++ {
		time.Sleep(50 * time.Millisecond)
		if _, ok := r.Get(c.SessionID()); !ok {
			t.Fatal("expected recently accessed session to survive")
		}
	}
}
