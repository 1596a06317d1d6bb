package ws

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"arenago/internal/services/auth"
	"arenago/internal/services/space"
)

// gridLayout builds a w×h layout with the given blocked cells.
func gridLayout(w, h int, blocked ...space.Cell) *space.Layout {
	l := &space.Layout{Width: w, Height: h, Blocked: make(map[space.Cell]struct{})}
	for _, c := range blocked {
		l.Blocked[c] = struct{}{}
	}
	return l
}

// newTestConn returns a connection without a socket; events pile up in
// the outbound queue where tests can inspect them.
func newTestConn() *clientConn {
	return newClientConn(nil)
}

// nextEvent pops the next queued event and asserts its type. Arena and
// hub operations are synchronous, so the event must already be queued.
func nextEvent(t *testing.T, c *clientConn, wantType string) outEnvelope {
	t.Helper()
	select {
	case env := <-c.send:
		require.Equal(t, wantType, env.Type)
		return env
	default:
		t.Fatalf("expected a %q event, queue is empty", wantType)
		return outEnvelope{}
	}
}

func requireNoEvent(t *testing.T, c *clientConn) {
	t.Helper()
	select {
	case env := <-c.send:
		t.Fatalf("unexpected %q event queued", env.Type)
	default:
	}
}

// fakeDirectory is an in-memory room directory that counts lookups.
type fakeDirectory struct {
	mu      sync.Mutex
	layouts map[string]*space.Layout
	calls   int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{layouts: make(map[string]*space.Layout)}
}

func (d *fakeDirectory) GetSpaceLayout(_ context.Context, spaceID string) (*space.Layout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	l, ok := d.layouts[spaceID]
	if !ok {
		return nil, space.ErrSpaceNotFound
	}
	// Copy: callers must never share blocked sets across room lifetimes.
	cp := &space.Layout{Width: l.Width, Height: l.Height, Blocked: make(map[space.Cell]struct{}, len(l.Blocked))}
	for c := range l.Blocked {
		cp.Blocked[c] = struct{}{}
	}
	return cp, nil
}

func (d *fakeDirectory) lookups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// fakeVerifier accepts tokens of the form "valid-<userID>".
type fakeVerifier struct{}

func (fakeVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if userID, ok := strings.CutPrefix(token, "valid-"); ok && userID != "" {
		return &auth.Claims{UserID: userID, Role: auth.RoleUser}, nil
	}
	return nil, auth.ErrInvalidToken
}
