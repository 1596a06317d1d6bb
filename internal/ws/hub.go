package ws

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"arenago/internal/services/space"
)

// LayoutProvider is the room-directory contract: it maps a space id to
// its static geometry. Implemented by the space service.
type LayoutProvider interface {
	GetSpaceLayout(ctx context.Context, spaceID string) (*space.Layout, error)
}

// Hub owns the set of live arenas. An arena exists only while occupied:
// it is created on the first successful join (fetching the layout once)
// and evicted when its last occupant leaves. Operations on different
// arenas share no state and run fully concurrently.
type Hub struct {
	dir LayoutProvider

	mu     sync.Mutex
	arenas map[string]*arena
}

func NewHub(dir LayoutProvider) *Hub {
	return &Hub{
		dir:    dir,
		arenas: make(map[string]*arena),
	}
}

// Join admits userID into the space, creating the arena lazily. The
// layout fetch happens outside every lock; if two first-joins race, the
// loser adopts the winner's arena.
func (h *Hub) Join(ctx context.Context, spaceID, userID string, conn *clientConn) (space.Cell, error) {
	for {
		a, err := h.arenaFor(ctx, spaceID)
		if err != nil {
			return space.Cell{}, err
		}

		spawn, err := a.join(userID, conn)
		if errors.Is(err, errArenaClosed) {
			// Raced the last occupant's departure; re-resolve.
			continue
		}
		if err != nil {
			h.retireIfEmpty(a)
			return space.Cell{}, err
		}
		return spawn, nil
	}
}

// Move routes a movement request into the user's arena; all validation
// and fan-out happen under the arena's serialization.
func (h *Hub) Move(spaceID, userID string, target space.Cell) {
	h.mu.Lock()
	a := h.arenas[spaceID]
	h.mu.Unlock()
	if a == nil {
		zap.L().Warn("ws.move_without_arena", zap.String("space_id", spaceID))
		return
	}
	a.move(userID, target)
}

// Leave removes the occupant, broadcasts "user-left" to the remaining
// occupants and evicts the arena once empty. The cached layout dies
// with it; a later join re-fetches.
func (h *Hub) Leave(spaceID, userID string) {
	h.mu.Lock()
	a := h.arenas[spaceID]
	h.mu.Unlock()
	if a == nil {
		return
	}
	if a.leave(userID) {
		h.evict(a)
	}
}

func (h *Hub) arenaFor(ctx context.Context, spaceID string) (*arena, error) {
	h.mu.Lock()
	a := h.arenas[spaceID]
	h.mu.Unlock()
	if a != nil {
		return a, nil
	}

	layout, err := h.dir.GetSpaceLayout(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cur := h.arenas[spaceID]; cur != nil {
		return cur, nil
	}
	a = newArena(spaceID, layout)
	h.arenas[spaceID] = a
	return a, nil
}

// retireIfEmpty drops an arena that never gained an occupant, e.g. a
// first join that failed with ErrSpaceFull.
func (h *Hub) retireIfEmpty(a *arena) {
	a.mu.Lock()
	empty := !a.closed && len(a.occupants) == 0
	if empty {
		a.closed = true
	}
	a.mu.Unlock()
	if empty {
		h.evict(a)
	}
}

func (h *Hub) evict(a *arena) {
	h.mu.Lock()
	if h.arenas[a.spaceID] == a {
		delete(h.arenas, a.spaceID)
	}
	h.mu.Unlock()
}

func (h *Hub) arenaCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.arenas)
}
