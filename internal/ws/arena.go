package ws

import (
	"sync"

	"arenago/internal/services/space"
)

// occupant is a joined user inside an arena: which connection it rides
// on and its authoritative position.
type occupant struct {
	conn *clientConn
	pos  space.Cell
}

// arena is the live state of one occupied space. All mutation and every
// broadcast snapshot happen under mu, one operation at a time, which is
// what keeps two concurrent joins off the same spawn cell and keeps a
// broadcast from racing a departure. Events are enqueued (channel send,
// never network I/O) while mu is held, so holding it is bounded by the
// cost of one join/move/leave.
type arena struct {
	spaceID string
	layout  *space.Layout // immutable for the arena's lifetime

	mu        sync.Mutex
	closed    bool
	occupants map[string]*occupant // userID -> occupant
}

func newArena(spaceID string, layout *space.Layout) *arena {
	return &arena{
		spaceID:   spaceID,
		layout:    layout,
		occupants: make(map[string]*occupant),
	}
}

// join admits a user, assigns the spawn cell and emits the ack to the
// joiner plus "user-joined" to everyone already present.
func (a *arena) join(userID string, conn *clientConn) (space.Cell, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return space.Cell{}, errArenaClosed
	}
	if _, dup := a.occupants[userID]; dup {
		return space.Cell{}, ErrAlreadyJoined
	}

	spawn, ok := a.findSpawn()
	if !ok {
		return space.Cell{}, ErrSpaceFull
	}

	// Snapshot the peers as they stood before this join.
	others := make([]UserPosition, 0, len(a.occupants))
	for id, o := range a.occupants {
		others = append(others, UserPosition{UserID: id, X: o.pos.X, Y: o.pos.Y})
	}

	a.occupants[userID] = &occupant{conn: conn, pos: spawn}

	conn.enqueue(outEnvelope{Type: EvtSpaceJoined, Payload: SpaceJoinedPayload{
		Spawn: SpawnPoint{X: spawn.X, Y: spawn.Y},
		Users: others,
	}})
	joined := outEnvelope{Type: EvtUserJoined, Payload: UserPosition{
		UserID: userID, X: spawn.X, Y: spawn.Y,
	}}
	for id, o := range a.occupants {
		if id == userID {
			continue
		}
		o.conn.enqueue(joined)
	}
	return spawn, nil
}

// findSpawn returns the first cell in row-major scan order that is
// neither blocked nor occupied.
func (a *arena) findSpawn() (space.Cell, bool) {
	taken := make(map[space.Cell]struct{}, len(a.occupants))
	for _, o := range a.occupants {
		taken[o.pos] = struct{}{}
	}
	for y := 0; y < a.layout.Height; y++ {
		for x := 0; x < a.layout.Width; x++ {
			c := space.Cell{X: x, Y: y}
			if a.layout.IsBlocked(c) {
				continue
			}
			if _, occ := taken[c]; occ {
				continue
			}
			return c, true
		}
	}
	return space.Cell{}, false
}

// move validates a proposed target. Accepted moves broadcast "movement"
// to every occupant including the mover; rejected moves send
// "movement-rejected" to the mover only, echoing the unchanged
// authoritative position. The client-proposed position is never trusted
// for anything but the target itself.
func (a *arena) move(userID string, target space.Cell) {
	a.mu.Lock()
	defer a.mu.Unlock()

	o, ok := a.occupants[userID]
	if !ok {
		return
	}

	if !a.validMove(o.pos, target) {
		o.conn.enqueue(outEnvelope{Type: EvtMovementRejected, Payload: MovementRejectedPayload{
			X: o.pos.X, Y: o.pos.Y,
		}})
		return
	}

	o.pos = target
	moved := outEnvelope{Type: EvtMovement, Payload: UserPosition{
		UserID: userID, X: target.X, Y: target.Y,
	}}
	for _, occ := range a.occupants {
		occ.conn.enqueue(moved)
	}
}

func (a *arena) validMove(from, target space.Cell) bool {
	dx := abs(target.X - from.X)
	dy := abs(target.Y - from.Y)
	if dx+dy != 1 {
		return false // diagonal, multi-cell jump or no-op
	}
	if !a.layout.InBounds(target) {
		return false
	}
	if a.layout.IsBlocked(target) {
		return false
	}
	for _, occ := range a.occupants {
		if occ.pos == target {
			return false
		}
	}
	return true
}

// leave removes the user and notifies the remaining occupants. The
// return value tells the hub whether the arena emptied; an emptied
// arena is marked closed so joins racing the removal retry against a
// fresh one.
func (a *arena) leave(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.occupants[userID]; !ok {
		return false
	}
	delete(a.occupants, userID)

	left := outEnvelope{Type: EvtUserLeft, Payload: UserLeftPayload{UserID: userID}}
	for _, o := range a.occupants {
		o.conn.enqueue(left)
	}

	if len(a.occupants) == 0 {
		a.closed = true
		return true
	}
	return false
}

func (a *arena) occupantCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.occupants)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
