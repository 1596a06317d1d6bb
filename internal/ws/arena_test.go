package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenago/internal/services/space"
)

func TestSpawnRowMajorScan(t *testing.T) {
	a := newArena("s1", gridLayout(3, 2, space.Cell{X: 0, Y: 0}))

	spawn1, err := a.join("u1", newTestConn())
	require.NoError(t, err)
	assert.Equal(t, space.Cell{X: 1, Y: 0}, spawn1, "first free cell after the blocked origin")

	spawn2, err := a.join("u2", newTestConn())
	require.NoError(t, err)
	assert.Equal(t, space.Cell{X: 2, Y: 0}, spawn2)

	spawn3, err := a.join("u3", newTestConn())
	require.NoError(t, err)
	assert.Equal(t, space.Cell{X: 0, Y: 1}, spawn3, "scan wraps to the next row")
}

func TestJoinRejectsWhenFull(t *testing.T) {
	a := newArena("s1", gridLayout(1, 1))

	_, err := a.join("u1", newTestConn())
	require.NoError(t, err)

	_, err = a.join("u2", newTestConn())
	require.ErrorIs(t, err, ErrSpaceFull)
	assert.Equal(t, 1, a.occupantCount())
}

func TestJoinRejectsFullyBlockedSpace(t *testing.T) {
	a := newArena("s1", gridLayout(1, 1, space.Cell{X: 0, Y: 0}))

	_, err := a.join("u1", newTestConn())
	require.ErrorIs(t, err, ErrSpaceFull)
}

func TestJoinRejectsDuplicateUser(t *testing.T) {
	a := newArena("s1", gridLayout(4, 4))

	_, err := a.join("u1", newTestConn())
	require.NoError(t, err)

	_, err = a.join("u1", newTestConn())
	require.ErrorIs(t, err, ErrAlreadyJoined)
	assert.Equal(t, 1, a.occupantCount())
}

func TestJoinAckListsPriorOccupantsOnly(t *testing.T) {
	a := newArena("s1", gridLayout(4, 4))

	connA := newTestConn()
	spawnA, err := a.join("alice", connA)
	require.NoError(t, err)

	ack := nextEvent(t, connA, EvtSpaceJoined).Payload.(SpaceJoinedPayload)
	assert.Empty(t, ack.Users, "first joiner sees an empty space")

	connB := newTestConn()
	spawnB, err := a.join("bob", connB)
	require.NoError(t, err)

	ackB := nextEvent(t, connB, EvtSpaceJoined).Payload.(SpaceJoinedPayload)
	assert.Equal(t, SpawnPoint{X: spawnB.X, Y: spawnB.Y}, ackB.Spawn)
	require.Len(t, ackB.Users, 1)
	assert.Equal(t, UserPosition{UserID: "alice", X: spawnA.X, Y: spawnA.Y}, ackB.Users[0])

	// Alice hears about Bob at exactly his ack'd spawn cell.
	joined := nextEvent(t, connA, EvtUserJoined).Payload.(UserPosition)
	assert.Equal(t, UserPosition{UserID: "bob", X: spawnB.X, Y: spawnB.Y}, joined)
	requireNoEvent(t, connA)
	requireNoEvent(t, connB)
}

func TestMoveAcceptsUnitStepAndBroadcasts(t *testing.T) {
	a := newArena("s1", gridLayout(4, 4))
	connA := newTestConn()
	connB := newTestConn()

	spawnA, err := a.join("alice", connA)
	require.NoError(t, err)
	_, err = a.join("bob", connB)
	require.NoError(t, err)

	// Drain the join chatter.
	nextEvent(t, connA, EvtSpaceJoined)
	nextEvent(t, connA, EvtUserJoined)
	nextEvent(t, connB, EvtSpaceJoined)

	target := space.Cell{X: spawnA.X, Y: spawnA.Y + 1}
	a.move("alice", target)

	want := UserPosition{UserID: "alice", X: target.X, Y: target.Y}
	assert.Equal(t, want, nextEvent(t, connA, EvtMovement).Payload.(UserPosition),
		"mover receives the confirmation")
	assert.Equal(t, want, nextEvent(t, connB, EvtMovement).Payload.(UserPosition),
		"peer receives the broadcast")
	requireNoEvent(t, connA)
	requireNoEvent(t, connB)
}

func TestMoveRejectsInvalidSteps(t *testing.T) {
	layout := gridLayout(10, 10, space.Cell{X: 5, Y: 6})

	cases := []struct {
		name   string
		target func(from space.Cell) space.Cell
	}{
		{"no-op", func(f space.Cell) space.Cell { return f }},
		{"diagonal", func(f space.Cell) space.Cell { return space.Cell{X: f.X + 1, Y: f.Y + 1} }},
		{"jump", func(f space.Cell) space.Cell { return space.Cell{X: f.X + 2, Y: f.Y} }},
		{"far jump", func(f space.Cell) space.Cell { return space.Cell{X: f.X + 50000, Y: f.Y} }},
		{"negative bounds", func(f space.Cell) space.Cell { return space.Cell{X: f.X - 1, Y: f.Y} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newArena("s1", layout)
			conn := newTestConn()
			spawn, err := a.join("alice", conn) // spawns at (0,0)
			require.NoError(t, err)
			nextEvent(t, conn, EvtSpaceJoined)

			a.move("alice", tc.target(spawn))

			rej := nextEvent(t, conn, EvtMovementRejected).Payload.(MovementRejectedPayload)
			assert.Equal(t, MovementRejectedPayload{X: spawn.X, Y: spawn.Y}, rej,
				"rejection echoes the unchanged authoritative position")
			assert.Equal(t, spawn, a.occupants["alice"].pos, "stored position must not move")
		})
	}
}

func TestMoveRejectsBlockedAndOccupiedCells(t *testing.T) {
	// Blocked cell right of alice's spawn, bob right of that.
	a := newArena("s1", gridLayout(10, 1, space.Cell{X: 1, Y: 0}))
	connA := newTestConn()
	connB := newTestConn()

	spawnA, err := a.join("alice", connA)
	require.NoError(t, err)
	require.Equal(t, space.Cell{X: 0, Y: 0}, spawnA)

	spawnB, err := a.join("bob", connB)
	require.NoError(t, err)
	require.Equal(t, space.Cell{X: 2, Y: 0}, spawnB)

	nextEvent(t, connA, EvtSpaceJoined)
	nextEvent(t, connA, EvtUserJoined)
	nextEvent(t, connB, EvtSpaceJoined)

	// Onto the static element.
	a.move("alice", space.Cell{X: 1, Y: 0})
	nextEvent(t, connA, EvtMovementRejected)

	// Bob steps left onto the blocked cell: also rejected.
	a.move("bob", space.Cell{X: 1, Y: 0})
	nextEvent(t, connB, EvtMovementRejected)

	// Bob walks to 3,0 then back; alice cannot enter an occupied cell.
	a.move("bob", space.Cell{X: 3, Y: 0})
	nextEvent(t, connA, EvtMovement)
	nextEvent(t, connB, EvtMovement)

	a.move("alice", space.Cell{X: 0, Y: 0})
	rej := nextEvent(t, connA, EvtMovementRejected).Payload.(MovementRejectedPayload)
	assert.Equal(t, MovementRejectedPayload{X: 0, Y: 0}, rej, "no-op distance is invalid movement")
}

func TestMoveOntoOccupiedCellRejected(t *testing.T) {
	a := newArena("s1", gridLayout(10, 1))
	connA := newTestConn()
	connB := newTestConn()

	_, err := a.join("alice", connA) // (0,0)
	require.NoError(t, err)
	_, err = a.join("bob", connB) // (1,0)
	require.NoError(t, err)

	nextEvent(t, connA, EvtSpaceJoined)
	nextEvent(t, connA, EvtUserJoined)
	nextEvent(t, connB, EvtSpaceJoined)

	a.move("alice", space.Cell{X: 1, Y: 0})

	rej := nextEvent(t, connA, EvtMovementRejected).Payload.(MovementRejectedPayload)
	assert.Equal(t, MovementRejectedPayload{X: 0, Y: 0}, rej)
	// A rejected move is private to the mover.
	requireNoEvent(t, connB)
}

// A consumer that stops draining its queue is cut loose; the room must
// keep serving everyone else without waiting on it.
func TestSlowConsumerDoesNotStallRoom(t *testing.T) {
	a := newArena("s1", gridLayout(10, 10))
	connA := newTestConn()
	connB := newTestConn()

	spawnA, err := a.join("alice", connA)
	require.NoError(t, err)
	_, err = a.join("bob", connB)
	require.NoError(t, err)

	nextEvent(t, connA, EvtSpaceJoined)
	nextEvent(t, connA, EvtUserJoined)

	// Bob stops reading: stuff his queue to capacity.
	for len(connB.send) < cap(connB.send) {
		connB.send <- outEnvelope{}
	}

	// The overflowing broadcast returns immediately and shuts bob down.
	a.move("alice", space.Cell{X: spawnA.X, Y: spawnA.Y + 1})
	select {
	case <-connB.done:
	default:
		t.Fatal("overflowed connection was not shut down")
	}

	// The room keeps serving the remaining occupants.
	nextEvent(t, connA, EvtMovement)
	a.move("alice", spawnA)
	nextEvent(t, connA, EvtMovement)

	connC := newTestConn()
	_, err = a.join("carol", connC)
	require.NoError(t, err)
	nextEvent(t, connA, EvtUserJoined)
	nextEvent(t, connC, EvtSpaceJoined)
}

func TestLeaveNotifiesRemainingAndFreesCell(t *testing.T) {
	a := newArena("s1", gridLayout(2, 1))
	connA := newTestConn()
	connB := newTestConn()

	spawnA, err := a.join("alice", connA) // (0,0)
	require.NoError(t, err)
	_, err = a.join("bob", connB) // (1,0)
	require.NoError(t, err)

	nextEvent(t, connA, EvtSpaceJoined)
	nextEvent(t, connA, EvtUserJoined)
	nextEvent(t, connB, EvtSpaceJoined)

	empty := a.leave("alice")
	assert.False(t, empty, "bob remains")
	assert.Equal(t, 1, a.occupantCount())

	left := nextEvent(t, connB, EvtUserLeft).Payload.(UserLeftPayload)
	assert.Equal(t, "alice", left.UserID)
	requireNoEvent(t, connB)

	// Alice's old cell is immediately reusable.
	connC := newTestConn()
	spawnC, err := a.join("carol", connC)
	require.NoError(t, err)
	assert.Equal(t, spawnA, spawnC)
	nextEvent(t, connB, EvtUserJoined)

	// Leaving again is a no-op and emits nothing.
	assert.False(t, a.leave("alice"))
	requireNoEvent(t, connB)
}
