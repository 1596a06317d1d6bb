package ws

import "encoding/json"

// Envelope wraps every inbound WS frame.
type Envelope struct {
	Type    string          `json:"type"`              // e.g. "join"
	Payload json.RawMessage `json:"payload,omitempty"` // tagged payload
}

// outEnvelope is the outbound counterpart; payloads are concrete DTOs.
type outEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound message types.
const (
	MsgJoin     = "join"
	MsgMovement = "movement"
)

// Outbound event types.
const (
	EvtSpaceJoined      = "space-joined"
	EvtUserJoined       = "user-joined"
	EvtMovement         = "movement"
	EvtMovementRejected = "movement-rejected"
	EvtUserLeft         = "user-left"
	EvtError            = "error"
)

// ──────────────────────────── inbound payloads ───────────────────────────────

// JoinPayload admits a pending connection into a space.
type JoinPayload struct {
	SpaceID string `json:"spaceId"`
	Token   string `json:"token"`
}

// MovementPayload proposes an absolute target cell.
type MovementPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ──────────────────────────── outbound payloads ──────────────────────────────

// SpawnPoint is a coordinate pair inside an event body.
type SpawnPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// UserPosition identifies an occupant and where it stands.
type UserPosition struct {
	UserID string `json:"userId"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// SpaceJoinedPayload acknowledges a join: the assigned spawn cell plus
// every other occupant as it stood before the join.
type SpaceJoinedPayload struct {
	Spawn SpawnPoint     `json:"spawn"`
	Users []UserPosition `json:"users"`
}

// MovementRejectedPayload echoes the sender's unchanged authoritative
// position so the client can resynchronize.
type MovementRejectedPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type UserLeftPayload struct {
	UserID string `json:"userId"`
}

// ErrorPayload reports join rejections and protocol violations.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorEnvelope(code, message string) outEnvelope {
	return outEnvelope{Type: EvtError, Payload: ErrorPayload{Code: code, Message: message}}
}
