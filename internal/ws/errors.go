package ws

import "errors"

// Error codes carried by the "error" event.
const (
	ErrCodeAuth              = "auth_error"
	ErrCodeSpaceNotFound     = "space_not_found"
	ErrCodeSpaceFull         = "space_full"
	ErrCodeAlreadyJoined     = "space_already_joined"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeUnknownType       = "unknown_type"
	ErrCodeBadPayload        = "bad_payload"
)

var (
	// ErrSpaceFull means no free spawn cell exists.
	ErrSpaceFull = errors.New("no free spawn cell")
	// ErrAlreadyJoined means the userId already occupies the space.
	ErrAlreadyJoined = errors.New("user already in space")

	// errArenaClosed marks a join that raced the last occupant's
	// departure; the hub re-resolves the arena and retries.
	errArenaClosed = errors.New("arena closed")
)

// protocolError is a rejection local to one connection. The reader loop
// turns it into an "error" event; the connection stays usable.
type protocolError struct {
	code string
	msg  string
}

func (e *protocolError) Error() string { return e.msg }

func rejectf(code, msg string) *protocolError {
	return &protocolError{code: code, msg: msg}
}
