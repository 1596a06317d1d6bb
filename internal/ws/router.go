package ws

import (
	"context"
	"encoding/json"
	"sync"
)

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, s *session, payload json.RawMessage) error

// Router keeps a map[type]handler for inbound messages.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
}

func NewRouter() *Router { return &Router{handlers: make(map[string]rawHandler)} }

// Register binds a message type to a strongly-typed handler.
func Register[Req any](
	r *Router,
	msgType string,
	h func(ctx context.Context, s *session, req Req) error,
) {
	if msgType == "" {
		panic("ws router: empty message type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[msgType] = func(ctx context.Context, s *session, payload json.RawMessage) error {
		var req Req
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return rejectf(ErrCodeBadPayload, err.Error())
			}
		}
		return h(ctx, s, req)
	}
}

// dispatch is called by the server's reader loop.
func (r *Router) dispatch(ctx context.Context, s *session, env Envelope) error {
	r.mu.RLock()
	h, ok := r.handlers[env.Type]
	r.mu.RUnlock()
	if !ok {
		return rejectf(ErrCodeUnknownType, "unknown message type "+env.Type)
	}
	return h(ctx, s, env.Payload)
}
