package ws

import "sync"

// Registry owns every live connection. Entries are inserted on
// transport establishment and removed exactly once on transport close;
// removal of a joined connection runs the room departure before the id
// is released.
type Registry struct {
	hub *Hub

	mu    sync.Mutex
	conns map[string]*clientConn
}

func NewRegistry(hub *Hub) *Registry {
	return &Registry{
		hub:   hub,
		conns: make(map[string]*clientConn),
	}
}

func (r *Registry) Register(c *clientConn) {
	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()
}

// Remove is idempotent: the first call wins and drives the leave path,
// later calls (or calls for unknown ids) are no-ops.
func (r *Registry) Remove(c *clientConn) {
	r.mu.Lock()
	_, known := r.conns[c.id]
	delete(r.conns, c.id)
	r.mu.Unlock()
	if !known {
		return
	}

	if c.joined {
		r.hub.Leave(c.spaceID, c.userID)
		c.joined = false
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
