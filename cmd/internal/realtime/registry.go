package realtime

import (
	"log/slog"
	"sync"

	v1 "plume/shared/contracts/realtime/v1"
)

// Registry tracks which users currently hold open connections.
//
// It is a plain concurrent map with no transport knowledge: the gateway
// registers and unregisters, services emit. A user may hold any number of
// simultaneous connections (several tabs, several devices); each receives
// its own copy of every emit.
type Registry struct {
	log *slog.Logger

	mu    sync.RWMutex
	conns map[string]map[string]*Conn // user ID -> conn ID -> conn
}

// NewRegistry constructs an empty Registry. logger may be nil.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		log:   logger,
		conns: make(map[string]map[string]*Conn),
	}
}

// Register records conn under userID. Registering the same conn ID twice is
// a no-op.
func (r *Registry) Register(userID string, conn *Conn) {
	if userID == "" || conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]*Conn)
		r.conns[userID] = set
	}
	if _, dup := set[conn.ID]; dup {
		return
	}
	set[conn.ID] = conn
	r.log.Debug("realtime.register", "user_id", userID, "conn_id", conn.ID, "conns", len(set))
}

// Unregister removes one connection. The user's map entry is deleted when
// its last connection goes away, so the registry never accumulates empty
// sets.
func (r *Registry) Unregister(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	if _, ok := set[connID]; !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
	r.log.Debug("realtime.unregister", "user_id", userID, "conn_id", connID, "conns", len(set))
}

// EmitToUser queues env on every connection of userID. It reports whether
// the user had at least one registered connection; a full send queue drops
// that copy but still counts the user as reachable.
func (r *Registry) EmitToUser(userID string, env v1.Envelope) bool {
	r.mu.RLock()
	set := r.conns[userID]
	conns := make([]*Conn, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	if len(conns) == 0 {
		return false
	}
	for _, c := range conns {
		r.emit(c, env)
	}
	return true
}

// EmitGlobal queues env on every registered connection.
func (r *Registry) EmitGlobal(env v1.Envelope) {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, set := range r.conns {
		for _, c := range set {
			conns = append(conns, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range conns {
		r.emit(c, env)
	}
}

// emit is non-blocking: a closed or saturated connection loses this copy.
func (r *Registry) emit(c *Conn, env v1.Envelope) {
	select {
	case <-c.Done():
	case c.Send <- env:
	default:
		r.log.Warn("realtime.emit.drop", "conn_id", c.ID, "type", env.Type, "event", env.Event)
	}
}

// Users returns the IDs of users with at least one open connection.
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

// ConnCount reports how many connections userID currently holds.
func (r *Registry) ConnCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// TotalConns reports the number of registered connections across all users.
func (r *Registry) TotalConns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}
