package presence

import (
	"sync"
	"time"
)

// Binding is the (channel, member) identity a connection joined with. The
// display name is cached at join time so leave/disconnect emissions do not
// need another store round-trip.
type Binding struct {
	Channel  string
	MemberID string
	Name     string
	Owner    bool
}

type connection struct {
	binding       Binding
	bound         bool
	lastHeartbeat time.Time
}

type pairKey struct {
	channel  string
	memberID string
}

// Registry owns one record per live transport connection and maps it to
// the identity it joined with. It is a leaf structure: no store calls, no
// broadcasts. All cross-record invariants are enforced by the session
// manager on top of it.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
	pairs map[pairKey]int // live connections per (channel, member)
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*connection),
		pairs: make(map[pairKey]int),
	}
}

// Connect creates the record for a freshly opened transport connection.
// Idempotent.
func (r *Registry) Connect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; !ok {
		r.conns[connID] = &connection{lastHeartbeat: time.Now()}
	}
}

// Connected reports whether the connection record still exists.
func (r *Registry) Connected(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[connID]
	return ok
}

// Bind associates a connection with a (channel, member) identity. Binding
// the same pair again is a no-op reported via rebound; a different pair
// fails with ErrAlreadyBound.
func (r *Registry) Bind(connID string, b Binding) (rebound bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return false, ErrNotConnected
	}
	if c.bound {
		if c.binding.Channel == b.Channel && c.binding.MemberID == b.MemberID {
			return true, nil
		}
		return false, ErrAlreadyBound
	}
	c.binding = b
	c.bound = true
	r.pairs[pairKey{b.Channel, b.MemberID}]++
	return false, nil
}

// Unbind clears the association but keeps the connection record alive.
func (r *Registry) Unbind(connID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unbindLocked(connID)
}

// Remove destroys the connection record entirely, returning the binding it
// carried, if any. Used on transport disconnect.
func (r *Registry) Remove(connID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.unbindLocked(connID)
	delete(r.conns, connID)
	return b, ok
}

func (r *Registry) unbindLocked(connID string) (Binding, bool) {
	c, ok := r.conns[connID]
	if !ok || !c.bound {
		return Binding{}, false
	}
	b := c.binding
	c.bound = false
	c.binding = Binding{}
	key := pairKey{b.Channel, b.MemberID}
	if n := r.pairs[key]; n <= 1 {
		delete(r.pairs, key)
	} else {
		r.pairs[key] = n - 1
	}
	return b, true
}

// Lookup returns the binding for a connection, if bound.
func (r *Registry) Lookup(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok || !c.bound {
		return Binding{}, false
	}
	return c.binding, true
}

// Bindings counts live connections currently bound to a (channel, member)
// pair. The session manager uses it to avoid demoting a member that is
// still reachable through another connection.
func (r *Registry) Bindings(channel, memberID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pairs[pairKey{channel, memberID}]
}

// Touch refreshes the heartbeat timestamp of a connection.
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[connID]; ok {
		c.lastHeartbeat = time.Now()
	}
}

// Stale returns connections whose last heartbeat is older than maxAge.
func (r *Registry) Stale(maxAge time.Duration) []string {
	cutoff := time.Now().Add(-maxAge)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, c := range r.conns {
		if c.lastHeartbeat.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
