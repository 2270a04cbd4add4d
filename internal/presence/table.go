package presence

import "sync"

// Table is the per-channel set of currently active member ids. It is a
// derived in-memory cache, never the system of record: the persisted
// active flag in the store is a best-effort audit trail only. The count
// for a channel is always the size of its set, so the two cannot diverge.
type Table struct {
	mu       sync.RWMutex
	channels map[string]map[string]struct{}
}

func NewTable() *Table {
	return &Table{channels: make(map[string]map[string]struct{})}
}

// AddActive marks a member active in a channel and returns the new count.
// Idempotent: a member present through several connections counts once.
func (t *Table) AddActive(channel, memberID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.channels[channel]
	if !ok {
		set = make(map[string]struct{})
		t.channels[channel] = set
	}
	set[memberID] = struct{}{}
	return len(set)
}

// RemoveActive clears a member from a channel's active set and returns the
// new count plus whether the member was actually present. The channel
// entry is dropped once its set is empty.
func (t *Table) RemoveActive(channel, memberID string) (count int, removed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.channels[channel]
	if !ok {
		return 0, false
	}
	if _, present := set[memberID]; present {
		delete(set, memberID)
		removed = true
	}
	if len(set) == 0 {
		delete(t.channels, channel)
		return 0, removed
	}
	return len(set), removed
}

// ActiveCount returns the number of active members in a channel, 0 for an
// unknown channel.
func (t *Table) ActiveCount(channel string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.channels[channel])
}

// ActiveMembers returns a snapshot of a channel's active member ids.
func (t *Table) ActiveMembers(channel string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.channels[channel]
	if len(set) == 0 {
		return nil
	}
	members := make([]string, 0, len(set))
	for id := range set {
		members = append(members, id)
	}
	return members
}
