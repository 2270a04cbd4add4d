package presence

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

// ownerDisplayName is the synthesized name for owner-sessions, which may
// have no member record in the store.
const ownerDisplayName = "Host"

const lockStripes = 256

// Transition is the audit record produced for every admitted membership
// change on a channel.
type Transition struct {
	Kind     string    `json:"kind"` // "join", "leave" or "expire"
	Channel  string    `json:"channel"`
	MemberID string    `json:"memberId"`
	Count    int       `json:"count"`
	At       time.Time `json:"at"`
}

// Auditor receives membership transitions after they are applied. It must
// be best-effort: the session manager never waits on it.
type Auditor interface {
	RecordTransition(ctx context.Context, t Transition)
}

// Manager orchestrates join/heartbeat/leave/disconnect transitions. It is
// the only writer of the registry and the table. Mutations for a channel
// are serialized by a striped per-channel mutex; store calls happen before
// the lock is taken so that store latency never stalls unrelated channels.
type Manager struct {
	store       Store
	registry    *Registry
	table       *Table
	broadcaster Broadcaster
	audit       Auditor
	logger      *slog.Logger

	// Per-channel mutation locks, striped by channel name hash so that
	// unrelated channels do not contend.
	locks [lockStripes]sync.Mutex
}

func NewManager(store Store, registry *Registry, table *Table, broadcaster Broadcaster, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:       store,
		registry:    registry,
		table:       table,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// SetAuditor attaches an optional transition auditor.
func (m *Manager) SetAuditor(a Auditor) { m.audit = a }

// Connect registers a freshly opened transport connection.
func (m *Manager) Connect(connID string) {
	m.registry.Connect(connID)
}

// ActiveCount answers the out-of-band "active users" query.
func (m *Manager) ActiveCount(channel string) int {
	return m.table.ActiveCount(channel)
}

// ActiveMembers returns a snapshot of the active member ids in a channel.
func (m *Manager) ActiveMembers(channel string) []string {
	return m.table.ActiveMembers(channel)
}

// Binding reports the identity a connection is currently joined with.
func (m *Manager) Binding(connID string) (Binding, bool) {
	return m.registry.Lookup(connID)
}

// Join admits a connection into a channel's room under the identity
// (channel, memberID). Identity resolution and the active-flag write hit
// the store first; only then is the channel lock taken to apply the
// derived state change and emit events.
func (m *Manager) Join(ctx context.Context, connID, channel, memberID string) error {
	// Fast-path protocol misuse check before paying for store calls. The
	// authoritative check repeats under the channel lock.
	if b, ok := m.registry.Lookup(connID); ok {
		if b.Channel == channel && b.MemberID == memberID {
			return nil
		}
		return fmt.Errorf("%w: already in channel %q", ErrAlreadyBound, b.Channel)
	}

	name, owner, err := m.resolveIdentity(ctx, channel, memberID)
	if err != nil {
		return err
	}

	// Owner-sessions have no member record, so there is no flag to persist.
	if !owner {
		if err := m.store.SetMemberActive(ctx, channel, memberID, true); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	lock := m.lockFor(channel)
	lock.Lock()

	// The connection may have dropped while we were waiting on the store.
	if !m.registry.Connected(connID) {
		lock.Unlock()
		m.logger.Debug("join abandoned, connection gone", "connId", connID, "channel", channel, "memberId", memberID)
		return ErrNotConnected
	}

	rebound, err := m.registry.Bind(connID, Binding{
		Channel:  channel,
		MemberID: memberID,
		Name:     name,
		Owner:    owner,
	})
	if err != nil {
		lock.Unlock()
		return err
	}
	if rebound {
		lock.Unlock()
		return nil
	}

	count := m.table.AddActive(channel, memberID)
	m.broadcaster.Subscribe(channel, connID)

	// Identity before count: observers must learn who became active before
	// they see the updated total.
	m.broadcaster.Publish(channel, MemberActiveEvent(channel, memberID, name), connID)
	m.broadcaster.Publish(channel, ActiveCountEvent(channel, count))
	lock.Unlock()

	// The audit record is cut off the lock so auditor latency cannot stall
	// the channel's transitions.
	m.recordTransition(ctx, "join", channel, memberID, count)
	m.logger.Info("member joined channel", "channel", channel, "memberId", memberID, "owner", owner, "count", count)
	return nil
}

// Heartbeat refreshes connection liveness. It never changes the active set
// and never emits events. A member that no longer resolves in the store is
// a no-op, not an error: silence here must not force a leave.
func (m *Manager) Heartbeat(ctx context.Context, connID, channel, memberID string) error {
	_, _, err := m.resolveIdentity(ctx, channel, memberID)
	switch {
	case err == nil:
		m.registry.Touch(connID)
		return nil
	case isNotFound(err):
		return nil
	default:
		return err
	}
}

// Leave handles an explicit leave. The registry binding is authoritative;
// an unbound connection is a silent no-op. The connection record survives
// so the client can join another channel on the same socket.
func (m *Manager) Leave(ctx context.Context, connID string) error {
	return m.release(ctx, connID, false)
}

// Disconnect handles transport-level connection loss. It always fires on
// close, whether or not an explicit leave happened first, and destroys the
// connection record.
func (m *Manager) Disconnect(ctx context.Context, connID string) error {
	return m.release(ctx, connID, true)
}

func (m *Manager) release(ctx context.Context, connID string, drop bool) error {
	var lock *sync.Mutex
	for {
		b, bound := m.registry.Lookup(connID)
		if !bound {
			if drop {
				m.registry.Remove(connID)
			}
			return nil
		}

		lock = m.lockFor(b.Channel)
		lock.Lock()

		// The binding may have moved to another channel between the lookup
		// and the lock (an explicit leave plus rejoin racing this release);
		// mutating under the wrong channel's lock would unserialize that
		// channel, so retry against the binding's current channel.
		cur, stillBound := m.registry.Lookup(connID)
		if stillBound && cur.Channel == b.Channel {
			break
		}
		lock.Unlock()
		if !stillBound {
			if drop {
				m.registry.Remove(connID)
			}
			return nil
		}
	}

	var b Binding
	var bound bool
	if drop {
		b, bound = m.registry.Remove(connID)
	} else {
		b, bound = m.registry.Unbind(connID)
	}
	if !bound {
		// Lost a race with another release path; nothing left to do.
		lock.Unlock()
		return nil
	}

	m.broadcaster.Unsubscribe(b.Channel, connID)

	if m.registry.Bindings(b.Channel, b.MemberID) > 0 {
		// Member still active through another connection; no demotion.
		lock.Unlock()
		return nil
	}

	count, removed := m.table.RemoveActive(b.Channel, b.MemberID)
	if !removed {
		lock.Unlock()
		m.logger.Error("registry held binding absent from presence table",
			"channel", b.Channel, "memberId", b.MemberID)
		return fmt.Errorf("%w: member %q missing from channel %q", ErrInternalInconsistency, b.MemberID, b.Channel)
	}

	name := b.Name
	if name == "" {
		name = "Member " + b.MemberID
	}
	m.broadcaster.Publish(b.Channel, MemberInactiveEvent(b.Channel, b.MemberID, name), connID)
	m.broadcaster.Publish(b.Channel, ActiveCountEvent(b.Channel, count))
	lock.Unlock()

	kind := "leave"
	if drop {
		kind = "disconnect"
	}
	m.recordTransition(ctx, kind, b.Channel, b.MemberID, count)

	// Audit-trail flag clear happens outside the lock; a store hiccup here
	// only leaves a stale flag behind, which reconciliation sweeps on boot.
	if !b.Owner {
		if err := m.store.SetMemberActive(ctx, b.Channel, b.MemberID, false); err != nil {
			m.logger.Warn("failed to clear persisted active flag",
				"channel", b.Channel, "memberId", b.MemberID, "error", err)
		}
	}

	m.logger.Info("member left channel", "channel", b.Channel, "memberId", b.MemberID, "count", count, "disconnect", drop)
	return nil
}

// resolveIdentity maps (channel, memberID) to a display name, falling back
// to owner-session admission when the channel's owner uid matches. Owner
// status is re-derived on every call: ownership belongs to the channel
// record and must not be cached per member.
func (m *Manager) resolveIdentity(ctx context.Context, channel, memberID string) (name string, owner bool, err error) {
	member, err := m.store.LookupMember(ctx, channel, memberID)
	if err == nil {
		return member.Name, false, nil
	}
	if !isNotFound(err) {
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ch, err := m.store.LookupChannel(ctx, channel)
	if err != nil {
		if isNotFound(err) {
			return "", false, ErrMemberNotFound
		}
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ch.OwnerUID == memberID {
		return ownerDisplayName, true, nil
	}
	return "", false, ErrMemberNotFound
}

func (m *Manager) recordTransition(ctx context.Context, kind, channel, memberID string, count int) {
	if m.audit == nil {
		return
	}
	m.audit.RecordTransition(ctx, Transition{
		Kind:     kind,
		Channel:  channel,
		MemberID: memberID,
		Count:    count,
		At:       time.Now(),
	})
}

func (m *Manager) lockFor(channel string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(channel))
	return &m.locks[h.Sum32()%lockStripes]
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMemberNotFound)
}
