package presence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestManager(store *fakeStore) (*Manager, *Registry, *Table, *fakeBroadcaster) {
	registry := NewRegistry()
	table := NewTable()
	broadcaster := newFakeBroadcaster()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(store, registry, table, broadcaster, logger), registry, table, broadcaster
}

func TestJoinEmitsIdentityBeforeCount(t *testing.T) {
	store := newFakeStore()
	store.addMember("c1", "u1", "Alice")
	m, _, _, bc := newTestManager(store)
	ctx := context.Background()

	m.Connect("conn1")
	if err := m.Join(ctx, "conn1", "c1", "u1"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	events := bc.published()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].event.Type != EventMemberActive {
		t.Errorf("first event should be member.active, got %s", events[0].event.Type)
	}
	if events[0].event.Name != "Alice" || events[0].event.MemberID != "u1" {
		t.Errorf("member.active should carry identity, got %+v", events[0].event)
	}
	if len(events[0].exclude) != 1 || events[0].exclude[0] != "conn1" {
		t.Errorf("joiner must be excluded from member.active, got %v", events[0].exclude)
	}
	if events[1].event.Type != EventActiveCount {
		t.Errorf("second event should be active_count, got %s", events[1].event.Type)
	}
	if events[1].event.Count == nil || *events[1].event.Count != 1 {
		t.Errorf("active_count should be 1, got %v", events[1].event.Count)
	}
	if len(events[1].exclude) != 0 {
		t.Errorf("active_count goes to the whole room, got exclude %v", events[1].exclude)
	}

	if !bc.inRoom("c1", "conn1") {
		t.Error("joiner should be subscribed to the room")
	}
	calls := store.flagCalls()
	if len(calls) != 1 || !calls[0].active {
		t.Errorf("expected one active=true flag write, got %v", calls)
	}
}

func TestJoinUnknownMemberLeavesStateUntouched(t *testing.T) {
	store := newFakeStore()
	store.setOwner("c1", "42")
	m, _, table, bc := newTestManager(store)
	ctx := context.Background()

	m.Connect("conn1")
	err := m.Join(ctx, "conn1", "c1", "stranger")
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
	if got := table.ActiveCount("c1"); got != 0 {
		t.Errorf("failed join must not change activeCount, got %d", got)
	}
	if events := bc.published(); len(events) != 0 {
		t.Errorf("failed join must not broadcast, got %v", events)
	}
	if bc.inRoom("c1", "conn1") {
		t.Error("failed join must not admit the connection to the room")
	}
}

func TestJoinOwnerSessionSynthesizesHost(t *testing.T) {
	store := newFakeStore()
	store.setOwner("c1", "42")
	m, _, table, bc := newTestManager(store)
	ctx := context.Background()

	m.Connect("conn1")
	if err := m.Join(ctx, "conn1", "c1", "42"); err != nil {
		t.Fatalf("owner join failed: %v", err)
	}
	if got := table.ActiveCount("c1"); got != 1 {
		t.Errorf("expected activeCount 1, got %d", got)
	}
	events := bc.published()
	if events[0].event.Name != "Host" {
		t.Errorf("owner session should be announced as Host, got %q", events[0].event.Name)
	}
	if calls := store.flagCalls(); len(calls) != 0 {
		t.Errorf("owner sessions have no persisted flag, got %v", calls)
	}
}

func TestJoinStoreOutage(t *testing.T) {
	store := newFakeStore()
	store.down = true
	m, _, table, bc := newTestManager(store)

	m.Connect("conn1")
	err := m.Join(context.Background(), "conn1", "c1", "u1")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if table.ActiveCount("c1") != 0 || len(bc.published()) != 0 {
		t.Error("store outage must not mutate state or broadcast")
	}
}

func TestDoubleJoin(t *testing.T) {
	store := newFakeStore()
	store.addMember("c1", "u1", "Alice")
	store.addMember("c2", "u1", "Alice")
	m, _, table, bc := newTestManager(store)
	ctx := context.Background()
	m.Connect("conn1")

	if err := m.Join(ctx, "conn1", "c1", "u1"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	t.Run("IdempotentRebind", func(t *testing.T) {
		before := len(bc.published())
		if err := m.Join(ctx, "conn1", "c1", "u1"); err != nil {
			t.Fatalf("identical rejoin should be a no-op, got %v", err)
		}
		if got := table.ActiveCount("c1"); got != 1 {
			t.Errorf("rejoin must not double-count, got %d", got)
		}
		if len(bc.published()) != before {
			t.Error("rejoin must not re-broadcast")
		}
	})

	t.Run("DifferentChannelRejected", func(t *testing.T) {
		err := m.Join(ctx, "conn1", "c2", "u1")
		if !errors.Is(err, ErrAlreadyBound) {
			t.Fatalf("expected ErrAlreadyBound, got %v", err)
		}
		if table.ActiveCount("c2") != 0 {
			t.Error("rejected join must not touch the other channel")
		}
	})
}

func TestMultipleConnectionsCollapseToOnePresence(t *testing.T) {
	store := newFakeStore()
	store.addMember("c1", "u1", "Alice")
	m, _, table, bc := newTestManager(store)
	ctx := context.Background()

	m.Connect("conn1")
	m.Connect("conn2")
	if err := m.Join(ctx, "conn1", "c1", "u1"); err != nil {
		t.Fatalf("join 1 failed: %v", err)
	}
	if err := m.Join(ctx, "conn2", "c1", "u1"); err != nil {
		t.Fatalf("join 2 failed: %v", err)
	}
	if got := table.ActiveCount("c1"); got != 1 {
		t.Fatalf("same member over two connections must count once, got %d", got)
	}

	// Dropping one of the two connections must not demote the member.
	before := len(bc.published())
	if err := m.Disconnect(ctx, "conn1"); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if got := table.ActiveCount("c1"); got != 1 {
		t.Errorf("member still active via surviving connection, got %d", got)
	}
	if len(bc.published()) != before {
		t.Error("no demotion events while another connection survives")
	}

	if err := m.Disconnect(ctx, "conn2"); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if got := table.ActiveCount("c1"); got != 0 {
		t.Errorf("expected 0 after last connection left, got %d", got)
	}
}

func TestDisconnectMatchesExplicitLeave(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, release func(m *Manager) error) (*Table, *fakeBroadcaster, *fakeStore) {
		store := newFakeStore()
		store.addMember("c1", "u1", "Alice")
		m, _, table, bc := newTestManager(store)
		m.Connect("conn1")
		if err := m.Join(ctx, "conn1", "c1", "u1"); err != nil {
			t.Fatalf("join failed: %v", err)
		}
		if err := release(m); err != nil {
			t.Fatalf("release failed: %v", err)
		}
		return table, bc, store
	}

	check := func(t *testing.T, table *Table, bc *fakeBroadcaster, store *fakeStore) {
		if got := table.ActiveCount("c1"); got != 0 {
			t.Errorf("expected count 0, got %d", got)
		}
		events := bc.published()
		if len(events) != 4 {
			t.Fatalf("expected join+leave event pairs, got %d events", len(events))
		}
		if events[2].event.Type != EventMemberInactive || events[2].event.Name != "Alice" {
			t.Errorf("expected member.inactive with cached name, got %+v", events[2].event)
		}
		if events[3].event.Type != EventActiveCount || *events[3].event.Count != 0 {
			t.Errorf("expected trailing active_count 0, got %+v", events[3].event)
		}
		calls := store.flagCalls()
		if len(calls) != 2 || calls[1].active {
			t.Errorf("expected trailing active=false flag write, got %v", calls)
		}
		if bc.inRoom("c1", "conn1") {
			t.Error("connection must leave the room")
		}
	}

	t.Run("ExplicitLeave", func(t *testing.T) {
		table, bc, store := run(t, func(m *Manager) error { return m.Leave(ctx, "conn1") })
		check(t, table, bc, store)
	})
	t.Run("TransportDisconnect", func(t *testing.T) {
		table, bc, store := run(t, func(m *Manager) error { return m.Disconnect(ctx, "conn1") })
		check(t, table, bc, store)
	})
}

func TestLeaveWithoutBindingIsNoop(t *testing.T) {
	store := newFakeStore()
	m, _, _, bc := newTestManager(store)
	ctx := context.Background()

	m.Connect("conn1")
	if err := m.Leave(ctx, "conn1"); err != nil {
		t.Fatalf("unbound leave should be silent, got %v", err)
	}
	if err := m.Disconnect(ctx, "conn1"); err != nil {
		t.Fatalf("unbound disconnect should be silent, got %v", err)
	}
	// Disconnecting twice must also be harmless.
	if err := m.Disconnect(ctx, "conn1"); err != nil {
		t.Fatalf("repeated disconnect should be silent, got %v", err)
	}
	if len(bc.published()) != 0 {
		t.Error("no events expected for unbound release")
	}
}

func TestJoinAbandonedAfterDisconnect(t *testing.T) {
	store := newFakeStore()
	store.addMember("c1", "u1", "Alice")
	m, registry, table, bc := newTestManager(store)
	ctx := context.Background()

	// Simulate the connection dropping while the join was still waiting on
	// the store: the record is gone by the time the lock is taken.
	m.Connect("conn1")
	registry.Remove("conn1")

	err := m.Join(ctx, "conn1", "c1", "u1")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if table.ActiveCount("c1") != 0 {
		t.Error("abandoned join must not mutate the table")
	}
	if bc.inRoom("c1", "conn1") {
		t.Error("abandoned join must not subscribe the connection")
	}
}

func TestHeartbeat(t *testing.T) {
	store := newFakeStore()
	store.addMember("c1", "u1", "Alice")
	store.setOwner("c1", "42")
	m, _, table, bc := newTestManager(store)
	ctx := context.Background()

	m.Connect("conn1")
	if err := m.Join(ctx, "conn1", "c1", "u1"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	t.Run("RefreshesLiveness", func(t *testing.T) {
		if err := m.Heartbeat(ctx, "conn1", "c1", "u1"); err != nil {
			t.Fatalf("heartbeat failed: %v", err)
		}
	})

	t.Run("RemovedMemberIsNoop", func(t *testing.T) {
		store.removeMember("c1", "u1")
		if err := m.Heartbeat(ctx, "conn1", "c1", "u1"); err != nil {
			t.Fatalf("heartbeat for vanished member must not error, got %v", err)
		}
		if got := table.ActiveCount("c1"); got != 1 {
			t.Errorf("heartbeat must not alter activeCount, got %d", got)
		}
	})

	t.Run("OwnerResolves", func(t *testing.T) {
		m.Connect("conn2")
		if err := m.Join(ctx, "conn2", "c1", "42"); err != nil {
			t.Fatalf("owner join failed: %v", err)
		}
		if err := m.Heartbeat(ctx, "conn2", "c1", "42"); err != nil {
			t.Fatalf("owner heartbeat failed: %v", err)
		}
	})

	t.Run("NoEventsEmitted", func(t *testing.T) {
		before := len(bc.published())
		_ = m.Heartbeat(ctx, "conn1", "c1", "u1")
		if len(bc.published()) != before {
			t.Error("heartbeat must not emit events")
		}
	})
}

func TestJoinLeaveSequenceCounts(t *testing.T) {
	store := newFakeStore()
	store.addMember("c1", "u1", "Alice")
	store.addMember("c1", "u2", "Bob")
	m, _, table, bc := newTestManager(store)
	ctx := context.Background()

	m.Connect("conn1")
	m.Connect("conn2")

	if err := m.Join(ctx, "conn1", "c1", "u1"); err != nil {
		t.Fatal(err)
	}
	if got := table.ActiveCount("c1"); got != 1 {
		t.Fatalf("after first join expected 1, got %d", got)
	}
	if err := m.Join(ctx, "conn2", "c1", "u2"); err != nil {
		t.Fatal(err)
	}
	if got := table.ActiveCount("c1"); got != 2 {
		t.Fatalf("after second join expected 2, got %d", got)
	}

	if err := m.Disconnect(ctx, "conn1"); err != nil {
		t.Fatal(err)
	}
	if got := table.ActiveCount("c1"); got != 1 {
		t.Fatalf("after disconnect expected 1, got %d", got)
	}
	if err := m.Leave(ctx, "conn2"); err != nil {
		t.Fatal(err)
	}
	if got := table.ActiveCount("c1"); got != 0 {
		t.Fatalf("after leave expected 0, got %d", got)
	}

	// Count events must mirror the admitted transitions in order: 1,2,1,0.
	var counts []int
	for _, ev := range bc.published() {
		if ev.event.Type == EventActiveCount {
			counts = append(counts, *ev.event.Count)
		}
	}
	want := []int{1, 2, 1, 0}
	if len(counts) != len(want) {
		t.Fatalf("expected %d count events, got %d", len(want), len(counts))
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("count event %d: expected %d, got %d", i, want[i], counts[i])
		}
	}
}

func TestConcurrentJoinsSameChannel(t *testing.T) {
	store := newFakeStore()
	const n = 32
	for i := 0; i < n; i++ {
		store.addMember("c1", memberID(i), "Member")
	}
	m, _, table, _ := newTestManager(store)
	ctx := context.Background()

	done := make(chan error, n)
	for i := 0; i < n; i++ {
		id := i
		m.Connect(connID(id))
		go func() {
			done <- m.Join(ctx, connID(id), "c1", memberID(id))
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent join failed: %v", err)
		}
	}
	if got := table.ActiveCount("c1"); got != n {
		t.Errorf("expected %d active members, got %d", n, got)
	}

	for i := 0; i < n; i++ {
		id := i
		go func() {
			done <- m.Disconnect(ctx, connID(id))
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent disconnect failed: %v", err)
		}
	}
	if got := table.ActiveCount("c1"); got != 0 {
		t.Errorf("expected 0 after all disconnects, got %d", got)
	}
}

func memberID(i int) string { return "u" + string(rune('A'+i%26)) + string(rune('a'+i/26)) }
func connID(i int) string   { return "conn-" + memberID(i) }

// blockingAuditor parks every RecordTransition call until released, so
// tests can observe whether transitions wait on the audit path.
type blockingAuditor struct {
	entered chan string
	release chan struct{}
}

func (a *blockingAuditor) RecordTransition(ctx context.Context, tr Transition) {
	a.entered <- tr.MemberID
	<-a.release
}

func TestAuditorDoesNotHoldUpChannelTransitions(t *testing.T) {
	store := newFakeStore()
	store.addMember("c1", "u1", "Alice")
	store.addMember("c1", "u2", "Bob")
	m, _, table, _ := newTestManager(store)
	audit := &blockingAuditor{entered: make(chan string, 2), release: make(chan struct{})}
	m.SetAuditor(audit)
	ctx := context.Background()

	m.Connect("conn1")
	m.Connect("conn2")

	go func() { _ = m.Join(ctx, "conn1", "c1", "u1") }()
	<-audit.entered // first join is parked inside the auditor

	go func() { _ = m.Join(ctx, "conn2", "c1", "u2") }()

	// The second join must reach its own audit call: if the channel lock
	// were still held through the first join's auditor, it could never
	// acquire the lock and apply its transition.
	select {
	case <-audit.entered:
	case <-time.After(time.Second):
		t.Fatal("second join serialized behind the auditor")
	}
	if got := table.ActiveCount("c1"); got != 2 {
		t.Errorf("both joins should have applied while audited, count %d", got)
	}
	close(audit.release)
}

func TestDisconnectRacingRejoinLeavesNoResidue(t *testing.T) {
	store := newFakeStore()
	store.addMember("c1", "u1", "Alice")
	store.addMember("c2", "u1", "Alice")
	m, _, table, _ := newTestManager(store)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		m.Connect("conn1")
		if err := m.Join(ctx, "conn1", "c1", "u1"); err != nil {
			t.Fatalf("iteration %d: join failed: %v", i, err)
		}

		errs := make(chan error, 4)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- m.Disconnect(ctx, "conn1")
		}()
		go func() {
			defer wg.Done()
			errs <- m.Leave(ctx, "conn1")
			if err := m.Join(ctx, "conn1", "c2", "u1"); err != nil && !errors.Is(err, ErrNotConnected) {
				errs <- err
			}
		}()
		wg.Wait()
		errs <- m.Disconnect(ctx, "conn1")
		close(errs)

		for err := range errs {
			if err != nil {
				t.Fatalf("iteration %d: %v", i, err)
			}
		}
		if got := table.ActiveCount("c1"); got != 0 {
			t.Fatalf("iteration %d: residue in c1, count %d", i, got)
		}
		if got := table.ActiveCount("c2"); got != 0 {
			t.Fatalf("iteration %d: residue in c2, count %d", i, got)
		}
	}
}
