package presence

import (
	"context"
	"errors"
	"sync"
)

// fakeStore is an in-memory identity store double with a switchable outage
// mode and a log of SetMemberActive calls.
type fakeStore struct {
	mu      sync.Mutex
	members map[string]map[string]Member // channel -> memberID -> record
	owners  map[string]string            // channel -> owner uid
	down    bool
	flags   []flagCall
}

type flagCall struct {
	channel  string
	memberID string
	active   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members: make(map[string]map[string]Member),
		owners:  make(map[string]string),
	}
}

func (s *fakeStore) addMember(channel, memberID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[channel] == nil {
		s.members[channel] = make(map[string]Member)
	}
	s.members[channel][memberID] = Member{ID: memberID, Name: name}
}

func (s *fakeStore) removeMember(channel, memberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[channel], memberID)
}

func (s *fakeStore) setOwner(channel, uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[channel] = uid
}

func (s *fakeStore) LookupMember(ctx context.Context, channel, memberID string) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errors.New("store down")
	}
	if m, ok := s.members[channel][memberID]; ok {
		return &m, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) LookupChannel(ctx context.Context, channel string) (*ChannelOwner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errors.New("store down")
	}
	if uid, ok := s.owners[channel]; ok {
		return &ChannelOwner{Channel: channel, OwnerUID: uid}, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) SetMemberActive(ctx context.Context, channel, memberID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errors.New("store down")
	}
	s.flags = append(s.flags, flagCall{channel, memberID, active})
	return nil
}

func (s *fakeStore) flagCalls() []flagCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]flagCall, len(s.flags))
	copy(out, s.flags)
	return out
}

// fakeBroadcaster records published events in order, along with room
// subscriptions, so tests can assert emission ordering and exclusion.
type fakeBroadcaster struct {
	mu     sync.Mutex
	rooms  map[string]map[string]bool
	events []publishedEvent
	direct []directEvent
}

type publishedEvent struct {
	channel string
	event   Event
	exclude []string
}

type directEvent struct {
	connID string
	event  Event
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{rooms: make(map[string]map[string]bool)}
}

func (b *fakeBroadcaster) Subscribe(channel, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rooms[channel] == nil {
		b.rooms[channel] = make(map[string]bool)
	}
	b.rooms[channel][connID] = true
}

func (b *fakeBroadcaster) Unsubscribe(channel, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms[channel], connID)
}

func (b *fakeBroadcaster) Publish(channel string, event Event, exclude ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, publishedEvent{channel: channel, event: event, exclude: exclude})
}

func (b *fakeBroadcaster) SendTo(connID string, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.direct = append(b.direct, directEvent{connID: connID, event: event})
}

func (b *fakeBroadcaster) published() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]publishedEvent, len(b.events))
	copy(out, b.events)
	return out
}

func (b *fakeBroadcaster) inRoom(channel, connID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rooms[channel][connID]
}
