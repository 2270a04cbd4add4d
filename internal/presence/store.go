package presence

import "context"

// Member is a durable channel member record as the identity store sees it.
type Member struct {
	ID         string
	Name       string
	ProfilePic string
}

// ChannelOwner is the slice of a channel record the presence core needs:
// the owner uid used to admit owner-sessions that have no member record.
type ChannelOwner struct {
	Channel  string
	OwnerUID string
}

// Store is the identity/channel collaborator. Implementations return
// ErrNotFound for missing records; any other error is treated as a store
// outage by the session manager. Lookups may block, so the manager never
// calls them while holding a channel lock.
type Store interface {
	LookupMember(ctx context.Context, channel, memberID string) (*Member, error)
	LookupChannel(ctx context.Context, channel string) (*ChannelOwner, error)
	SetMemberActive(ctx context.Context, channel, memberID string, active bool) error
}
