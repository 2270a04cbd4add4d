package presence

// EventType identifies an outbound room event.
type EventType string

const (
	EventMemberActive   EventType = "member.active"
	EventMemberInactive EventType = "member.inactive"
	EventActiveCount    EventType = "channel.active_count"
	EventError          EventType = "error"
)

// Event is the wire payload broadcast to room subscribers. Count is a
// pointer so that a count of zero still serializes.
type Event struct {
	Type     EventType `json:"type"`
	Channel  string    `json:"channel,omitempty"`
	MemberID string    `json:"memberId,omitempty"`
	Name     string    `json:"name,omitempty"`
	Count    *int      `json:"count,omitempty"`
	Code     string    `json:"code,omitempty"`
	Message  string    `json:"message,omitempty"`
}

func MemberActiveEvent(channel, memberID, name string) Event {
	return Event{Type: EventMemberActive, Channel: channel, MemberID: memberID, Name: name}
}

func MemberInactiveEvent(channel, memberID, name string) Event {
	return Event{Type: EventMemberInactive, Channel: channel, MemberID: memberID, Name: name}
}

func ActiveCountEvent(channel string, count int) Event {
	c := count
	return Event{Type: EventActiveCount, Channel: channel, Count: &c}
}

func ErrorEvent(code, message string) Event {
	return Event{Type: EventError, Code: code, Message: message}
}

// Broadcaster fans an event out to every connection subscribed to a
// channel's room. Delivery must be non-blocking per subscriber: a slow
// receiver must not stall the transition that triggered the publish.
type Broadcaster interface {
	Subscribe(channel, connID string)
	Unsubscribe(channel, connID string)
	Publish(channel string, event Event, exclude ...string)
	SendTo(connID string, event Event)
}
