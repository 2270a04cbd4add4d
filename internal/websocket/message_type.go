package websocket

// MessageType identifies an inbound client message.
type MessageType string

const (
	MessageTypeJoin      MessageType = "channel.join"
	MessageTypeHeartbeat MessageType = "channel.heartbeat"
	MessageTypeLeave     MessageType = "channel.leave"
	MessageTypeChat      MessageType = "channel.message"
)

func (mt MessageType) IsValid() bool {
	switch mt {
	case MessageTypeJoin, MessageTypeHeartbeat, MessageTypeLeave, MessageTypeChat:
		return true
	default:
		return false
	}
}

// InboundMessage is the envelope clients send over the socket. Join,
// heartbeat and leave carry channel+memberId; chat adds text.
type InboundMessage struct {
	Type     MessageType `json:"type"`
	Channel  string      `json:"channel"`
	MemberID string      `json:"memberId"`
	Text     string      `json:"text,omitempty"`
}

// Error codes sent back to the originating connection only.
const (
	ErrCodeMemberNotFound   = "MEMBER_NOT_FOUND"
	ErrCodeAlreadyBound     = "ALREADY_BOUND"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeNotJoined        = "NOT_JOINED"
	ErrCodeBadMessage       = "BAD_MESSAGE"
	ErrCodeInternal         = "INTERNAL"
)
