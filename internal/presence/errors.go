package presence

import "errors"

var (
	// ErrNotFound is returned by Store implementations when a channel or
	// member record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrMemberNotFound means a join referenced an identity that is neither
	// a channel member nor the channel owner. Reported to the joining
	// connection only; shared state is left untouched.
	ErrMemberNotFound = errors.New("member not found in channel")

	// ErrStoreUnavailable wraps identity store failures. The transition that
	// hit it is aborted without mutating presence state.
	ErrStoreUnavailable = errors.New("identity store unavailable")

	// ErrAlreadyBound means a connection tried to join a second channel (or
	// a second identity) without leaving first.
	ErrAlreadyBound = errors.New("connection already bound")

	// ErrNotConnected means the connection handle is unknown to the
	// registry, typically because the transport closed while a join was
	// still waiting on the store.
	ErrNotConnected = errors.New("connection not registered")

	// ErrInternalInconsistency indicates the registry and presence table
	// disagree. It should be unreachable; when it fires it points at a
	// locking bug, so it is surfaced instead of silently repaired.
	ErrInternalInconsistency = errors.New("presence state inconsistency")
)
