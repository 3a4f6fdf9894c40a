package session

// State is the lifecycle state of a LAN session.
type State uint8

const (
	// StateInactive means no usable session keys exist.
	StateInactive State = iota
	// StateHandshaking means a key exchange is being processed.
	StateHandshaking
	// StateActive means the session keys are valid and commands flow.
	StateActive
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}
