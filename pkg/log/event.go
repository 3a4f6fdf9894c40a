package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the LAN session (UUID minted per handshake).
	// Empty before the first successful key exchange.
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this is the app or the device.
	LocalRole Role `cbor:"6,keyasint"`

	// RemoteAddr is the peer address (IP or IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// DSN is the device serial number.
	DSN string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Control     *ControlEvent     `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerHTTP is the plaintext HTTP exchange.
	LayerHTTP Layer = 0
	// LayerEnvelope is the encrypted envelope (decoded payload).
	LayerEnvelope Layer = 1
	// LayerSession is the session state machine.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerHTTP:
		return "HTTP"
	case LayerEnvelope:
		return "ENVELOPE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryControl indicates a control exchange (registration, poll, mDNS).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which side of the session logged the event.
type Role uint8

const (
	// RoleApp indicates the app side.
	RoleApp Role = 0
	// RoleDevice indicates the device side.
	RoleDevice Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleApp:
		return "APP"
	case RoleDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures one HTTP exchange or envelope.
type MessageEvent struct {
	// Method is the HTTP method.
	Method string `cbor:"1,keyasint,omitempty"`

	// Path is the request path without the query.
	Path string `cbor:"2,keyasint,omitempty"`

	// Status is the HTTP status (responses only).
	Status int `cbor:"3,keyasint,omitempty"`

	// CmdID is the command the message belongs to, if any.
	CmdID *uint32 `cbor:"4,keyasint,omitempty"`

	// SeqNo is the envelope sequence number, if any.
	SeqNo *int64 `cbor:"5,keyasint,omitempty"`

	// Size is the body size in bytes.
	Size int `cbor:"6,keyasint,omitempty"`

	// Payload is the decrypted data, when capture of payloads is enabled.
	Payload []byte `cbor:"7,keyasint,omitempty"`

	// ProcessingTime is the handler duration (responses only).
	ProcessingTime *time.Duration `cbor:"8,keyasint,omitempty"`
}

// StateChangeEvent captures session and rediscovery lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntitySession indicates a LAN session state change.
	StateEntitySession StateEntity = 0
	// StateEntityRediscovery indicates an mDNS rediscovery state change.
	StateEntityRediscovery StateEntity = 1
	// StateEntityKeepAlive indicates the keep-alive timer started or stopped.
	StateEntityKeepAlive StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityRediscovery:
		return "REDISCOVERY"
	case StateEntityKeepAlive:
		return "KEEPALIVE"
	default:
		return "UNKNOWN"
	}
}

// ControlEvent captures a control exchange.
type ControlEvent struct {
	// Type of control exchange.
	Type ControlType `cbor:"1,keyasint"`

	// Notify is the notify flag of a registration.
	Notify bool `cbor:"2,keyasint,omitempty"`

	// Detail is free-form context such as the resolved address.
	Detail string `cbor:"3,keyasint,omitempty"`
}

// ControlType indicates the type of control exchange.
type ControlType uint8

const (
	// ControlRegistration is a local_reg ping sent to the device.
	ControlRegistration ControlType = 0
	// ControlPoll is a command poll from the device.
	ControlPoll ControlType = 1
	// ControlMDNSQuery is an mDNS rediscovery query.
	ControlMDNSQuery ControlType = 2
	// ControlKeyExchange is a key exchange request.
	ControlKeyExchange ControlType = 3
)

// String returns the control type name.
func (c ControlType) String() string {
	switch c {
	case ControlRegistration:
		return "REGISTRATION"
	case ControlPoll:
		return "POLL"
	case ControlMDNSQuery:
		return "MDNS_QUERY"
	case ControlKeyExchange:
		return "KEY_EXCHANGE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Status is the HTTP status returned for the error, if any.
	Status *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
