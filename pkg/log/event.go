package log

import (
	"strings"
	"time"
)

// Event is a connection event captured by a listener layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the connection (UUID). Empty for
	// listener-level events such as backoff.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Layer where the event was captured.
	Layer Layer `cbor:"3,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"4,keyasint"`

	// LocalAddr is the listener address.
	LocalAddr string `cbor:"5,keyasint,omitempty"`

	// RemoteAddr is the peer address.
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Exactly one of these is set.
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Backoff     *BackoffEvent     `cbor:"11,keyasint,omitempty"`
	Handshake   *HandshakeEvent   `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Layer indicates which listener layer captured the event.
type Layer uint8

const (
	// LayerAccept is the accept loop.
	LayerAccept Layer = 0
	// LayerTransport is a raw socket adapter.
	LayerTransport Layer = 1
	// LayerTLS is the TLS listener.
	LayerTLS Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerAccept:
		return "ACCEPT"
	case LayerTransport:
		return "TRANSPORT"
	case LayerTLS:
		return "TLS"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer parses a layer name, case-insensitively.
func ParseLayer(s string) (Layer, bool) {
	switch strings.ToUpper(s) {
	case "ACCEPT":
		return LayerAccept, true
	case "TRANSPORT":
		return LayerTransport, true
	case "TLS":
		return LayerTLS, true
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState is a connection or listener state change.
	CategoryState Category = 0
	// CategoryBackoff is an accept retry decision.
	CategoryBackoff Category = 1
	// CategoryHandshake is a completed TLS handshake.
	CategoryHandshake Category = 2
	// CategoryError is an error at any layer.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryBackoff:
		return "BACKOFF"
	case CategoryHandshake:
		return "HANDSHAKE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToUpper(s) {
	case "STATE":
		return CategoryState, true
	case "BACKOFF":
		return CategoryBackoff, true
	case "HANDSHAKE":
		return CategoryHandshake, true
	case "ERROR":
		return CategoryError, true
	}
	return 0, false
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntityConnection is a single connection.
	StateEntityConnection StateEntity = 0
	// StateEntityListener is a listener.
	StateEntityListener StateEntity = 1
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityListener:
		return "LISTENER"
	default:
		return "UNKNOWN"
	}
}

// Connection and listener states used in StateChangeEvent.
const (
	StateAccepted    = "ACCEPTED"
	StateHandshaking = "HANDSHAKING"
	StateStreaming   = "STREAMING"
	StateFailed      = "FAILED"
	StateClosed      = "CLOSED"
)

// StateChangeEvent captures connection and listener lifecycle transitions.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// ErrorClass is how the accept loop classified an accept error.
type ErrorClass uint8

const (
	// ErrorClassConnection affects only the attempted connection.
	ErrorClassConnection ErrorClass = 0
	// ErrorClassResource is a listener-wide condition such as EMFILE.
	ErrorClassResource ErrorClass = 1
)

// String returns the class name.
func (c ErrorClass) String() string {
	switch c {
	case ErrorClassConnection:
		return "CONNECTION"
	case ErrorClassResource:
		return "RESOURCE"
	default:
		return "UNKNOWN"
	}
}

// BackoffEvent records an accept retry decision.
type BackoffEvent struct {
	// Class of the error that caused the retry.
	Class ErrorClass `cbor:"1,keyasint"`

	// Delay before the next accept attempt. Zero means immediate.
	Delay time.Duration `cbor:"2,keyasint"`

	// Message is the accept error text.
	Message string `cbor:"3,keyasint"`
}

// HandshakeEvent records a completed TLS handshake.
type HandshakeEvent struct {
	Version          uint16        `cbor:"1,keyasint"`
	CipherSuite      uint16        `cbor:"2,keyasint"`
	Protocol         string        `cbor:"3,keyasint,omitempty"`
	ServerName       string        `cbor:"4,keyasint,omitempty"`
	PeerCertificates int           `cbor:"5,keyasint,omitempty"`
	Resumed          bool          `cbor:"6,keyasint,omitempty"`
	Duration         time.Duration `cbor:"7,keyasint"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context describes the operation being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
