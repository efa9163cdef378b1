package transport

// Role identifies which side of a session a peer has declared itself to
// be, and is folded into the AEAD additional data for every frame sent on
// that session so that a frame from an Admin session can never be
// replayed into a Consumer session (they use different AEAD keys too,
// since the session key derivation binds the role into its HKDF info
// label — this is defense in depth, not the only guard).
type Role byte

const (
	// RoleAdmin identifies the Admin control-plane peer.
	RoleAdmin Role = 0
	// RoleConsumer identifies the Consumer evaluation peer.
	RoleConsumer Role = 1
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleConsumer:
		return "consumer"
	default:
		return "unknown"
	}
}

// Kind distinguishes the three shapes a Message can take on the wire.
type Kind uint8

const (
	// KindRequest is a message expecting a Response with the same
	// CorrelationID.
	KindRequest Kind = iota
	// KindResponse is a reply to a previously received KindRequest.
	KindResponse
	// KindHeartbeat is an empty keepalive, sent periodically and never
	// replied to.
	KindHeartbeat
)

// WireError is the CBOR representation of an error crossing the wire,
// mirroring the Runtime Host Protocol's module+code+message error shape
// so it can round-trip through common/errors.FromCode on the far side.
type WireError struct {
	Module  string `cbor:"module"`
	Code    uint32 `cbor:"code"`
	Message string `cbor:"message"`
}

// Message is the logical unit exchanged over an encrypted Conn. Method
// distinguishes request bodies within a given Kind (e.g. "orm.select",
// "job.execute", "job.result"); Payload is the CBOR-encoded body specific
// to that method, interpreted by the session/orm/job packages layered on
// top of this transport.
type Message struct {
	Kind          Kind       `cbor:"kind"`
	CorrelationID string     `cbor:"correlation_id"`
	Method        string     `cbor:"method"`
	Payload       []byte     `cbor:"payload"`
	Error         *WireError `cbor:"error,omitempty"`
}
