package transport

import (
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/CortexLM/challenge/common/errors"
	"github.com/CortexLM/challenge/internal/crypto"
	"github.com/CortexLM/challenge/internal/identity"
)

// ErrHandshake is returned when the attestation handshake fails before an
// encrypted Conn can be established.
var ErrHandshake = errors.New(moduleName, 5, "transport: handshake failed")

// helloMessage is exchanged as JSON, one websocket text message per hello
// (the websocket message boundary delimits it; there is no length prefix),
// before either side switches into the binary encrypted-frame mode.
type helloMessage struct {
	Envelope *identity.AttestationEnvelope `json:"envelope"`
	// Salt is the HKDF salt for session key derivation, present only on
	// the initiator's hello.
	Salt []byte `json:"salt,omitempty"`
}

func sessionKeyInfo(role Role) string {
	return fmt.Sprintf("challenge/session/%s", role.String())
}

// deriveKey runs the shared ECDH+HKDF step common to both handshake
// sides. Dev and production mode use the same salt (the initiator's fresh
// random one) and the same role-bound info label, so there is a single
// frame codec path and no plaintext one.
func deriveKey(selfPriv *[crypto.X25519Size]byte, peerPub *[crypto.X25519Size]byte, salt []byte, role Role) ([]byte, error) {
	return crypto.ECDHAndDerive(selfPriv, peerPub, salt, sessionKeyInfo(role))
}

func peerSessionPubKey(env *identity.AttestationEnvelope) (*[crypto.X25519Size]byte, error) {
	if len(env.SessionPublicKey) != crypto.X25519Size {
		return nil, errors.WithContext(ErrHandshake, "bad session public key length")
	}
	var out [crypto.X25519Size]byte
	copy(out[:], env.SessionPublicKey)
	return &out, nil
}

// ClientHandshake performs the initiator side of the attestation
// handshake: build and send our envelope plus a fresh HKDF salt, receive
// and verify the peer's envelope, derive the shared session key, and
// return a ready encrypted Conn.
func ClientHandshake(ws *websocket.Conn, id *identity.Identity, qp identity.QuoteProvider, role Role, handler Handler) (*Conn, *identity.AttestationEnvelope, error) {
	sessionKeys, err := id.NewSessionKeys()
	if err != nil {
		return nil, nil, err
	}

	env, err := identity.Build(id, role.String(), &sessionKeys.Public, qp)
	if err != nil {
		return nil, nil, err
	}

	salt, err := crypto.RandomBytes(32)
	if err != nil {
		return nil, nil, err
	}

	if err := ws.WriteJSON(&helloMessage{Envelope: env, Salt: salt}); err != nil {
		return nil, nil, errors.WithContext(ErrHandshake, err.Error())
	}

	var peerHello helloMessage
	if err := ws.ReadJSON(&peerHello); err != nil {
		return nil, nil, errors.WithContext(ErrHandshake, err.Error())
	}
	if err := identity.VerifySignature(peerHello.Envelope); err != nil {
		return nil, nil, err
	}
	if peerHello.Envelope.Role != role.String() {
		return nil, nil, errors.WithContext(identity.ErrRejected, "role mismatch in handshake reply")
	}

	peerPub, err := peerSessionPubKey(peerHello.Envelope)
	if err != nil {
		return nil, nil, err
	}

	key, err := deriveKey(&sessionKeys.Private, peerPub, salt, role)
	if err != nil {
		return nil, nil, err
	}

	return New(ws, role, key, handler), peerHello.Envelope, nil
}

// ServerHandshake performs the acceptor side of the attestation
// handshake for a connection declaring expectedRole.
func ServerHandshake(ws *websocket.Conn, id *identity.Identity, qp identity.QuoteProvider, expectedRole Role, handler Handler) (*Conn, *identity.AttestationEnvelope, error) {
	var peerHello helloMessage
	if err := ws.ReadJSON(&peerHello); err != nil {
		return nil, nil, errors.WithContext(ErrHandshake, err.Error())
	}
	if err := identity.VerifySignature(peerHello.Envelope); err != nil {
		return nil, nil, err
	}
	if peerHello.Envelope.Role != expectedRole.String() {
		return nil, nil, errors.WithContext(identity.ErrRejected, "declared role does not match expected session role")
	}
	if len(peerHello.Salt) != 32 {
		return nil, nil, errors.WithContext(ErrHandshake, "missing or malformed handshake salt")
	}

	sessionKeys, err := id.NewSessionKeys()
	if err != nil {
		return nil, nil, err
	}

	env, err := identity.Build(id, expectedRole.String(), &sessionKeys.Public, qp)
	if err != nil {
		return nil, nil, err
	}
	if err := ws.WriteJSON(&helloMessage{Envelope: env}); err != nil {
		return nil, nil, errors.WithContext(ErrHandshake, err.Error())
	}

	peerPub, err := peerSessionPubKey(peerHello.Envelope)
	if err != nil {
		return nil, nil, err
	}

	key, err := deriveKey(&sessionKeys.Private, peerPub, peerHello.Salt, expectedRole)
	if err != nil {
		return nil, nil, err
	}

	return New(ws, expectedRole, key, handler), peerHello.Envelope, nil
}
