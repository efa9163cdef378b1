// Package identity manages this process's cryptographic identity: a
// long-term Ed25519 signing key plus, for each peer session, an ephemeral
// X25519 key pair used for key agreement. Unlike the node identity this
// package is modeled on, nothing here is persisted to disk — the process
// is expected to live inside a confidential VM for exactly one run, and a
// restart gets a fresh identity.
package identity

import (
	"encoding/hex"

	oed25519 "github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/CortexLM/challenge/common/logging"
	"github.com/CortexLM/challenge/internal/crypto"
)

var logger = logging.GetLogger("identity")

// Identity bundles this process's long-term signing key. Ephemeral
// per-session X25519 key pairs are generated by NewSessionKeys and owned by
// the caller (one handshake, one Conn), never stored here: Admin and
// Consumer sessions are established concurrently by independent goroutines,
// so a shared mutable keypair field would let one handshake clobber the
// other's in-flight ephemeral key.
type Identity struct {
	signer *crypto.Ed25519KeyPair
}

// New generates a fresh long-term Ed25519 identity.
func New() (*Identity, error) {
	kp, err := crypto.GenerateEd25519()
	if err != nil {
		return nil, err
	}
	logger.Info("generated process identity", "public_key", hex.EncodeToString(kp.Public))
	return &Identity{signer: kp}, nil
}

// PublicKey returns the long-term Ed25519 public key.
func (id *Identity) PublicKey() oed25519.PublicKey {
	return id.signer.Public
}

// Sign produces an Ed25519 signature over message using the long-term key.
func (id *Identity) Sign(message []byte) []byte {
	return crypto.Sign(id.signer.Private, message)
}

// PrivateKey returns the long-term Ed25519 private key, for use by the
// sealed-credentials decrypt path. Callers must not retain or log it.
func (id *Identity) PrivateKey() oed25519.PrivateKey {
	return id.signer.Private
}

// NewSessionKeys generates a fresh ephemeral X25519 key pair for one new
// peer session. The caller owns the returned pair for the lifetime of that
// single handshake/Conn; it must never be reused across sessions.
func (id *Identity) NewSessionKeys() (*crypto.X25519KeyPair, error) {
	return crypto.GenerateX25519()
}
