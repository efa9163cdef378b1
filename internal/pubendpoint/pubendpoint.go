// Package pubendpoint verifies proxy-issued bearer tokens on inbound
// public HTTP calls and recovers the caller claims they carry, so a
// registered public handler can be invoked with verified caller identity
// injected into its context.
package pubendpoint

import (
	"encoding/json"
	"time"

	"github.com/CortexLM/challenge/common/errors"
	oed25519 "github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/CortexLM/challenge/internal/crypto"
)

const moduleName = "pubendpoint"

// DefaultTTL is the maximum age a token's issued_at may have before it is
// rejected.
const DefaultTTL = 120 * time.Second

var (
	// ErrExpired is returned when a token's issued_at is older than the
	// configured TTL.
	ErrExpired = errors.New(moduleName, 1, "pubendpoint: token expired")
	// ErrBadSignature is returned when the claim signature does not
	// verify under the recorded Admin public key.
	ErrBadSignature = errors.New(moduleName, 2, "pubendpoint: token signature invalid")
)

// Claims is the claim set carried by a proxy-issued token, signed by the
// Admin's long-term Ed25519 key.
type Claims struct {
	UID             string `json:"uid"`
	MinerHotkey     string `json:"miner_hotkey"`
	JobID           string `json:"job_id"`
	ChallengeID     string `json:"challenge_id"`
	JobType         string `json:"job_type"`
	IssuedAt        int64  `json:"issued_at"`
}

// Token is the full proxy-issued bearer token, claims plus signature.
type Token struct {
	Claims
	Signature []byte `json:"sig"`
}

// canonicalClaims returns the exact JSON bytes the signature covers: the
// Claims fields alone, serialized in struct-declaration field order, with
// the signature excluded.
func canonicalClaims(c Claims) ([]byte, error) {
	return json.Marshal(c)
}

// Mediator verifies tokens against a single recorded Admin public key.
type Mediator struct {
	adminPublicKey oed25519.PublicKey
	ttl            time.Duration
	now            func() time.Time
}

// New creates a Mediator verifying tokens against adminPublicKey, the
// long-term Ed25519 key recorded from the Admin's attestation envelope at
// handshake.
func New(adminPublicKey oed25519.PublicKey) *Mediator {
	return &Mediator{
		adminPublicKey: adminPublicKey,
		ttl:            DefaultTTL,
		now:            time.Now,
	}
}

// WithTTL returns a copy of m using ttl instead of DefaultTTL.
func (m *Mediator) WithTTL(ttl time.Duration) *Mediator {
	cp := *m
	cp.ttl = ttl
	return &cp
}

// Verify checks tok's signature and TTL, returning its Claims on success.
func (m *Mediator) Verify(tok *Token) (*Claims, error) {
	age := m.now().Sub(time.Unix(tok.IssuedAt, 0))
	if age > m.ttl {
		return nil, ErrExpired
	}

	payload, err := canonicalClaims(tok.Claims)
	if err != nil {
		return nil, errors.WithContext(ErrBadSignature, err.Error())
	}

	if err := crypto.Verify(m.adminPublicKey, payload, tok.Signature); err != nil {
		return nil, ErrBadSignature
	}

	claims := tok.Claims
	return &claims, nil
}

// Sign produces the signature an Admin attaches to a token carrying
// claims, used by test fixtures and the Admin-side token issuer.
func Sign(priv oed25519.PrivateKey, claims Claims) ([]byte, error) {
	payload, err := canonicalClaims(claims)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(priv, payload), nil
}
