package identity

import (
	"crypto/sha256"

	"github.com/CortexLM/challenge/common/cbor"
	"github.com/CortexLM/challenge/common/errors"
	"github.com/CortexLM/challenge/internal/crypto"
)

const attestationModule = "attestation"

var (
	// ErrQuoteUnavailable is returned when the TEE quoting mechanism
	// cannot produce a quote (no quoting device, dev mode misconfigured).
	ErrQuoteUnavailable = errors.New(attestationModule, 1, "attestation: quote unavailable")
	// ErrRejected is returned when a peer rejects a submitted attestation
	// envelope (bad signature, stale nonce, quote the peer considers
	// untrustworthy).
	ErrRejected = errors.New(attestationModule, 2, "attestation: envelope rejected by peer")
)

// devQuoteMagic prefixes the deterministic stub quote produced in dev
// mode, so that a peer configured to reject non-TEE quotes can detect and
// refuse it deliberately rather than by accident.
var devQuoteMagic = []byte("DEV-MODE-STUB-QUOTE-DO-NOT-TRUST")

// QuoteProvider produces a TEE quote, plus its accompanying event log
// (the measured-boot/compose record a verifier replays the quote's RTMRs
// against), binding the given 32-byte report data. This module never
// verifies quotes (that is the remote peer's job); it only ever produces
// them.
type QuoteProvider interface {
	GetQuote(reportData [32]byte) (quote []byte, eventLog []byte, err error)
}

// DevQuoteProvider is a deterministic stand-in for a real TEE quoting
// device, used when the process is launched in dev mode. It produces a
// recognizable, non-cryptographic "quote" that embeds the report data so
// round-trip tests can assert on it, modeled on the mock attestation
// verification report this module's ancestor used for IAS-less testing.
type DevQuoteProvider struct{}

// devEventLog is the fixed event log paired with the dev-mode stub quote,
// mirroring the {"environment_mode": "dev"} placeholder record the peer's
// attestation client expects to find in a dev deployment.
var devEventLog = []byte(`{"environment_mode":"dev"}`)

// GetQuote implements QuoteProvider.
func (DevQuoteProvider) GetQuote(reportData [32]byte) ([]byte, []byte, error) {
	quote := make([]byte, 0, len(devQuoteMagic)+len(reportData))
	quote = append(quote, devQuoteMagic...)
	quote = append(quote, reportData[:]...)
	return quote, devEventLog, nil
}

// AttestationEnvelope is submitted by this process to a connecting peer to
// prove both its cryptographic identity and (outside dev mode) that it is
// running inside an attested TEE.
type AttestationEnvelope struct {
	IdentityPublicKey []byte `cbor:"identity_public_key" json:"ed25519_pub"`
	SessionPublicKey  []byte `cbor:"session_public_key" json:"x25519_pub"`
	Nonce             []byte `cbor:"nonce" json:"nonce"`
	Quote             []byte `cbor:"quote" json:"quote"`
	// EventLog is the measured-boot/compose record a verifier replays the
	// quote's RTMRs against.
	EventLog []byte `cbor:"event_log" json:"event_log"`
	// Role is the peer role this session is declared for ("admin" or
	// "consumer"); it is part of the signed payload so a peer cannot
	// relay an envelope meant for one role into a session of the other.
	Role string `cbor:"role" json:"role"`
	// Signature is the Ed25519 signature, by IdentityPublicKey, over the
	// canonical CBOR encoding of every other field.
	Signature []byte `cbor:"signature" json:"signature"`
}

func reportData(identityPub, sessionPub, nonce []byte) [32]byte {
	h := sha256.New()
	_, _ = h.Write(identityPub)
	_, _ = h.Write(sessionPub)
	_, _ = h.Write(nonce)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func signingPayload(env *AttestationEnvelope) []byte {
	unsigned := *env
	unsigned.Signature = nil
	return cbor.Marshal(&unsigned)
}

// Build constructs and signs a new AttestationEnvelope for the given peer
// role and ephemeral session public key, using qp to obtain the TEE quote
// bound to this identity's public keys and a fresh nonce. sessionPub is
// supplied by the caller (one per handshake) rather than read off id, since
// the ephemeral session keypair is not process-wide state.
func Build(id *Identity, role string, sessionPub *[crypto.X25519Size]byte, qp QuoteProvider) (*AttestationEnvelope, error) {
	nonce, err := crypto.RandomBytes(32)
	if err != nil {
		return nil, err
	}

	rd := reportData(id.PublicKey(), sessionPub[:], nonce)

	quote, eventLog, err := qp.GetQuote(rd)
	if err != nil {
		return nil, errors.WithContext(ErrQuoteUnavailable, err.Error())
	}

	env := &AttestationEnvelope{
		IdentityPublicKey: append([]byte{}, id.PublicKey()...),
		SessionPublicKey:  append([]byte{}, sessionPub[:]...),
		Nonce:             nonce,
		Quote:             quote,
		EventLog:          eventLog,
		Role:              role,
	}
	env.Signature = id.Sign(signingPayload(env))

	return env, nil
}

// VerifySignature checks that the envelope's signature was produced by
// the identity key it itself carries. It does not verify the TEE quote;
// per this module's design, quote verification is always delegated to
// the remote peer.
func VerifySignature(env *AttestationEnvelope) error {
	if len(env.IdentityPublicKey) != crypto.PublicKeySize {
		return ErrRejected
	}
	if err := crypto.Verify(env.IdentityPublicKey, signingPayload(env), env.Signature); err != nil {
		return errors.WithContext(ErrRejected, err.Error())
	}
	return nil
}
