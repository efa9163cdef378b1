package crypto

import (
	"crypto/sha256"
	"crypto/sha512"

	"filippo.io/edwards25519"
	oed25519 "github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/CortexLM/challenge/common/errors"
)

// sealedBoxInfo is the HKDF info label binding sealed-box keys to their
// purpose, so a key derived here can never collide with a session key
// derived by DeriveSessionKey for the same DH shared secret.
const sealedBoxInfo = "challenge/sealedbox/v1"

// Ed25519PublicKeyToX25519 converts a long-term Ed25519 identity public
// key to its birationally equivalent X25519 (Curve25519) public key, by
// mapping the Edwards y-coordinate to the Montgomery u-coordinate.
//
// This coupling (one Ed25519 identity serving both signing and, via
// conversion, anonymous-encryption key agreement) is an accepted protocol
// property: do not change the conversion without a protocol version bump,
// since the remote peer computes the same conversion independently to
// produce SealedCredentials.
func Ed25519PublicKeyToX25519(pub oed25519.PublicKey) (*[X25519Size]byte, error) {
	if len(pub) != PublicKeySize {
		return nil, errors.WithContext(ErrDecrypt, "bad ed25519 public key size")
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, errors.WithContext(ErrDecrypt, "not a valid curve point")
	}
	var out [X25519Size]byte
	copy(out[:], p.BytesMontgomery())
	return &out, nil
}

// Ed25519PrivateKeyToX25519 converts a long-term Ed25519 identity private
// key to its corresponding X25519 private scalar, following the same
// seed-hash-and-clamp construction used by the underlying Ed25519
// implementation to derive its own signing scalar.
func Ed25519PrivateKeyToX25519(priv oed25519.PrivateKey) [X25519Size]byte {
	h := sha512.Sum512(priv.Seed())
	var x [X25519Size]byte
	copy(x[:], h[:32])
	x[0] &= 248
	x[31] &= 127
	x[31] |= 64
	return x
}

// SealedBoxSeal anonymously encrypts plaintext to the recipient's
// long-term Ed25519 public key: a fresh ephemeral X25519 key pair is
// generated, the shared secret with the recipient's converted X25519 key
// is derived, and the ciphertext is prefixed with the ephemeral public
// key so the recipient can recompute the same shared secret.
func SealedBoxSeal(recipientPub oed25519.PublicKey, plaintext []byte) ([]byte, error) {
	recipientX25519, err := Ed25519PublicKeyToX25519(recipientPub)
	if err != nil {
		return nil, err
	}

	eph, err := GenerateX25519()
	if err != nil {
		return nil, err
	}

	key, err := ECDHAndDerive(&eph.Private, recipientX25519, eph.Public[:], sealedBoxInfo)
	if err != nil {
		return nil, err
	}

	nonce := sealedBoxNonce(eph.Public[:], recipientPub)
	ct, err := AEADSeal(key, nonce, plaintext, eph.Public[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, X25519Size+len(ct))
	out = append(out, eph.Public[:]...)
	out = append(out, ct...)
	return out, nil
}

// SealedBoxOpen decrypts a blob produced by SealedBoxSeal using the
// recipient's long-term Ed25519 private key.
func SealedBoxOpen(recipientPub oed25519.PublicKey, recipientPriv oed25519.PrivateKey, sealed []byte) ([]byte, error) {
	if len(sealed) < X25519Size {
		return nil, ErrDecrypt
	}
	var ephPub [X25519Size]byte
	copy(ephPub[:], sealed[:X25519Size])
	ct := sealed[X25519Size:]

	x25519Priv := Ed25519PrivateKeyToX25519(recipientPriv)
	defer Bzero(x25519Priv[:])

	key, err := ECDHAndDerive(&x25519Priv, &ephPub, ephPub[:], sealedBoxInfo)
	if err != nil {
		return nil, err
	}

	nonce := sealedBoxNonce(ephPub[:], recipientPub)
	return AEADOpen(key, nonce, ct, ephPub[:])
}

// sealedBoxNonce derives a deterministic 12-byte nonce from the ephemeral
// and recipient public keys. Since the ephemeral key is freshly generated
// for every SealedBoxSeal call, the (key, nonce) pair is never reused.
func sealedBoxNonce(ephPub []byte, recipientPub oed25519.PublicKey) []byte {
	h := sha256.New()
	_, _ = h.Write(ephPub)
	_, _ = h.Write(recipientPub)
	sum := h.Sum(nil)
	return sum[:NonceSize]
}
