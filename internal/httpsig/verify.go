package httpsig

import (
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"time"

	oed25519 "github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/CortexLM/challenge/common/errors"
	"github.com/CortexLM/challenge/internal/crypto"
)

// MaxClockSkew bounds how far a request's X-Timestamp may drift from now
// before it is rejected as a replay candidate, mirroring the anti-replay
// purpose the nonce and timestamp headers serve on the sending side.
const MaxClockSkew = 5 * time.Minute

// VerifyRequest checks an inbound request's X-Signature/X-Timestamp/
// X-Nonce/X-Public-Key headers against the canonical string this
// package's Client signs, returning the caller's verified Ed25519 public
// key. allowedKey, if non-nil, additionally requires the request's
// declared public key to match it exactly (used to pin requests to a
// specific known peer, e.g. Admin).
func VerifyRequest(r *http.Request, body []byte, allowedKey oed25519.PublicKey) (oed25519.PublicKey, error) {
	sigB64 := r.Header.Get("X-Signature")
	timestamp := r.Header.Get("X-Timestamp")
	nonce := r.Header.Get("X-Nonce")
	pubB64 := r.Header.Get("X-Public-Key")
	if sigB64 == "" || timestamp == "" || nonce == "" || pubB64 == "" {
		return nil, errors.WithContext(ErrSignatureRejected, "missing signature headers")
	}

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, errors.WithContext(ErrSignatureRejected, "malformed signature header")
	}
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return nil, errors.WithContext(ErrSignatureRejected, "malformed public key header")
	}
	if allowedKey != nil && !hmacEqual(pub, allowedKey) {
		return nil, errors.WithContext(ErrSignatureRejected, "public key not recognized")
	}

	if err := checkSkew(timestamp); err != nil {
		return nil, err
	}

	bodyHash := sha256.Sum256(body)
	payload := canonicalString(r.Method, r.URL.Path, bodyHash, timestamp, nonce)
	if err := crypto.Verify(pub, payload, sig); err != nil {
		return nil, errors.WithContext(ErrSignatureRejected, "signature does not verify")
	}
	return oed25519.PublicKey(pub), nil
}

func checkSkew(timestamp string) error {
	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.WithContext(ErrSignatureRejected, "malformed timestamp header")
	}
	ts := time.Unix(secs, 0)
	if skew := time.Since(ts); skew > MaxClockSkew || skew < -MaxClockSkew {
		return errors.WithContext(ErrSignatureRejected, "timestamp outside allowed clock skew")
	}
	return nil
}

func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

// ReadAndRestoreBody reads r.Body fully and replaces it with a fresh
// reader over the same bytes, so the body can be hashed for signature
// verification and still be decoded by the handler afterwards.
func ReadAndRestoreBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(&sliceReader{b: body})
	return body, nil
}

type sliceReader struct {
	b []byte
	i int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.i >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.i:])
	s.i += n
	return n, nil
}
