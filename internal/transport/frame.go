package transport

import (
	"encoding/binary"
	"fmt"

	"github.com/CortexLM/challenge/common/errors"
	"github.com/CortexLM/challenge/internal/crypto"
)

const moduleName = "transport"

var (
	// ErrReplay is returned when a received frame's sequence number is
	// not strictly greater than the last one accepted in that direction.
	ErrReplay = errors.New(moduleName, 1, "transport: replayed or out-of-order sequence number")
	// ErrIntegrity is returned when a frame fails AEAD authentication.
	ErrIntegrity = errors.New(moduleName, 2, "transport: frame failed authentication")
	// ErrOversize is returned when a frame exceeds the maximum size.
	ErrOversize = errors.New(moduleName, 3, "transport: frame exceeds maximum size")
	// ErrIdle is the coded error for an idle timeout. Conn does not
	// return it: on an idle timeout it logs and closes itself.
	ErrIdle = errors.New(moduleName, 4, "transport: connection idle timeout")
)

// MaxFrameSize is the largest whole frame (seq || nonce || ciphertext)
// this transport will read or write.
const MaxFrameSize = 16 * 1024 * 1024

// frameHeaderSize is the length, in bytes, of the seq || nonce prefix
// that precedes every frame's AEAD ciphertext on the wire.
const frameHeaderSize = 8 + crypto.NonceSize

// encodeFrame encrypts plaintext under key with the given sequence number
// and role-bound additional data, returning the wire-format frame:
// seq(8, BE) || nonce(12) || AEAD(ciphertext || tag).
//
// Each encodeFrame/decodeFrame pair corresponds to exactly one message on
// the underlying duplex transport (a WebSocket text/binary frame), so no
// additional length-prefixing is needed here.
func encodeFrame(key []byte, role byte, seq uint64, plaintext []byte) ([]byte, error) {
	nonce, err := crypto.RandomBytes(crypto.NonceSize)
	if err != nil {
		return nil, err
	}

	aad := frameAAD(role, seq)
	ct, err := crypto.AEADSeal(key, nonce, plaintext, aad)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, frameHeaderSize+len(ct))
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	out = append(out, seqBuf[:]...)
	out = append(out, nonce...)
	out = append(out, ct...)

	if len(out) > MaxFrameSize {
		return nil, ErrOversize
	}
	return out, nil
}

// decodeFrame decrypts a wire-format frame under key for the given role,
// enforcing that its sequence number is strictly greater than lastSeq
// (0 meaning "none received yet in this direction").
func decodeFrame(frame []byte, key []byte, role byte, lastSeq uint64) (plaintext []byte, seq uint64, err error) {
	if len(frame) > MaxFrameSize {
		framesDropped.WithLabelValues("oversize").Inc()
		return nil, 0, ErrOversize
	}
	if len(frame) < frameHeaderSize {
		framesDropped.WithLabelValues("integrity").Inc()
		return nil, 0, ErrIntegrity
	}

	seq = binary.BigEndian.Uint64(frame[:8])
	nonce := frame[8:frameHeaderSize]
	ct := frame[frameHeaderSize:]

	if seq <= lastSeq {
		framesDropped.WithLabelValues("replay").Inc()
		return nil, 0, ErrReplay
	}

	aad := frameAAD(role, seq)
	pt, err := crypto.AEADOpen(key, nonce, ct, aad)
	if err != nil {
		framesDropped.WithLabelValues("integrity").Inc()
		return nil, 0, ErrIntegrity
	}

	return pt, seq, nil
}

func frameAAD(role byte, seq uint64) []byte {
	return []byte(fmt.Sprintf("role=%d,seq=%d", role, seq))
}
