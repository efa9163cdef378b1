package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestFrameRoundTrip(t *testing.T) {
	require := require.New(t)
	key := testKey()

	frame, err := encodeFrame(key, byte(RoleAdmin), 1, []byte("hello"))
	require.NoError(err)

	pt, seq, err := decodeFrame(frame, key, byte(RoleAdmin), 0)
	require.NoError(err)
	require.Equal("hello", string(pt))
	require.EqualValues(1, seq)
}

func TestFrameRejectsReplay(t *testing.T) {
	require := require.New(t)
	key := testKey()

	frame, err := encodeFrame(key, byte(RoleAdmin), 5, []byte("hello"))
	require.NoError(err)

	_, _, err = decodeFrame(frame, key, byte(RoleAdmin), 5)
	require.ErrorIs(err, ErrReplay)

	_, _, err = decodeFrame(frame, key, byte(RoleAdmin), 10)
	require.ErrorIs(err, ErrReplay)
}

func TestFrameRejectsTamperedCiphertext(t *testing.T) {
	require := require.New(t)
	key := testKey()

	frame, err := encodeFrame(key, byte(RoleAdmin), 1, []byte("hello"))
	require.NoError(err)

	frame[len(frame)-1] ^= 0xff
	_, _, err = decodeFrame(frame, key, byte(RoleAdmin), 0)
	require.ErrorIs(err, ErrIntegrity)
}

func TestFrameRejectsWrongRole(t *testing.T) {
	require := require.New(t)
	key := testKey()

	frame, err := encodeFrame(key, byte(RoleAdmin), 1, []byte("hello"))
	require.NoError(err)

	// Decoding as the other role changes the AAD and must fail, since
	// frames are bound to the session's declared role.
	_, _, err = decodeFrame(frame, key, byte(RoleConsumer), 0)
	require.ErrorIs(err, ErrIntegrity)
}

func TestFrameRejectsOversize(t *testing.T) {
	require := require.New(t)
	key := testKey()

	big := make([]byte, MaxFrameSize+1)
	_, _, err := decodeFrame(big, key, byte(RoleAdmin), 0)
	require.ErrorIs(err, ErrOversize)
}
