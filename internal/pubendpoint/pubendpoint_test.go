package pubendpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CortexLM/challenge/internal/crypto"
)

func TestVerifyAcceptsFreshValidToken(t *testing.T) {
	require := require.New(t)

	kp, err := crypto.GenerateEd25519()
	require.NoError(err)

	claims := Claims{UID: "u1", MinerHotkey: "hk", JobID: "j1", ChallengeID: "c1", JobType: "eval", IssuedAt: time.Now().Unix()}
	sig, err := Sign(kp.Private, claims)
	require.NoError(err)

	m := New(kp.Public)
	got, err := m.Verify(&Token{Claims: claims, Signature: sig})
	require.NoError(err)
	require.Equal("u1", got.UID)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	require := require.New(t)

	kp, err := crypto.GenerateEd25519()
	require.NoError(err)

	claims := Claims{UID: "u1", IssuedAt: time.Now().Add(-1 * time.Hour).Unix()}
	sig, err := Sign(kp.Private, claims)
	require.NoError(err)

	m := New(kp.Public)
	_, err = m.Verify(&Token{Claims: claims, Signature: sig})
	require.ErrorIs(err, ErrExpired)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	require := require.New(t)

	kp, err := crypto.GenerateEd25519()
	require.NoError(err)
	other, err := crypto.GenerateEd25519()
	require.NoError(err)

	claims := Claims{UID: "u1", IssuedAt: time.Now().Unix()}
	sig, err := Sign(kp.Private, claims)
	require.NoError(err)

	m := New(other.Public)
	_, err = m.Verify(&Token{Claims: claims, Signature: sig})
	require.ErrorIs(err, ErrBadSignature)
}

func TestVerifyRejectsTamperedClaims(t *testing.T) {
	require := require.New(t)

	kp, err := crypto.GenerateEd25519()
	require.NoError(err)

	claims := Claims{UID: "u1", IssuedAt: time.Now().Unix()}
	sig, err := Sign(kp.Private, claims)
	require.NoError(err)

	claims.UID = "attacker"
	m := New(kp.Public)
	_, err = m.Verify(&Token{Claims: claims, Signature: sig})
	require.ErrorIs(err, ErrBadSignature)
}
