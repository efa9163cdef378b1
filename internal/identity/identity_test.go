package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttestationBuildAndVerify(t *testing.T) {
	require := require.New(t)

	id, err := New()
	require.NoError(err)
	sessionKeys, err := id.NewSessionKeys()
	require.NoError(err)

	env, err := Build(id, "consumer", &sessionKeys.Public, DevQuoteProvider{})
	require.NoError(err)
	require.Equal("consumer", env.Role)
	require.Contains(string(env.Quote), "DEV-MODE-STUB-QUOTE")

	require.NoError(VerifySignature(env))

	// Tampering with any signed field must invalidate the signature.
	tampered := *env
	tampered.Role = "admin"
	require.Error(VerifySignature(&tampered))
}

func TestAttestationRejectsWrongKey(t *testing.T) {
	require := require.New(t)

	idA, err := New()
	require.NoError(err)
	sessionKeysA, err := idA.NewSessionKeys()
	require.NoError(err)

	idB, err := New()
	require.NoError(err)

	env, err := Build(idA, "admin", &sessionKeysA.Public, DevQuoteProvider{})
	require.NoError(err)

	env.IdentityPublicKey = append([]byte{}, idB.PublicKey()...)
	require.Error(VerifySignature(env))
}
