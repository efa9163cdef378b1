package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CortexLM/challenge/internal/transport"
)

func TestAdmissionRules(t *testing.T) {
	require := require.New(t)

	m := NewManager()
	admin := &Peer{Role: transport.RoleAdmin}
	consumer := &Peer{Role: transport.RoleConsumer}

	require.NoError(m.Authorize(admin, ActionMigrationsApply))
	require.NoError(m.Authorize(admin, ActionOrmWrite))
	require.NoError(m.Authorize(admin, ActionOrmDDL))
	require.NoError(m.Authorize(admin, ActionCredentialsSeal))
	require.NoError(m.Authorize(admin, ActionOrmRead))

	require.ErrorIs(m.Authorize(consumer, ActionMigrationsApply), ErrForbidden)
	require.ErrorIs(m.Authorize(consumer, ActionOrmWrite), ErrForbidden)
	require.ErrorIs(m.Authorize(consumer, ActionCredentialsSeal), ErrForbidden)
	require.NoError(m.Authorize(consumer, ActionOrmRead))
	require.NoError(m.Authorize(consumer, ActionJobExecute))
	require.ErrorIs(m.Authorize(admin, ActionJobExecute), ErrForbidden)
}

func TestOnlyOneSessionPerRole(t *testing.T) {
	require := require.New(t)

	m := NewManager()
	require.Nil(m.Admin())
	require.Nil(m.Consumer())

	admin := &Peer{Role: transport.RoleAdmin}
	m.Admit(admin)
	require.Same(admin, m.Admin())

	_, err := m.RequireAdmin()
	require.NoError(err)

	m.Drop(transport.RoleAdmin)
	require.Nil(m.Admin())
	_, err = m.RequireAdmin()
	require.ErrorIs(err, ErrNoSession)
}

func TestCredentialsSealOnce(t *testing.T) {
	require := require.New(t)

	m := NewManager()
	require.NoError(m.TrySealCredentials())
	require.ErrorIs(m.TrySealCredentials(), ErrAlreadySealed)

	m.ResetCredentialsSeal()
	require.NoError(m.TrySealCredentials())
}
