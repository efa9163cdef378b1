package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobResolutionPrefersNamedOverDefault(t *testing.T) {
	require := require.New(t)

	r := New()
	r.RegisterJob("", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return "default", nil
	})
	r.RegisterJob("eval", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return "named", nil
	})

	h, err := r.ResolveJob("eval")
	require.NoError(err)
	res, err := h(context.Background(), nil)
	require.NoError(err)
	require.Equal("named", res)

	h, err = r.ResolveJob("missing")
	require.NoError(err)
	res, err = h(context.Background(), nil)
	require.NoError(err)
	require.Equal("default", res)
}

func TestJobResolutionFailsWithNoHandler(t *testing.T) {
	require := require.New(t)

	r := New()
	_, err := r.ResolveJob("anything")
	require.ErrorIs(err, ErrNoHandler)
}

func TestRegistrationPanicsAfterFreeze(t *testing.T) {
	require := require.New(t)

	r := New()
	r.Freeze()

	require.Panics(func() {
		r.RegisterJob("late", func(ctx context.Context, payload interface{}) (interface{}, error) {
			return nil, nil
		})
	})
}

func TestAdminAndPublicHandlersAreSeparateTables(t *testing.T) {
	require := require.New(t)

	r := New()
	r.RegisterPublic("ping", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return "pong", nil
	})

	_, err := r.ResolveAdmin("ping")
	require.ErrorIs(err, ErrNoHandler)

	_, err = r.ResolvePublic("ping")
	require.NoError(err)
}
