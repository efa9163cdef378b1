package sdk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CortexLM/challenge/config"
	"github.com/CortexLM/challenge/internal/orm"
	"github.com/CortexLM/challenge/internal/transport"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()

	app := New()
	app.RegisterJob("", func(ctx context.Context, payload interface{}) (*Result, error) {
		return &Result{Score: 1, JobType: "eval"}, nil
	})

	rt, err := NewRuntime(config.DefaultConfig(), app, orm.NewPolicy())
	require.NoError(t, err)
	return rt
}

func TestRuntimeHandlerEnforcesRoleAdmission(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime(t)

	adminHandler := rt.RequestHandler(transport.RoleAdmin)
	consumerHandler := rt.RequestHandler(transport.RoleConsumer)

	// Consumer may call job.execute.
	resp := consumerHandler.Handle(context.Background(), &transport.Message{
		Kind:          transport.KindRequest,
		CorrelationID: "c1",
		Method:        "job.execute",
	})
	require.Nil(resp.Error)

	// Admin may not call job.execute.
	resp = adminHandler.Handle(context.Background(), &transport.Message{
		Kind:          transport.KindRequest,
		CorrelationID: "c2",
		Method:        "job.execute",
	})
	require.NotNil(resp.Error)

	// Consumer may not call migrations.apply.
	resp = consumerHandler.Handle(context.Background(), &transport.Message{
		Kind:          transport.KindRequest,
		CorrelationID: "c3",
		Method:        "migrations.apply",
	})
	require.NotNil(resp.Error)
}

func TestRuntimeHandlerRejectsUnknownMethod(t *testing.T) {
	require := require.New(t)
	rt := newTestRuntime(t)

	resp := rt.RequestHandler(transport.RoleConsumer).Handle(context.Background(), &transport.Message{
		Kind:          transport.KindRequest,
		CorrelationID: "c1",
		Method:        "orm.select",
	})
	require.NotNil(resp.Error)
	require.Equal(moduleName, resp.Error.Module)
}
