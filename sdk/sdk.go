// Package sdk is the public façade handler authors import: it re-exports
// the registration functions and handler-facing types backed by
// internal/registry and internal/job, so handler code never needs to
// import internal packages directly.
package sdk

import (
	"context"

	"github.com/CortexLM/challenge/internal/job"
	"github.com/CortexLM/challenge/internal/registry"
)

// Context is the immutable bundle passed to every job handler.
type Context = job.Context

// Result is the value a job handler returns.
type Result = job.Result

// App holds the registry handler authors register against; one App is
// constructed in main and threaded explicitly through registration calls
// and into the runtime, rather than kept as an ambient global.
type App struct {
	reg *registry.Registry
}

// New creates an App with an empty registry.
func New() *App {
	return &App{reg: registry.New()}
}

// Registry returns the underlying handler registry, for wiring into the
// lifecycle orchestrator and job executor.
func (a *App) Registry() *registry.Registry {
	return a.reg
}

// RegisterStartup registers the process's on_startup hook, run before any
// peer connection is accepted. Returns hook unchanged, mirroring the
// decorator-style registration this SDK's callback surface follows.
func (a *App) RegisterStartup(hook func(ctx context.Context) error) func(ctx context.Context) error {
	a.reg.RegisterStartup(hook)
	return hook
}

// RegisterReady registers the process's on_ready hook.
func (a *App) RegisterReady(hook func(ctx context.Context) error) func(ctx context.Context) error {
	a.reg.RegisterReady(hook)
	return hook
}

// RegisterCleanup registers the process's on_cleanup hook.
func (a *App) RegisterCleanup(hook func(ctx context.Context) error) func(ctx context.Context) error {
	a.reg.RegisterCleanup(hook)
	return hook
}

// RegisterOrmReady registers a hook that fires once the ORM bridge has a
// usable Admin session and configured migrations have been applied.
func (a *App) RegisterOrmReady(hook func(ctx context.Context) error) func(ctx context.Context) error {
	a.reg.RegisterOrmReady(hook)
	return hook
}

// RegisterWeights registers the process's on_weights hook.
func (a *App) RegisterWeights(hook func(ctx context.Context) (interface{}, error)) func(ctx context.Context) (interface{}, error) {
	a.reg.RegisterWeights(hook)
	return hook
}

// RegisterJob registers a job handler under name, or as the default
// handler when name is empty.
func (a *App) RegisterJob(name string, handler func(ctx context.Context, payload interface{}) (*Result, error)) func(ctx context.Context, payload interface{}) (*Result, error) {
	a.reg.RegisterJob(name, func(ctx context.Context, payload interface{}) (interface{}, error) {
		return handler(ctx, payload)
	})
	return handler
}

// RegisterPublic registers a public-endpoint handler reachable via
// /sdk/public/{name}.
func (a *App) RegisterPublic(name string, handler func(ctx context.Context, payload interface{}) (interface{}, error)) func(ctx context.Context, payload interface{}) (interface{}, error) {
	a.reg.RegisterPublic(name, handler)
	return handler
}

// RegisterAdmin registers an admin-only endpoint handler reachable via
// /sdk/admin/{name}.
func (a *App) RegisterAdmin(name string, handler func(ctx context.Context, payload interface{}) (interface{}, error)) func(ctx context.Context, payload interface{}) (interface{}, error) {
	a.reg.RegisterAdmin(name, handler)
	return handler
}
