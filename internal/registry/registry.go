// Package registry stores the lifecycle and job handlers a process
// registers before it starts serving, and resolves job dispatch by name.
// Registration is not safe for concurrent use and must complete before
// the lifecycle orchestrator calls Freeze; after that the registry is
// treated as immutable, mirroring the handler-registry conventions this
// runtime's callback surface is built on.
package registry

import (
	"context"

	"github.com/CortexLM/challenge/common/errors"
)

const moduleName = "registry"

// ErrNoHandler is returned when a job names a handler that isn't
// registered and no default handler exists either.
var ErrNoHandler = errors.New(moduleName, 1, "registry: no handler for job name and no default registered")

// LifecycleHook is a zero-argument callback used for on_startup, on_ready,
// and on_cleanup.
type LifecycleHook func(ctx context.Context) error

// WeightsHook computes the weights result; it takes no job payload.
type WeightsHook func(ctx context.Context) (interface{}, error)

// JobHandler processes one job's payload and returns the raw handler
// result, before executor-side validation (score clamping, metric
// filtering, log truncation) is applied.
type JobHandler func(ctx context.Context, payload interface{}) (interface{}, error)

// PublicHandler serves one named public endpoint.
type PublicHandler func(ctx context.Context, payload interface{}) (interface{}, error)

// Registry holds the process's singleton lifecycle hooks and the named
// job/public-endpoint handler tables.
type Registry struct {
	frozen bool

	onStartup LifecycleHook
	onReady   LifecycleHook
	onCleanup LifecycleHook
	onWeights WeightsHook

	// onOrmReady runs after the ORM bridge becomes usable (Admin
	// connected and migrations applied), distinct from onReady which may
	// fire before a database is available at all.
	onOrmReady LifecycleHook

	jobHandlers    map[string]JobHandler
	defaultJob     JobHandler
	publicHandlers map[string]PublicHandler

	// adminHandlers mirrors publicHandlers but is only reachable over
	// the authenticated admin surface, per the admin-vs-public handler
	// registry split.
	adminHandlers map[string]PublicHandler
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		jobHandlers:    make(map[string]JobHandler),
		publicHandlers: make(map[string]PublicHandler),
		adminHandlers:  make(map[string]PublicHandler),
	}
}

func (r *Registry) mustNotBeFrozen() {
	if r.frozen {
		panic("registry: cannot register handlers after Freeze")
	}
}

// Freeze marks the registry as immutable. Called once by the lifecycle
// orchestrator when it transitions out of Init.
func (r *Registry) Freeze() {
	r.frozen = true
}

// RegisterStartup sets the on_startup hook, run before any peer
// connection is accepted.
func (r *Registry) RegisterStartup(hook LifecycleHook) LifecycleHook {
	r.mustNotBeFrozen()
	r.onStartup = hook
	return hook
}

// RegisterReady sets the on_ready hook.
func (r *Registry) RegisterReady(hook LifecycleHook) LifecycleHook {
	r.mustNotBeFrozen()
	r.onReady = hook
	return hook
}

// RegisterCleanup sets the on_cleanup hook.
func (r *Registry) RegisterCleanup(hook LifecycleHook) LifecycleHook {
	r.mustNotBeFrozen()
	r.onCleanup = hook
	return hook
}

// RegisterWeights sets the on_weights hook.
func (r *Registry) RegisterWeights(hook WeightsHook) WeightsHook {
	r.mustNotBeFrozen()
	r.onWeights = hook
	return hook
}

// RegisterOrmReady sets the on_orm_ready hook, which fires once the ORM
// bridge has a usable Admin session and the configured migrations have
// been applied, independent of on_ready's firing point.
func (r *Registry) RegisterOrmReady(hook LifecycleHook) LifecycleHook {
	r.mustNotBeFrozen()
	r.onOrmReady = hook
	return hook
}

// RegisterJob registers a named job handler. Passing an empty name
// registers the default handler invoked when job_name is absent or
// unmatched.
func (r *Registry) RegisterJob(name string, handler JobHandler) JobHandler {
	r.mustNotBeFrozen()
	if name == "" {
		r.defaultJob = handler
		return handler
	}
	r.jobHandlers[name] = handler
	return handler
}

// RegisterPublic registers a public-endpoint handler reachable via
// /sdk/public/{name}.
func (r *Registry) RegisterPublic(name string, handler PublicHandler) PublicHandler {
	r.mustNotBeFrozen()
	r.publicHandlers[name] = handler
	return handler
}

// RegisterAdmin registers an admin-only endpoint handler, kept in a
// separate table from RegisterPublic so the HTTP façade can enforce
// distinct authentication for the two surfaces without consulting
// per-handler metadata.
func (r *Registry) RegisterAdmin(name string, handler PublicHandler) PublicHandler {
	r.mustNotBeFrozen()
	r.adminHandlers[name] = handler
	return handler
}

// Startup returns the registered on_startup hook, or nil if none was
// registered.
func (r *Registry) Startup() LifecycleHook { return r.onStartup }

// Ready returns the registered on_ready hook, or nil.
func (r *Registry) Ready() LifecycleHook { return r.onReady }

// Cleanup returns the registered on_cleanup hook, or nil.
func (r *Registry) Cleanup() LifecycleHook { return r.onCleanup }

// Weights returns the registered on_weights hook, or nil.
func (r *Registry) Weights() WeightsHook { return r.onWeights }

// OrmReady returns the registered on_orm_ready hook, or nil.
func (r *Registry) OrmReady() LifecycleHook { return r.onOrmReady }

// ResolveJob implements the job-name resolution rule: a matching named
// handler wins, else the default handler, else ErrNoHandler.
func (r *Registry) ResolveJob(name string) (JobHandler, error) {
	if name != "" {
		if h, ok := r.jobHandlers[name]; ok {
			return h, nil
		}
	}
	if r.defaultJob != nil {
		return r.defaultJob, nil
	}
	return nil, ErrNoHandler
}

// ResolvePublic looks up a public-endpoint handler by name.
func (r *Registry) ResolvePublic(name string) (PublicHandler, error) {
	h, ok := r.publicHandlers[name]
	if !ok {
		return nil, ErrNoHandler
	}
	return h, nil
}

// ResolveAdmin looks up an admin-endpoint handler by name.
func (r *Registry) ResolveAdmin(name string) (PublicHandler, error) {
	h, ok := r.adminHandlers[name]
	if !ok {
		return nil, ErrNoHandler
	}
	return h, nil
}
