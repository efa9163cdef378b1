// Package lifecycle implements the state machine that sequences process
// startup through migration barrier, ready, job serving, and drain,
// broadcasting every transition on a pubsub.Broker so other components
// can react without polling. The HTTP health endpoint and the job
// executor's readiness gate read State/IsServing on demand instead.
package lifecycle

import (
	"context"
	"sync"

	"github.com/CortexLM/challenge/common/errors"
	"github.com/CortexLM/challenge/common/logging"
	"github.com/CortexLM/challenge/common/pubsub"
	"github.com/CortexLM/challenge/internal/registry"
)

const moduleName = "lifecycle"

var (
	// ErrDbVersion is returned when the configured database version is
	// outside the accepted [1, 16] range.
	ErrDbVersion = errors.New(moduleName, 1, "lifecycle: configured db_version must be in [1, 16]")
	// ErrInvalidTransition is returned when a caller requests a
	// transition that is not reachable from the current state.
	ErrInvalidTransition = errors.New(moduleName, 2, "lifecycle: transition not permitted from current state")
	// ErrInsecureAdmin is returned when dev mode is enabled with an Admin
	// peer present and --allow-insecure-admin was not also set.
	ErrInsecureAdmin = errors.New(moduleName, 3, "lifecycle: dev mode refuses to serve with an admin peer without --allow-insecure-admin")
)

// State is one position in the lifecycle state machine.
type State int

const (
	Init State = iota
	Startup
	AwaitingAdmin
	Migrating
	Ready
	Serving
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Startup:
		return "startup"
	case AwaitingAdmin:
		return "awaiting_admin"
	case Migrating:
		return "migrating"
	case Ready:
		return "ready"
	case Serving:
		return "serving"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config configures the orchestrator's startup-time checks.
type Config struct {
	DbVersion          int
	DevMode            bool
	AllowInsecureAdmin bool
}

// AdminPresence reports whether an Admin peer is currently connected,
// used only for the dev-mode Serving guard.
type AdminPresence func() bool

// Orchestrator drives the lifecycle state machine and broadcasts every
// transition on its Broker as int(State).
type Orchestrator struct {
	mu    sync.Mutex
	state State

	cfg      Config
	registry *registry.Registry
	admin    AdminPresence

	migrationsApplied bool
	credentialsSealed bool

	broker *pubsub.Broker
	logger *logging.Logger
}

// New validates cfg and creates an Orchestrator in the Init state.
func New(cfg Config, reg *registry.Registry, admin AdminPresence) (*Orchestrator, error) {
	if cfg.DbVersion < 1 || cfg.DbVersion > 16 {
		return nil, ErrDbVersion
	}
	return &Orchestrator{
		state:    Init,
		cfg:      cfg,
		registry: reg,
		admin:    admin,
		broker:   pubsub.NewBroker(true),
		logger:   logging.GetLogger(moduleName),
	}, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe returns a subscription broadcasting int(State) on every
// transition, with the most recently broadcast state delivered immediately
// on subscribe (nothing is delivered before the first transition).
func (o *Orchestrator) Subscribe() *pubsub.Subscription {
	return o.broker.Subscribe()
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	o.state = to
	o.mu.Unlock()
	o.logger.Info("lifecycle transition", "state", to.String())
	o.broker.Broadcast(int(to))
}

// Start runs on_startup (if registered) and advances Init -> Startup ->
// AwaitingAdmin. Called once before any peer connection is accepted.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.registry.Freeze()
	o.transition(Startup)

	if hook := o.registry.Startup(); hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	o.transition(AwaitingAdmin)
	return nil
}

// AdminEstablished reports that an Admin session completed handshake and
// sealed credentials were received; it advances AwaitingAdmin -> Migrating
// only when both conditions hold.
func (o *Orchestrator) AdminEstablished(credentialsSealed bool) {
	o.mu.Lock()
	cur := o.state
	o.credentialsSealed = o.credentialsSealed || credentialsSealed
	ready := cur == AwaitingAdmin && o.credentialsSealed
	o.mu.Unlock()

	if ready {
		o.transition(Migrating)
	}
}

// MigrationsComplete reports that all migrations for the configured
// version have been applied; it advances Migrating -> Ready and, since
// this is the first point an Admin session with sealed credentials and a
// migrated schema all coincide, runs on_orm_ready (if registered).
func (o *Orchestrator) MigrationsComplete(ctx context.Context) error {
	o.mu.Lock()
	cur := o.state
	o.mu.Unlock()
	if cur != Migrating {
		return ErrInvalidTransition
	}

	o.mu.Lock()
	o.migrationsApplied = true
	o.mu.Unlock()

	if hook := o.registry.OrmReady(); hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	o.transition(Ready)
	return nil
}

// EnterServing runs on_ready (if registered) and advances Ready ->
// Serving, refusing to do so in dev mode with an Admin peer present
// unless AllowInsecureAdmin is also set.
func (o *Orchestrator) EnterServing(ctx context.Context) error {
	o.mu.Lock()
	cur := o.state
	o.mu.Unlock()
	if cur != Ready {
		return ErrInvalidTransition
	}

	if o.cfg.DevMode && !o.cfg.AllowInsecureAdmin && o.admin != nil && o.admin() {
		return ErrInsecureAdmin
	}

	if hook := o.registry.Ready(); hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	o.transition(Serving)
	return nil
}

// AdminDropped reports that the Admin session disconnected while Serving.
// Per the gating rule, read-only serving continues; the orchestrator only
// pauses into AwaitingAdmin the first time a handler attempts a write
// with no Admin present — see NoteWriteAttemptWithNoAdmin.
func (o *Orchestrator) AdminDropped() {
	o.mu.Lock()
	o.credentialsSealed = false
	o.mu.Unlock()
}

// NoteWriteAttemptWithNoAdmin is called by the ORM bridge's caller when a
// write is attempted and no Admin session is connected; it transitions
// Serving -> AwaitingAdmin exactly once per drop.
func (o *Orchestrator) NoteWriteAttemptWithNoAdmin() {
	o.mu.Lock()
	cur := o.state
	o.mu.Unlock()
	if cur == Serving {
		o.transition(AwaitingAdmin)
	}
}

// IsServing reports whether the state machine is currently Serving, for
// use as the job executor's ReadyCheck.
func (o *Orchestrator) IsServing() bool {
	return o.State() == Serving
}

// Drain runs on_cleanup (if registered) and advances Serving -> Draining
// -> Terminated.
func (o *Orchestrator) Drain(ctx context.Context) error {
	o.transition(Draining)

	if hook := o.registry.Cleanup(); hook != nil {
		if err := hook(ctx); err != nil {
			o.logger.Error("on_cleanup failed", "err", err)
		}
	}

	o.transition(Terminated)
	return nil
}
