package sdk

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/CortexLM/challenge/common/logging"
	"github.com/CortexLM/challenge/config"
	"github.com/CortexLM/challenge/internal/crypto"
	"github.com/CortexLM/challenge/internal/httpsig"
	"github.com/CortexLM/challenge/internal/identity"
	"github.com/CortexLM/challenge/internal/job"
	"github.com/CortexLM/challenge/internal/lifecycle"
	"github.com/CortexLM/challenge/internal/orm"
	"github.com/CortexLM/challenge/internal/pubendpoint"
	"github.com/CortexLM/challenge/internal/session"
	"github.com/CortexLM/challenge/internal/transport"

	oed25519 "github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
)

var logger = logging.GetLogger("sdk")

// Runtime bundles the runtime components wired together for one process
// lifetime: identity, session manager, ORM bridge, job executor,
// lifecycle orchestrator, signed-HTTP client, quote provider and
// public-endpoint mediator. The HTTP façade that exposes them is built
// outside this package (cmd/challenge).
type Runtime struct {
	cfg config.Config

	App      *App
	Identity *identity.Identity
	Sessions *session.Manager
	ORM      *orm.Bridge
	Executor *job.Executor
	Lifecycle *lifecycle.Orchestrator
	SignedHTTP *httpsig.Client

	quoteProvider identity.QuoteProvider

	mu          sync.Mutex
	mediator    *pubendpoint.Mediator
	adminPubKey oed25519.PublicKey
	dbDSN       string

	server *http.Server
}

// NewRuntime wires a Runtime from cfg and an App carrying the registered
// handlers. policy configures the ORM bridge's table capabilities.
func NewRuntime(cfg config.Config, app *App, policy orm.Policy) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id, err := identity.New()
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager()
	ormBridge := orm.NewBridge(sessions, policy)
	signedHTTP := httpsig.New(id)

	var qp identity.QuoteProvider = identity.DevQuoteProvider{}

	orch, err := lifecycle.New(lifecycle.Config{
		DbVersion:          cfg.DbVersion,
		DevMode:            cfg.DevMode,
		AllowInsecureAdmin: cfg.AllowInsecureAdmin,
	}, app.Registry(), func() bool { return sessions.Admin() != nil })
	if err != nil {
		return nil, err
	}

	ormBridge.SetNoAdminWriteHook(orch.NoteWriteAttemptWithNoAdmin)

	exec := job.New(app.Registry(), job.Config{Concurrency: cfg.Concurrency}, orch.IsServing)

	return &Runtime{
		cfg:           cfg,
		App:           app,
		Identity:      id,
		Sessions:      sessions,
		ORM:           ormBridge,
		Executor:      exec,
		Lifecycle:     orch,
		SignedHTTP:    signedHTTP,
		quoteProvider: qp,
	}, nil
}

// Start runs on_startup and transitions into AwaitingAdmin. The caller is
// expected to then start accepting peer connections (the HTTP façade's
// session upgrade endpoints) and drive
// AdminEstablished/MigrationsComplete/EnterServing as those events occur.
func (r *Runtime) Start(ctx context.Context) error {
	return r.Lifecycle.Start(ctx)
}

// JobContext builds the Context passed to a job handler for req.
func (r *Runtime) JobContext(req *job.Request) *job.Context {
	return &job.Context{
		ConsumerBaseURL: r.cfg.ConsumerBaseURL,
		SessionToken:    req.SessionToken,
		JobID:           req.JobID,
		ChallengeID:     req.ChallengeID,
		ValidatorHotkey: r.cfg.ValidatorHotkey,
		SignedHTTP:      r.SignedHTTP,
		ORM:             r.ORM,
		ResultsClient:   r.SignedHTTP,
		CVMClient: &job.CVMClient{
			Client:      r.SignedHTTP,
			BaseURL:     r.cfg.ConsumerBaseURL,
			ChallengeID: req.ChallengeID,
		},
		ValuesClient: &job.ValuesClient{
			Client:      r.SignedHTTP,
			BaseURL:     r.cfg.ConsumerBaseURL,
			ChallengeID: req.ChallengeID,
		},
	}
}

// ResultsSubmitter builds the result submitter jobs use to independently
// notify the Consumer's results endpoint.
func (r *Runtime) ResultsSubmitter() job.ResultSubmitter {
	return &job.HTTPResultSubmitter{
		Client:  r.SignedHTTP,
		BaseURL: r.cfg.ConsumerBaseURL,
		Path:    "/results",
	}
}

// Shutdown moves the lifecycle through Draining to Terminated, running
// on_cleanup under a 30-second deadline. It does not wait for in-flight
// jobs to finish.
func (r *Runtime) Shutdown(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return r.Lifecycle.Drain(drainCtx)
}

// QuoteProvider returns the quote provider this runtime was configured
// with. NewRuntime always installs the deterministic dev-mode stub, in
// dev and production mode alike; no other provider is wired in.
func (r *Runtime) QuoteProvider() identity.QuoteProvider {
	return r.quoteProvider
}

// RequestHandler returns the transport.Handler dispatching inbound
// requests from a role-pinned Conn ("job.execute" from Consumer,
// "migrations.apply" from Admin — "credentials.seal" arrives over HTTP,
// not this transport) to this runtime's components, rejecting any method
// the session admission policy does not grant to role.
func (r *Runtime) RequestHandler(role transport.Role) *runtimeHandler {
	return &runtimeHandler{rt: r, role: role}
}

// PublicMediator returns the mediator verifying /sdk/public/* bearer
// tokens, or nil if no Admin session has ever connected to seed its
// public key.
func (r *Runtime) PublicMediator() *pubendpoint.Mediator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mediator
}

// OnAdminConnected records the Admin's long-term public key (from its
// attestation envelope) so the public-endpoint mediator can verify
// proxy-issued tokens against it.
func (r *Runtime) OnAdminConnected(env *identity.AttestationEnvelope) {
	r.mu.Lock()
	r.mediator = pubendpoint.New(env.IdentityPublicKey)
	r.adminPubKey = env.IdentityPublicKey
	r.mu.Unlock()

	r.Lifecycle.AdminEstablished(r.hasCredentials())
}

// AdminPublicKey returns the long-term Ed25519 public key recorded from
// the Admin's attestation envelope, or nil if no Admin has connected yet.
// Used to pin signed-HTTP admin requests to the attested peer.
func (r *Runtime) AdminPublicKey() oed25519.PublicKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adminPubKey
}

// OnAdminDisconnected clears the Admin-presence bookkeeping the lifecycle
// orchestrator uses to gate Migrating/Serving transitions. Read-only
// Consumer traffic is unaffected; only a subsequent write attempt moves
// the orchestrator back to AwaitingAdmin (see NoteWriteAttemptWithNoAdmin).
func (r *Runtime) OnAdminDisconnected() {
	r.Lifecycle.AdminDropped()
}

func (r *Runtime) hasCredentials() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dbDSN != ""
}

// SealCredentials opens a sealed DSN ciphertext addressed to this
// process's X25519-converted identity key and records it exactly once;
// a later call is ignored unless ResetCredentialsSeal was explicitly
// invoked, mirroring the "unless re-requested" exception in the
// credentials-sealing invariant.
func (r *Runtime) SealCredentials(ciphertext []byte) error {
	if err := r.Sessions.TrySealCredentials(); err != nil {
		return err
	}

	plaintext, err := crypto.SealedBoxOpen(r.Identity.PublicKey(), r.Identity.PrivateKey(), ciphertext)
	if err != nil {
		r.Sessions.ResetCredentialsSeal()
		return err
	}

	r.mu.Lock()
	r.dbDSN = string(plaintext)
	r.mu.Unlock()

	r.Lifecycle.AdminEstablished(true)
	return nil
}
