// Package session manages the two peer connections this process accepts:
// exactly one Admin control-plane session and exactly one Consumer
// evaluation session. It enforces which actions each role may invoke,
// using the same Subject/Action/Policy shape this module's ancestor uses
// for certificate-based access control, here keyed by declared peer role
// instead of an X.509 subject hash.
package session

import (
	"sync"

	"github.com/CortexLM/challenge/common/accessctl"
	"github.com/CortexLM/challenge/common/errors"
	"github.com/CortexLM/challenge/common/logging"
	"github.com/CortexLM/challenge/internal/identity"
	"github.com/CortexLM/challenge/internal/transport"
)

const moduleName = "session"

var (
	// ErrForbidden is returned when a peer's declared role is not
	// permitted to invoke the requested action.
	ErrForbidden = errors.New(moduleName, 1, "session: action forbidden for this peer role")
	// ErrNoSession is returned when the required peer (Admin or
	// Consumer) is not currently connected.
	ErrNoSession = errors.New(moduleName, 2, "session: required peer is not connected")
	// ErrAlreadySealed is returned by TrySealCredentials when
	// credentials have already been sealed and no re-request has reset
	// the flag.
	ErrAlreadySealed = errors.New(moduleName, 3, "session: credentials already sealed")
)

const (
	subjectAdmin    = accessctl.Subject("admin")
	subjectConsumer = accessctl.Subject("consumer")
)

// Actions named in the peer admission policy.
const (
	ActionMigrationsApply = accessctl.Action("migrations.apply")
	ActionOrmWrite        = accessctl.Action("orm.write")
	ActionOrmDDL          = accessctl.Action("orm.ddl")
	ActionOrmRead         = accessctl.Action("orm.read")
	ActionCredentialsSeal = accessctl.Action("credentials.seal")
	ActionJobExecute      = accessctl.Action("job.execute")
)

func defaultPolicy() accessctl.Policy {
	p := accessctl.NewPolicy()
	p.Allow(subjectAdmin, ActionMigrationsApply)
	p.Allow(subjectAdmin, ActionOrmWrite)
	p.Allow(subjectAdmin, ActionOrmDDL)
	p.Allow(subjectAdmin, ActionCredentialsSeal)
	p.Allow(subjectAdmin, ActionOrmRead)
	p.Allow(subjectConsumer, ActionOrmRead)
	p.Allow(subjectConsumer, ActionJobExecute)
	return p
}

// Peer is a single connected and attested peer session.
type Peer struct {
	Role        transport.Role
	Conn        *transport.Conn
	Attestation *identity.AttestationEnvelope
}

func (p *Peer) subject() accessctl.Subject {
	if p.Role == transport.RoleAdmin {
		return subjectAdmin
	}
	return subjectConsumer
}

// Manager tracks the (at most one each) Admin and Consumer peer, and
// enforces the role admission policy for every incoming request.
type Manager struct {
	mu sync.Mutex

	admin    *Peer
	consumer *Peer
	policy   accessctl.Policy

	credentialsSealed bool

	logger *logging.Logger
}

// NewManager creates a Manager with the default role admission policy.
func NewManager() *Manager {
	return &Manager{
		policy: defaultPolicy(),
		logger: logging.GetLogger("session"),
	}
}

// Admit registers peer as the current session for its declared role,
// replacing any prior session of that role; the replaced peer's Conn is
// not closed here.
func (m *Manager) Admit(peer *Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch peer.Role {
	case transport.RoleAdmin:
		m.admin = peer
		m.logger.Info("admin session admitted")
	case transport.RoleConsumer:
		m.consumer = peer
		m.logger.Info("consumer session admitted")
	}
}

// Drop removes the current session for role, e.g. on disconnect.
func (m *Manager) Drop(role transport.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch role {
	case transport.RoleAdmin:
		m.admin = nil
	case transport.RoleConsumer:
		m.consumer = nil
	}
}

// Admin returns the current Admin peer, or nil if none is connected.
func (m *Manager) Admin() *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admin
}

// Consumer returns the current Consumer peer, or nil if none is connected.
func (m *Manager) Consumer() *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumer
}

// Authorize checks whether peer is permitted to invoke action under the
// current policy.
func (m *Manager) Authorize(peer *Peer, action accessctl.Action) error {
	if !m.policy.IsAllowed(peer.subject(), action) {
		return errors.WithContext(ErrForbidden, string(action))
	}
	return nil
}

// RequireAdmin returns the current Admin peer, or ErrNoSession if none is
// connected.
func (m *Manager) RequireAdmin() (*Peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.admin == nil {
		return nil, ErrNoSession
	}
	return m.admin, nil
}

// TrySealCredentials reports whether this call is the first successful
// credentials.seal since the last ResetCredentialsSeal, atomically
// marking credentials as sealed if so.
func (m *Manager) TrySealCredentials() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.credentialsSealed {
		return ErrAlreadySealed
	}
	m.credentialsSealed = true
	return nil
}

// ResetCredentialsSeal allows a subsequent credentials.seal call to
// succeed again, for the "unless re-requested" exception in the
// credentials sealing invariant.
func (m *Manager) ResetCredentialsSeal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentialsSealed = false
}
