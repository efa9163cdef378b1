// Package accessctl implements a minimal Subject/Action/Policy access
// control model: a default-deny table of which subjects may perform
// which actions. This runtime's subjects are declared peer roles
// (Admin, Consumer) rather than X.509 certificate hashes, so unlike its
// ancestor this package carries no certificate-derived subject
// constructor — callers build a Subject directly from the role name.
package accessctl

// Subject is an access control subject.
type Subject string

// Action is an access control action.
type Action string

// Policy maps from Actions to a mapping from Subjects to booleans indicating
// whether the given subject is allowed to perform the given action or not.
type Policy map[Action]map[Subject]bool

// NewPolicy returns an empty (default-deny) policy.
func NewPolicy() Policy {
	return make(Policy)
}

// Allow adds a policy rule that allows the given Subject to perform the given
// Action.
func (p Policy) Allow(sub Subject, act Action) {
	if p[act] == nil {
		p[act] = make(map[Subject]bool)
	}
	p[act][sub] = true
}

// Deny removes a policy rule that allows the given Subject to perform the
// given Action.
func (p Policy) Deny(sub Subject, act Action) {
	if p[act] == nil {
		return
	}
	delete(p[act], sub)
}

// IsAllowed returns a boolean indicating whether the given Subject is allowed
// to perform the given Action under the current Policy.
func (p Policy) IsAllowed(sub Subject, act Action) bool {
	if p[act] == nil {
		return false
	}
	return p[act][sub]
}
