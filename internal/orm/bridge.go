package orm

import (
	"context"
	"fmt"

	"github.com/CortexLM/challenge/common/cbor"
	"github.com/CortexLM/challenge/common/errors"
	"github.com/CortexLM/challenge/common/logging"
	"github.com/CortexLM/challenge/internal/session"
	"github.com/CortexLM/challenge/internal/transport"
)

const moduleName = "orm"

var (
	// ErrForbidden is returned when a query touches a table or column the
	// Policy has not explicitly granted.
	ErrForbidden = errors.New(moduleName, 1, "orm: query touches a table or column outside policy")
	// ErrNoAdmin is returned when a write or DDL operation is attempted
	// with no Admin peer connected to route it to.
	ErrNoAdmin = errors.New(moduleName, 2, "orm: no admin session connected")
	// ErrUnsafeDelete is returned by a DELETE or UPDATE with no filters,
	// which would otherwise touch every row in the table.
	ErrUnsafeDelete = errors.New(moduleName, 3, "orm: delete or update with no filters is rejected")
	// ErrNotFound is returned when the remote side reports the query
	// matched no rows where at least one was required.
	ErrNotFound = errors.New(moduleName, 4, "orm: no matching rows")
	// ErrConstraint is returned when the remote database rejects a write
	// due to a constraint violation.
	ErrConstraint = errors.New(moduleName, 5, "orm: constraint violation")
	// ErrSyntaxRejected is returned when the remote side rejects a
	// malformed query.
	ErrSyntaxRejected = errors.New(moduleName, 6, "orm: query rejected as malformed")
	// ErrTimeout is returned when the remote side did not respond in time.
	ErrTimeout = errors.New(moduleName, 7, "orm: query timed out")
)

// Bridge dispatches Query requests to the connected peer that owns the
// database, enforcing Policy locally before any query is marshalled onto
// the wire, so a policy violation never reaches the network.
type Bridge struct {
	sessions *session.Manager
	policy   Policy
	logger   *logging.Logger

	onNoAdminWrite func()
}

// NewBridge creates a Bridge that authorizes queries against sessions and
// enforces policy on every column referenced.
func NewBridge(sessions *session.Manager, policy Policy) *Bridge {
	return &Bridge{
		sessions: sessions,
		policy:   policy,
		logger:   logging.GetLogger(moduleName),
	}
}

// SetNoAdminWriteHook registers a callback invoked every time a write or
// DDL operation is attempted with no Admin session connected, so the
// lifecycle orchestrator can regress Serving -> AwaitingAdmin.
func (b *Bridge) SetNoAdminWriteHook(fn func()) {
	b.onNoAdminWrite = fn
}

// Select runs a read query, preferring the Consumer connection (reads are
// the common case for evaluation code) and falling back to Admin if no
// Consumer is connected.
func (b *Bridge) Select(ctx context.Context, q *Query) (*Result, error) {
	if err := b.checkRead(q); err != nil {
		return nil, err
	}

	peer := b.sessions.Consumer()
	if peer == nil {
		peer = b.sessions.Admin()
	}
	if peer == nil {
		return nil, ErrNoAdmin
	}
	return b.call(ctx, peer, OpSelect, q)
}

// Aggregate runs a read query carrying one or more Aggregations, routed the
// same way and checked against the same read-column policy as Select.
func (b *Bridge) Aggregate(ctx context.Context, q *Query) (*Result, error) {
	if err := b.checkRead(q); err != nil {
		return nil, err
	}

	peer := b.sessions.Consumer()
	if peer == nil {
		peer = b.sessions.Admin()
	}
	if peer == nil {
		return nil, ErrNoAdmin
	}
	return b.call(ctx, peer, OpSelect, q)
}

// Count runs a COUNT(*) aggregation against table, optionally restricted by
// filters, subject to the same read-column policy as Select.
func (b *Bridge) Count(ctx context.Context, table string, filters []Filter) (*Result, error) {
	return b.Aggregate(ctx, &Query{
		Table:        table,
		Filters:      filters,
		Aggregations: []Aggregation{{Function: "count", Column: "*", Alias: "count"}},
	})
}

// Insert runs a write query, always routed to the Admin session.
func (b *Bridge) Insert(ctx context.Context, q *Query) (*Result, error) {
	if err := b.checkInsert(q); err != nil {
		return nil, err
	}
	return b.callAdmin(ctx, OpInsert, q)
}

// Update runs a write query, always routed to the Admin session. An
// Update with no Filters is rejected outright since it would touch every
// row in the table.
func (b *Bridge) Update(ctx context.Context, q *Query) (*Result, error) {
	if len(q.Filters) == 0 {
		return nil, ErrUnsafeDelete
	}
	if err := b.checkUpdate(q); err != nil {
		return nil, err
	}
	return b.callAdmin(ctx, OpUpdate, q)
}

// Delete runs a write query, always routed to the Admin session. A Delete
// with no Filters is rejected outright since it would touch every row in
// the table.
func (b *Bridge) Delete(ctx context.Context, q *Query) (*Result, error) {
	if len(q.Filters) == 0 {
		return nil, ErrUnsafeDelete
	}
	if !b.policy.deleteAllowed(q.Table) {
		return nil, errors.WithContext(ErrForbidden, q.Table)
	}
	return b.callAdmin(ctx, OpDelete, q)
}

func (b *Bridge) checkRead(q *Query) error {
	if !b.policy.known(q.Table) {
		return errors.WithContext(ErrForbidden, q.Table)
	}
	for _, col := range q.Columns {
		if !b.policy.canRead(q.Table, col) {
			return errors.WithContext(ErrForbidden, fmt.Sprintf("%s.%s", q.Table, col))
		}
	}
	for _, f := range q.Filters {
		if !b.policy.canRead(q.Table, f.Column) {
			return errors.WithContext(ErrForbidden, fmt.Sprintf("%s.%s", q.Table, f.Column))
		}
	}
	for _, a := range q.Aggregations {
		// "*" (as in COUNT(*)) counts rows rather than projecting any
		// single column's data, so it is exempt from the column policy.
		if a.Column == "*" {
			continue
		}
		if !b.policy.canRead(q.Table, a.Column) {
			return errors.WithContext(ErrForbidden, fmt.Sprintf("%s.%s", q.Table, a.Column))
		}
	}
	return nil
}

func (b *Bridge) checkInsert(q *Query) error {
	if !b.policy.known(q.Table) {
		return errors.WithContext(ErrForbidden, q.Table)
	}
	for col := range q.Values {
		if !b.policy.canInsert(q.Table, col) {
			return errors.WithContext(ErrForbidden, fmt.Sprintf("%s.%s", q.Table, col))
		}
	}
	return nil
}

func (b *Bridge) checkUpdate(q *Query) error {
	if !b.policy.known(q.Table) {
		return errors.WithContext(ErrForbidden, q.Table)
	}
	for col := range q.SetValues {
		if !b.policy.canUpdate(q.Table, col) {
			return errors.WithContext(ErrForbidden, fmt.Sprintf("%s.%s", q.Table, col))
		}
	}
	for _, f := range q.Filters {
		if !b.policy.canRead(q.Table, f.Column) {
			return errors.WithContext(ErrForbidden, fmt.Sprintf("%s.%s", q.Table, f.Column))
		}
	}
	return nil
}

func (b *Bridge) callAdmin(ctx context.Context, op Operation, q *Query) (*Result, error) {
	peer := b.sessions.Admin()
	if peer == nil {
		if b.onNoAdminWrite != nil {
			b.onNoAdminWrite()
		}
		return nil, ErrNoAdmin
	}
	return b.call(ctx, peer, op, q)
}

func (b *Bridge) call(ctx context.Context, peer *session.Peer, op Operation, q *Query) (*Result, error) {
	q.Operation = op
	req := &transport.Message{
		Method:  "orm." + string(op),
		Payload: cbor.Marshal(q),
	}

	resp, err := peer.Conn.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	var result Result
	if err := cbor.Unmarshal(resp.Payload, &result); err != nil {
		return nil, errors.WithContext(ErrSyntaxRejected, err.Error())
	}
	return &result, nil
}
