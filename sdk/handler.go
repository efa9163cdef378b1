package sdk

import (
	"context"

	"github.com/CortexLM/challenge/common/accessctl"
	"github.com/CortexLM/challenge/common/cbor"
	"github.com/CortexLM/challenge/common/errors"
	"github.com/CortexLM/challenge/internal/job"
	"github.com/CortexLM/challenge/internal/session"
	"github.com/CortexLM/challenge/internal/transport"
)

const moduleName = "sdk"

// ErrUnknownMethod is returned when an inbound request names a method
// this runtime does not dispatch.
var ErrUnknownMethod = errors.New(moduleName, 1, "sdk: unknown method")

// methodActions maps an inbound method name to the admission-table action
// session.Manager enforces against the declared role of the connection
// that sent it.
var methodActions = map[string]accessctl.Action{
	"job.execute":      session.ActionJobExecute,
	"migrations.apply": session.ActionMigrationsApply,
}

// runtimeHandler dispatches inbound transport.Message requests from one
// role-pinned Conn to the runtime component that owns the named method,
// rejecting any method the session manager's admission policy does not
// grant to that role before ever reaching the component.
type runtimeHandler struct {
	rt   *Runtime
	role transport.Role
}

var _ transport.Handler = (*runtimeHandler)(nil)

func (h *runtimeHandler) Handle(ctx context.Context, msg *transport.Message) *transport.Message {
	action, known := methodActions[msg.Method]
	if !known {
		return errorResponse(msg, ErrUnknownMethod)
	}
	if err := h.rt.Sessions.Authorize(&session.Peer{Role: h.role}, action); err != nil {
		return errorResponse(msg, err)
	}

	switch msg.Method {
	case "job.execute":
		return h.handleJobExecute(ctx, msg)
	case "migrations.apply":
		return h.handleMigrationsApply(ctx, msg)
	default:
		return errorResponse(msg, ErrUnknownMethod)
	}
}

func (h *runtimeHandler) handleJobExecute(ctx context.Context, msg *transport.Message) *transport.Message {
	var req job.Request
	if err := cbor.Unmarshal(msg.Payload, &req); err != nil {
		return errorResponse(msg, err)
	}

	jobCtx := h.rt.JobContext(&req)
	result := h.rt.Executor.Execute(ctx, &req, jobCtx, h.rt.ResultsSubmitter())

	return &transport.Message{
		Kind:          transport.KindResponse,
		CorrelationID: msg.CorrelationID,
		Method:        msg.Method,
		Payload:       cbor.Marshal(result),
	}
}

func (h *runtimeHandler) handleMigrationsApply(ctx context.Context, msg *transport.Message) *transport.Message {
	if err := h.rt.Lifecycle.MigrationsComplete(ctx); err != nil {
		return errorResponse(msg, err)
	}
	return &transport.Message{
		Kind:          transport.KindResponse,
		CorrelationID: msg.CorrelationID,
		Method:        msg.Method,
	}
}

func errorResponse(req *transport.Message, err error) *transport.Message {
	module, code := errors.Code(err)
	return &transport.Message{
		Kind:          transport.KindResponse,
		CorrelationID: req.CorrelationID,
		Method:        req.Method,
		Error: &transport.WireError{
			Module:  module,
			Code:    code,
			Message: err.Error(),
		},
	}
}
