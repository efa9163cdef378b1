package job

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CortexLM/challenge/common/logging"
	"github.com/CortexLM/challenge/common/workerpool"
	"github.com/CortexLM/challenge/internal/registry"
)

const moduleName = "job"

// DefaultDeadline is the per-job execution deadline applied when the
// caller doesn't configure one.
const DefaultDeadline = 300 * time.Second

// Config configures an Executor.
type Config struct {
	// Deadline bounds a single job's execution. Zero uses DefaultDeadline.
	Deadline time.Duration
	// Concurrency is the number of jobs (J) that may execute in parallel.
	// Zero is treated as 1.
	Concurrency int
}

// ReadyCheck reports whether the runtime is currently in the Serving
// state; jobs submitted otherwise are rejected with JobError::NotReady
// without ever reaching a handler.
type ReadyCheck func() bool

// Executor runs job.execute requests against the registered handlers,
// enforcing a deadline and validating the returned Result.
type Executor struct {
	registry *registry.Registry
	pool     *workerpool.Pool
	deadline time.Duration
	ready    ReadyCheck
	logger   *logging.Logger
}

// New creates an Executor dispatching to reg's job handlers, using ready
// to gate admission.
func New(reg *registry.Registry, cfg Config, ready ReadyCheck) *Executor {
	deadline := cfg.Deadline
	if deadline == 0 {
		deadline = DefaultDeadline
	}
	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = 1
	}

	pool := workerpool.New(moduleName, &workerpool.PoolConfig{})
	pool.Resize(concurrency)

	return &Executor{
		registry: reg,
		pool:     pool,
		deadline: deadline,
		ready:    ready,
		logger:   logging.GetLogger(moduleName),
	}
}

// Execute runs req against its resolved handler and returns the validated
// Result. It never returns an error; all failure modes are folded into
// the returned Result's Error field, per the "handler failure never
// crashes the runtime" rule. It submits the outcome to the Consumer's
// results endpoint independently, best-effort, via submitter.
func (e *Executor) Execute(ctx context.Context, req *Request, jobCtx *Context, submitter ResultSubmitter) *Result {
	if e.ready != nil && !e.ready() {
		return notReadyResult()
	}

	handler, err := e.registry.ResolveJob(req.JobName)
	if err != nil {
		return noHandlerResult()
	}

	resultCh := make(chan *Result, 1)
	runCtx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	// The pool bounds how many handler invocations run concurrently (J);
	// the handler itself runs to completion on its assigned worker. A
	// handler that ignores runCtx will hold its worker past the deadline,
	// but Execute still returns a timeout Result to the caller below —
	// cancellation here is cooperative, not preemptive.
	e.pool.Submit(func() error {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- failureResult(fmt.Sprintf("%v", r))
			}
		}()

		raw, err := handler(runCtx, req.Payload)
		if err != nil {
			resultCh <- failureResult(err.Error())
			return nil
		}
		res, ok := raw.(*Result)
		if !ok {
			resultCh <- failureResult("handler returned unexpected result type")
			return nil
		}
		resultCh <- res
		return nil
	})

	var result *Result
	select {
	case result = <-resultCh:
	case <-runCtx.Done():
		result = timeoutResult()
	}

	sanitized := sanitize(result)
	sanitized.JobType = orDefault(sanitized.JobType, result.JobType)

	if submitter != nil {
		go func() {
			if err := submitter.Submit(context.Background(), req.JobID, sanitized); err != nil {
				e.logger.Warn("result submission failed", "job_id", req.JobID, "err", err)
			}
		}()
	}

	return sanitized
}

func orDefault(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// ResultSubmitter delivers a job's final Result to the Consumer's results
// endpoint, independent of the reply frame sent over the transport.
type ResultSubmitter interface {
	Submit(ctx context.Context, jobID string, result *Result) error
}

// HTTPResultSubmitter submits results as signed JSON POSTs to the
// Consumer's configured results endpoint.
type HTTPResultSubmitter struct {
	Client  HTTPDoer
	BaseURL string
	Path    string
}

// HTTPDoer is the subset of *httpsig.Client used by HTTPResultSubmitter,
// narrowed to ease testing with a stub.
type HTTPDoer interface {
	Do(ctx context.Context, method, url, path string, body []byte) (*http.Response, error)
}

// Submit posts result as JSON to BaseURL+Path.
func (s *HTTPResultSubmitter) Submit(ctx context.Context, jobID string, result *Result) error {
	body, err := json.Marshal(struct {
		JobID string `json:"job_id"`
		*Result
	}{JobID: jobID, Result: result})
	if err != nil {
		return err
	}

	resp, err := s.Client.Do(ctx, http.MethodPost, s.BaseURL+s.Path, s.Path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
