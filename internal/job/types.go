// Package job implements the per-request execution pipeline: building a
// Context for a registered handler, enforcing a deadline, validating and
// sanitizing the handler's returned JobResult, and submitting the result
// to the Consumer's results endpoint independently of the reply frame.
package job

import (
	"github.com/CortexLM/challenge/internal/httpsig"
	"github.com/CortexLM/challenge/internal/orm"
)

// Request is the decoded payload of a job.execute frame.
type Request struct {
	JobID           string      `cbor:"job_id"`
	ChallengeID     string      `cbor:"challenge_id"`
	ValidatorHotkey string      `cbor:"validator_hotkey"`
	SessionToken    string      `cbor:"session_token"`
	JobName         string      `cbor:"job_name,omitempty"`
	Payload         interface{} `cbor:"payload"`
}

// Context is the immutable bundle passed to a job handler for the
// lifetime of a single invocation.
type Context struct {
	ConsumerBaseURL string
	SessionToken    string
	JobID           string
	ChallengeID     string
	ValidatorHotkey string

	SignedHTTP    *httpsig.Client
	ORM           *orm.Bridge
	ResultsClient *httpsig.Client
	CVMClient     *CVMClient
	ValuesClient  *ValuesClient
}

// Result is the raw value returned by a job handler, before executor-side
// validation (score clamping, metric filtering, log truncation).
type Result struct {
	Score                float64            `cbor:"score"`
	Metrics              map[string]float64 `cbor:"metrics,omitempty"`
	JobType              string             `cbor:"job_type"`
	Logs                 []string           `cbor:"logs,omitempty"`
	AllowedLogContainers []string           `cbor:"allowed_log_containers,omitempty"`
	Error                string             `cbor:"error,omitempty"`
}
