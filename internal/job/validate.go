package job

import "math"

// MaxLogBytes is the default total size logs are truncated to.
const MaxLogBytes = 1 << 20

// sanitize applies the result-validation rules: score clamping, metric
// finiteness filtering, and log truncation. It never returns an error;
// violations are recorded as Result.Error while preserving whatever of
// the handler's output remains valid.
func sanitize(r *Result) *Result {
	out := *r

	if out.Score < 0 || out.Score > 1 {
		if out.Score < 0 {
			out.Score = 0
		} else {
			out.Score = 1
		}
		if out.Error == "" {
			out.Error = "invalid_score"
		}
	}

	if len(out.Metrics) > 0 {
		filtered := make(map[string]float64, len(out.Metrics))
		for k, v := range out.Metrics {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				continue
			}
			filtered[k] = v
		}
		out.Metrics = filtered
	}

	out.Logs = truncateLogs(out.Logs, MaxLogBytes)

	return &out
}

func truncateLogs(logs []string, maxBytes int) []string {
	if len(logs) == 0 {
		return logs
	}

	var total int
	kept := make([]string, 0, len(logs))
	for _, line := range logs {
		total += len(line)
		if total > maxBytes {
			break
		}
		kept = append(kept, line)
	}
	return kept
}

// failureResult builds the Result recorded when a handler panics or
// returns an error, per the "handler failure never crashes the runtime"
// rule: score 0, the stringified cause as Error.
func failureResult(cause string) *Result {
	return &Result{Score: 0, Error: cause}
}

// timeoutResult builds the Result recorded when a handler's deadline
// elapses before it returns.
func timeoutResult() *Result {
	return &Result{Score: 0, Error: "timeout"}
}

// notReadyResult builds the Result recorded when a job arrives while the
// lifecycle orchestrator is not in the Serving state.
func notReadyResult() *Result {
	return &Result{Score: 0, Error: "not_ready"}
}

// noHandlerResult builds the Result recorded when no job handler could be
// resolved for the request.
func noHandlerResult() *Result {
	return &Result{Score: 0, Error: "no_handler"}
}
