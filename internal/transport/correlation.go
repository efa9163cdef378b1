package transport

import "github.com/google/uuid"

// newCorrelationID generates a fresh correlation ID for a Call that
// didn't already have one assigned by its caller (e.g. a job_id reused
// as the correlation ID across the job's lifetime).
func newCorrelationID() string {
	return uuid.NewString()
}
