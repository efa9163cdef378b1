package main

// Process exit codes. Only 0 represents an orderly shutdown; every
// non-zero code tells the process supervisor whether a restart is
// pointless (config error) or worth retrying (attestation/transport
// failures that may clear on their own).
const (
	// exitOK is returned after a normal termination-signal-triggered
	// drain completes.
	exitOK = 0
	// exitConfigError is returned when configuration fails validation
	// or the HTTP façade cannot be started.
	exitConfigError = 2
	// exitAttestationFailure is returned when the session handshake for
	// one role has failed maxConsecutiveSessionFailures times in a row
	// with no successful handshake in between.
	exitAttestationFailure = 3
	// exitTransportFailure is returned when a required peer connection
	// cannot be (re-)established after exhausting its retry budget.
	exitTransportFailure = 4
)
