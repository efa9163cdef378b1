package main

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CortexLM/challenge/internal/httpsig"
	"github.com/CortexLM/challenge/internal/pubendpoint"
	"github.com/CortexLM/challenge/internal/session"
	"github.com/CortexLM/challenge/internal/transport"
	"github.com/CortexLM/challenge/sdk"
)

// maxConsecutiveSessionFailures bounds the reconnect-with-backoff policy
// from the peer session manager's retry budget: once a role's handshake
// or transport has failed this many times in a row with no intervening
// successful session, the failure is treated as unrecoverable and the
// process exits per the documented exit codes rather than spinning
// forever accepting doomed connections.
const maxConsecutiveSessionFailures = 10

// sessionFailureTracker counts consecutive handshake/transport failures
// per role, independently of each other, and resets on any success.
type sessionFailureTracker struct {
	mu                  sync.Mutex
	attestationFailures map[transport.Role]int
	transportFailures   map[transport.Role]int
}

func newSessionFailureTracker() *sessionFailureTracker {
	return &sessionFailureTracker{
		attestationFailures: make(map[transport.Role]int),
		transportFailures:   make(map[transport.Role]int),
	}
}

func (t *sessionFailureTracker) recordAttestationFailure(role transport.Role) {
	t.mu.Lock()
	t.attestationFailures[role]++
	n := t.attestationFailures[role]
	t.mu.Unlock()
	if n >= maxConsecutiveSessionFailures {
		logger.Error("unrecoverable attestation failure: retry budget exhausted", "role", role.String(), "attempts", n)
		os.Exit(exitAttestationFailure)
	}
}

func (t *sessionFailureTracker) recordTransportFailure(role transport.Role) {
	t.mu.Lock()
	t.transportFailures[role]++
	n := t.transportFailures[role]
	t.mu.Unlock()
	if n >= maxConsecutiveSessionFailures {
		logger.Error("unrecoverable transport failure: retry budget exhausted", "role", role.String(), "attempts", n)
		os.Exit(exitTransportFailure)
	}
}

func (t *sessionFailureTracker) recordSuccess(role transport.Role) {
	t.mu.Lock()
	t.attestationFailures[role] = 0
	t.transportFailures[role] = 0
	t.mu.Unlock()
}

var sessionFailures = newSessionFailureTracker()

// requireSignedAdmin wraps next so it only runs after the request's
// signed-HTTP envelope verifies against the currently attested Admin's
// long-term public key. Used for endpoints the HTTP surface table marks
// "signed + Admin".
func requireSignedAdmin(rt *sdk.Runtime, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminKey := rt.AdminPublicKey()
		if adminKey == nil {
			http.Error(w, "no admin session established", http.StatusServiceUnavailable)
			return
		}
		body, err := httpsig.ReadAndRestoreBody(r)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if _, err := httpsig.VerifyRequest(r, body, adminKey); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// requireSigned wraps next so it only runs after the request's
// signed-HTTP envelope verifies under whatever long-term key it declares
// (no pinning to a specific peer), used for endpoints the HTTP surface
// table marks "signed" without an additional role requirement.
func requireSigned(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := httpsig.ReadAndRestoreBody(r)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if _, err := httpsig.VerifyRequest(r, body, nil); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// newMux builds the HTTP façade: health, weights, public and admin
// endpoints, the Prometheus scrape endpoint, and the two websocket
// upgrade endpoints peers use to establish an attested Admin or Consumer
// session.
func newMux(rt *sdk.Runtime) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/sdk/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(rt.Lifecycle.State().String()))
	})

	mux.HandleFunc("/sdk/weights", requireSigned(handleWeights(rt)))
	mux.HandleFunc("/sdk/public/", handlePublic(rt))
	mux.HandleFunc("/sdk/admin/db/credentials", requireSignedAdmin(rt, handleAdminCredentials(rt)))
	mux.HandleFunc("/sdk/admin/", requireSignedAdmin(rt, handleAdmin(rt)))

	mux.HandleFunc("/sdk/session/admin", handleSessionUpgrade(rt, transport.RoleAdmin))
	mux.HandleFunc("/sdk/session/consumer", handleSessionUpgrade(rt, transport.RoleConsumer))

	transport.InitMetrics()
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func handleWeights(rt *sdk.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hook := rt.App.Registry().Weights()
		if hook == nil {
			http.Error(w, "no weights hook registered", http.StatusNotFound)
			return
		}
		result, err := hook(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

// handlePublic dispatches /sdk/public/{name} calls, recovering the
// caller claims from the proxy-issued bearer token before invoking the
// named public handler.
func handlePublic(rt *sdk.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/sdk/public/"):]

		var tok pubendpoint.Token
		if err := json.NewDecoder(r.Body).Decode(&tok); err != nil {
			http.Error(w, "malformed token envelope", http.StatusBadRequest)
			return
		}

		mediator := rt.PublicMediator()
		if mediator == nil {
			http.Error(w, "no admin session established", http.StatusServiceUnavailable)
			return
		}
		claims, err := mediator.Verify(&tok)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		handler, err := rt.App.Registry().ResolvePublic(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		result, err := handler(r.Context(), claims)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

// handleAdmin dispatches /sdk/admin/{name} calls. Every request must
// carry a valid signed-HTTP envelope from the Admin peer's long-term
// key; verification happens in the signed-HTTP middleware wrapping this
// handler, not here.
func handleAdmin(rt *sdk.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/sdk/admin/"):]

		handler, err := rt.App.Registry().ResolveAdmin(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		var payload interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && r.ContentLength != 0 {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		result, err := handler(r.Context(), payload)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

// handleAdminCredentials delivers SealedCredentials from Admin: a DSN
// sealed to this process's X25519-converted identity public key.
func handleAdminCredentials(rt *sdk.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Ciphertext []byte `json:"ciphertext"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		if err := rt.SealCredentials(body.Ciphertext); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSessionUpgrade upgrades an HTTP connection to a websocket,
// performs the server side of the attestation handshake declaring role,
// admits the resulting peer, and serves it until it disconnects.
func handleSessionUpgrade(rt *sdk.Runtime, role transport.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("session upgrade failed", "role", role.String(), "err", err)
			return
		}
		defer ws.Close()

		conn, env, err := transport.ServerHandshake(ws, rt.Identity, rt.QuoteProvider(), role, rt.RequestHandler(role))
		if err != nil {
			logger.Warn("session handshake failed", "role", role.String(), "err", err)
			sessionFailures.recordAttestationFailure(role)
			return
		}
		sessionFailures.recordSuccess(role)

		peer := &session.Peer{Role: role, Conn: conn, Attestation: env}
		rt.Sessions.Admit(peer)
		defer rt.Sessions.Drop(role)

		if role == transport.RoleAdmin {
			rt.OnAdminConnected(env)
			defer rt.OnAdminDisconnected()
		}

		conn.Wait()
		sessionFailures.recordTransportFailure(role)
	}
}
