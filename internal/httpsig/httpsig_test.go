package httpsig

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CortexLM/challenge/internal/crypto"
	"github.com/CortexLM/challenge/internal/identity"
)

func TestDoSignsAndVerifies(t *testing.T) {
	require := require.New(t)

	id, err := identity.New()
	require.NoError(err)

	var gotSig, gotTS, gotNonce, gotPub string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotTS = r.Header.Get("X-Timestamp")
		gotNonce = r.Header.Get("X-Nonce")
		gotPub = r.Header.Get("X-Public-Key")

		sigBytes, _ := base64.StdEncoding.DecodeString(gotSig)
		bodyHash := sha256Sum(t, r)
		msg := canonicalString(r.Method, r.URL.Path, bodyHash, gotTS, gotNonce)
		require.NoError(crypto.Verify(id.PublicKey(), msg, sigBytes))

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(id)
	resp, err := c.Do(context.Background(), http.MethodGet, srv.URL+"/sdk/health", "/sdk/health", nil)
	require.NoError(err)
	defer resp.Body.Close()

	require.Equal(base64.StdEncoding.EncodeToString(id.PublicKey()), gotPub)
	require.NotEmpty(gotSig)
	require.NotEmpty(gotTS)
	require.NotEmpty(gotNonce)
}

func TestDoRejectsUnauthorized(t *testing.T) {
	require := require.New(t)

	id, err := identity.New()
	require.NoError(err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(id)
	_, err = c.Do(context.Background(), http.MethodPost, srv.URL+"/sdk/weights", "/sdk/weights", []byte("{}"))
	require.ErrorIs(err, ErrSignatureRejected)
}

func sha256Sum(t *testing.T, r *http.Request) [32]byte {
	t.Helper()
	var body []byte
	if r.Body != nil {
		b := make([]byte, 0)
		buf := make([]byte, 4096)
		for {
			n, err := r.Body.Read(buf)
			b = append(b, buf[:n]...)
			if err != nil {
				break
			}
		}
		body = b
	}
	return sha256.Sum256(body)
}
