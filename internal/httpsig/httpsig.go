// Package httpsig implements the signed HTTP client used to talk to the
// Consumer and Admin control planes: every request is authenticated with
// an Ed25519 signature over a canonical string, and GET/PUT requests are
// retried with exponential backoff on transport-level failures only.
package httpsig

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	cbackoff "github.com/CortexLM/challenge/common/backoff"
	"github.com/CortexLM/challenge/common/errors"
	"github.com/CortexLM/challenge/common/logging"
	"github.com/CortexLM/challenge/internal/crypto"
	"github.com/CortexLM/challenge/internal/identity"
)

const moduleName = "http"

var (
	// ErrStatus is returned when the peer responds with a non-2xx status.
	ErrStatus = errors.New(moduleName, 1, "http: unexpected response status")
	// ErrNetwork is returned when the request could not be completed at
	// the transport level, after exhausting retries where applicable.
	ErrNetwork = errors.New(moduleName, 2, "http: network error")
	// ErrSignatureRejected is returned when the peer rejects our request
	// signature (401/signature-specific error response).
	ErrSignatureRejected = errors.New(moduleName, 3, "http: signature rejected by peer")
)

var logger = logging.GetLogger("httpsig")

const (
	requestTimeout = 30 * time.Second
	maxRetries     = 3
)

// retriableMethods is the set of methods this client retries on
// transport-level errors; POST is never retried since job-result
// submissions and writes are not safely idempotent in general.
var retriableMethods = map[string]bool{
	http.MethodGet: true,
	http.MethodPut: true,
}

// Client issues Ed25519-signed HTTP requests on behalf of a single
// long-term identity.
type Client struct {
	id         *identity.Identity
	httpClient *http.Client
}

// New creates a signed HTTP client bound to id.
func New(id *identity.Identity) *Client {
	return &Client{
		id: id,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// canonicalString builds the string this client signs:
// METHOD\nPATH\nhex(SHA256(body))\ntimestamp\nnonce
func canonicalString(method, path string, bodyHash [32]byte, timestamp, nonce string) []byte {
	var buf bytes.Buffer
	buf.WriteString(method)
	buf.WriteByte('\n')
	buf.WriteString(path)
	buf.WriteByte('\n')
	buf.WriteString(hex.EncodeToString(bodyHash[:]))
	buf.WriteByte('\n')
	buf.WriteString(timestamp)
	buf.WriteByte('\n')
	buf.WriteString(nonce)
	return buf.Bytes()
}

// Do issues method against url with the given body (may be nil), signs
// the request per the canonical string scheme, and returns the response.
// The caller is responsible for closing the response body.
func (c *Client) Do(ctx context.Context, method, url, path string, body []byte) (*http.Response, error) {
	op := func() (*http.Response, error) {
		return c.doOnce(ctx, method, url, path, body)
	}

	if !retriableMethods[method] {
		return op()
	}

	var resp *http.Response
	eb := cbackoff.NewExponentialBackOff()
	bo := backoff.WithMaxRetries(eb, maxRetries)
	bo = backoff.WithContext(bo, ctx)

	err := backoff.Retry(func() error {
		r, err := op()
		if err != nil {
			if errors.Is(err, ErrNetwork) {
				logger.Debug("retrying after transport error", "method", method, "path", path, "err", err)
				return err
			}
			// Non-network failures (bad status, rejected signature) are
			// not retried.
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}, bo)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) doOnce(ctx context.Context, method, url, path string, body []byte) (*http.Response, error) {
	bodyHash := sha256.Sum256(body)
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonceBytes, err := crypto.RandomBytes(16)
	if err != nil {
		return nil, err
	}
	nonce := hex.EncodeToString(nonceBytes)

	sig := c.id.Sign(canonicalString(method, path, bodyHash, timestamp, nonce))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.WithContext(ErrNetwork, err.Error())
	}
	req.Header.Set("X-Signature", base64.StdEncoding.EncodeToString(sig))
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Nonce", nonce)
	req.Header.Set("X-Public-Key", base64.StdEncoding.EncodeToString(c.id.PublicKey()))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithContext(ErrNetwork, err.Error())
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		resp.Body.Close()
		return nil, ErrSignatureRejected
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.WithContext(ErrStatus, fmt.Sprintf("status %d", resp.StatusCode))
	}

	return resp, nil
}
