package httpregistry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atbitcoin/handlekeeper/internal/core/domain"
	"github.com/atbitcoin/handlekeeper/internal/core/ports"
	"github.com/atbitcoin/handlekeeper/pkg/circuitbreaker"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

const (
	// MinRequestTimeout is the lowest accepted request timeout.
	MinRequestTimeout = 3 * time.Second
	// DefaultRequestTimeout ...
	DefaultRequestTimeout = 15 * time.Second
	// DefaultRateLimit is the default number of requests per second.
	DefaultRateLimit = 5

	proposedPath = "/api/proposed"
	statusPath   = "/api/spaces/status"
	reservePath  = "/api/reserve"
	claimPath    = "/api/android/claim"

	requestIDHeader = "X-Request-Id"
	maxBodySize     = 1 << 20
)

// Config holds the registry client settings.
type Config struct {
	BaseURL string
	// RequestTimeout defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration
	// RateLimit is the max number of requests per second, defaults to
	// DefaultRateLimit.
	RateLimit int
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}
	if c.RequestTimeout != 0 && c.RequestTimeout < MinRequestTimeout {
		return ErrTimeoutTooShort
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

type client struct {
	http    *http.Client
	baseURL string
	limiter ratelimit.Limiter
	cb      *gobreaker.CircuitBreaker
}

// NewRegistryClient returns an HTTP+JSON implementation of
// ports.RegistryClient.
func NewRegistryClient(cfg Config) (ports.RegistryClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	rate := cfg.RateLimit
	if rate == 0 {
		rate = DefaultRateLimit
	}

	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: ratelimit.New(rate),
		cb:      circuitbreaker.NewCircuitBreaker("registry"),
	}, nil
}

func (c *client) ProposedHandles(
	ctx context.Context, query string,
) ([]string, error) {
	status, body, err := c.post(ctx, proposedPath, map[string]string{
		"query": query,
	})
	if err != nil {
		return nil, err
	}
	if !isOK(status) {
		return nil, fmt.Errorf("%w: HTTP status %d", domain.ErrNetwork, status)
	}
	return parseProposedResponse(body)
}

func (c *client) HandleStatuses(
	ctx context.Context, handles []string,
) ([]domain.HandleStatus, error) {
	if handles == nil {
		handles = []string{}
	}
	status, body, err := c.post(ctx, statusPath, map[string][]string{
		"handles": handles,
	})
	if err != nil {
		return nil, err
	}
	if !isOK(status) {
		return nil, fmt.Errorf("%w: HTTP status %d", domain.ErrNetwork, status)
	}
	return domain.ParseHandleStatuses(body)
}

func (c *client) Reserve(
	ctx context.Context, handle, scriptPubkey, paymentMethod string,
) (*ports.Reservation, error) {
	status, body, err := c.post(ctx, reservePath, map[string]string{
		"handle":         handle,
		"script_pubkey":  scriptPubkey,
		"payment_method": paymentMethod,
	})
	if err != nil {
		return nil, err
	}
	if !isOK(status) {
		return nil, fmt.Errorf(
			"%w: %s", ErrReservationRejected, strings.TrimSpace(string(body)),
		)
	}
	return parseReserveResponse(body)
}

// Claim decodes the response body whatever the HTTP status, a refused claim
// is reported through ClaimResult.Error.
func (c *client) Claim(
	ctx context.Context, handle, scriptPubkey, purchaseToken string,
) (*ports.ClaimResult, error) {
	_, body, err := c.post(ctx, claimPath, map[string]string{
		"handle":         handle,
		"script_pubkey":  scriptPubkey,
		"purchase_token": purchaseToken,
	})
	if err != nil {
		return nil, err
	}
	return parseClaimResponse(body)
}

// post sends payload as JSON to path and returns the response status and
// body. Transport failures, 5xx responses and an open breaker are network
// errors.
func (c *client) post(
	ctx context.Context, path string, payload interface{},
) (int, []byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	requestID := uuid.New().String()
	logger := log.WithFields(log.Fields{
		"path":       path,
		"request_id": requestID,
	})

	c.limiter.Take()

	type response struct {
		status int
		body   []byte
	}
	res, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody),
		)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(requestIDHeader, requestID)

		status, body, err := c.doRequest(req)
		if err != nil {
			return nil, err
		}
		if status >= http.StatusInternalServerError {
			return nil, fmt.Errorf("HTTP status %d", status)
		}
		return response{status, body}, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		logger.WithError(err).Warn("registry request failed")
		return 0, nil, fmt.Errorf("%w: %s", domain.ErrNetwork, err)
	}

	r := res.(response)
	logger.WithField("status", r.status).Debug("registry request done")
	return r.status, r.body, nil
}

func (c *client) doRequest(req *http.Request) (int, []byte, error) {
	rs, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer rs.Body.Close()

	body, err := io.ReadAll(io.LimitReader(rs.Body, maxBodySize))
	if err != nil {
		return -1, nil, err
	}
	return rs.StatusCode, body, nil
}

func isOK(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
