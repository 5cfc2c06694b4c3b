package voucher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/breml/rootcerts/embedded"
	"golang.org/x/time/rate"
)

// clientAssertionType is the RFC 7523 assertion type for private_key_jwt
// client authentication.
const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// TokenResponse is the token endpoint's success payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// TokenEndpointError is an RFC 6749 Section 5.2 error response from the
// token endpoint, carrying the HTTP status alongside the OAuth error code.
type TokenEndpointError struct {
	Status      int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *TokenEndpointError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("token endpoint returned %d: %s: %s", e.Status, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("token endpoint returned %d: %s", e.Status, e.Code)
	default:
		return fmt.Sprintf("token endpoint returned %d", e.Status)
	}
}

// TokenClientOptions configures a TokenClient.
type TokenClientOptions struct {
	// HTTPClient overrides the default client. Timeout and
	// UseEmbeddedRoots are ignored when set.
	HTTPClient *http.Client

	// Timeout bounds each exchange request. Defaults to 30 seconds.
	Timeout time.Duration

	// UseEmbeddedRoots verifies the endpoint's TLS chain against the
	// embedded Mozilla CA bundle instead of the system pool. Useful in
	// scratch containers that ship no ca-certificates.
	UseEmbeddedRoots bool

	// Limiter throttles requests to the token endpoint. Defaults to one
	// request per second with a small burst.
	Limiter *rate.Limiter
}

// TokenClient exchanges signed client assertions for voucher access tokens
// at a single token endpoint. Safe for concurrent use.
type TokenClient struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTokenClient validates the endpoint URL and builds a client.
func NewTokenClient(endpoint string, opts TokenClientOptions) (*TokenClient, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid token endpoint %q", endpoint)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
		if opts.UseEmbeddedRoots {
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM([]byte(embedded.MozillaCACertificatesPEM())) {
				return nil, errors.New("loading embedded Mozilla CA certificates")
			}
			httpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{RootCAs: pool},
			}
		}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 5)
	}

	return &TokenClient{
		endpoint:   endpoint,
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

// FetchVoucher posts the client assertion to the token endpoint and
// returns the issued voucher. scopes are joined into a single
// space-separated scope parameter; an empty slice omits it.
func (c *TokenClient) FetchVoucher(ctx context.Context, assertion string, scopes []string) (*TokenResponse, error) {
	if assertion == "" {
		return nil, errors.New("client assertion is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for token endpoint rate limit: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_assertion_type", clientAssertionType)
	form.Set("client_assertion", assertion)
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode >= 400 {
		endpointErr := &TokenEndpointError{Status: resp.StatusCode}
		// Error bodies are JSON per RFC 6749; anything else still yields
		// a status-only error rather than a decode failure.
		_ = json.Unmarshal(body, endpointErr)
		return nil, endpointErr
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	slog.Debug("voucher issued",
		"token_type", token.TokenType,
		"expires_in", token.ExpiresIn,
		"scope", token.Scope)
	return &token, nil
}
