package voucher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTokenClient_FetchVoucher(t *testing.T) {
	// WHY: The exchange must post a correctly shaped RFC 7523 form and
	// surface the issued token verbatim.
	t.Parallel()

	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("got method %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		gotForm = map[string]string{
			"grant_type":            r.PostFormValue("grant_type"),
			"client_assertion_type": r.PostFormValue("client_assertion_type"),
			"client_assertion":      r.PostFormValue("client_assertion"),
			"scope":                 r.PostFormValue("scope"),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: "voucher-abc",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
			Scope:       "read write",
		})
	}))
	defer srv.Close()

	client, err := NewTokenClient(srv.URL, TokenClientOptions{})
	if err != nil {
		t.Fatalf("NewTokenClient: %v", err)
	}

	token, err := client.FetchVoucher(context.Background(), "signed.jwt.here", []string{"read", "write"})
	if err != nil {
		t.Fatalf("FetchVoucher: %v", err)
	}

	if token.AccessToken != "voucher-abc" || token.TokenType != "Bearer" || token.ExpiresIn != 3600 {
		t.Errorf("unexpected token response: %+v", token)
	}
	if gotForm["grant_type"] != "client_credentials" {
		t.Errorf("grant_type = %q", gotForm["grant_type"])
	}
	if gotForm["client_assertion_type"] != clientAssertionType {
		t.Errorf("client_assertion_type = %q", gotForm["client_assertion_type"])
	}
	if gotForm["client_assertion"] != "signed.jwt.here" {
		t.Errorf("client_assertion = %q", gotForm["client_assertion"])
	}
	if gotForm["scope"] != "read write" {
		t.Errorf("scope = %q", gotForm["scope"])
	}
}

func TestTokenClient_FetchVoucher_NoScopes(t *testing.T) {
	// WHY: An empty scope list must omit the parameter rather than send an
	// empty string, which some authorization servers reject.
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if _, present := r.PostForm["scope"]; present {
			t.Error("scope parameter should be omitted")
		}
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "v", TokenType: "Bearer", ExpiresIn: 60})
	}))
	defer srv.Close()

	client, err := NewTokenClient(srv.URL, TokenClientOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.FetchVoucher(context.Background(), "a.b.c", nil); err != nil {
		t.Fatalf("FetchVoucher: %v", err)
	}
}

func TestTokenClient_OAuthErrorResponse(t *testing.T) {
	// WHY: RFC 6749 error bodies must come back as a typed error carrying
	// the OAuth code and description, so callers can distinguish
	// invalid_client from a transient server fault.
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_client",
			"error_description": "unknown key id",
		})
	}))
	defer srv.Close()

	client, err := NewTokenClient(srv.URL, TokenClientOptions{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.FetchVoucher(context.Background(), "a.b.c", nil)
	var endpointErr *TokenEndpointError
	if !errors.As(err, &endpointErr) {
		t.Fatalf("expected *TokenEndpointError, got: %v", err)
	}
	if endpointErr.Status != http.StatusUnauthorized || endpointErr.Code != "invalid_client" {
		t.Errorf("unexpected error fields: %+v", endpointErr)
	}
	if !strings.Contains(err.Error(), "invalid_client") || !strings.Contains(err.Error(), "unknown key id") {
		t.Errorf("error string should carry code and description: %v", err)
	}
}

func TestTokenClient_NonJSONErrorBody(t *testing.T) {
	// WHY: Gateways in front of the authorization server produce HTML error
	// pages; those must still yield a status-classified error, not a JSON
	// decode failure.
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	client, err := NewTokenClient(srv.URL, TokenClientOptions{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.FetchVoucher(context.Background(), "a.b.c", nil)
	var endpointErr *TokenEndpointError
	if !errors.As(err, &endpointErr) {
		t.Fatalf("expected *TokenEndpointError, got: %v", err)
	}
	if endpointErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", endpointErr.Status)
	}
}

func TestTokenClient_MissingAccessToken(t *testing.T) {
	// WHY: A 200 with no access_token is a broken server; returning an empty
	// token would propagate a useless credential downstream.
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token_type": "Bearer"})
	}))
	defer srv.Close()

	client, err := NewTokenClient(srv.URL, TokenClientOptions{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.FetchVoucher(context.Background(), "a.b.c", nil)
	if err == nil || !strings.Contains(err.Error(), "missing access_token") {
		t.Fatalf("expected missing access_token error, got: %v", err)
	}
}

func TestTokenClient_Validation(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "not a url", "/relative/only"} {
		if _, err := NewTokenClient(endpoint, TokenClientOptions{}); err == nil {
			t.Errorf("endpoint %q: expected error", endpoint)
		}
	}

	client, err := NewTokenClient("https://auth.example.org/token", TokenClientOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.FetchVoucher(context.Background(), "", nil); err == nil {
		t.Error("empty assertion should be rejected before any request")
	}
}
