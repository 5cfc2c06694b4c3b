package voucher

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAssertionLifetime bounds the validity window of a client
// assertion. Authorization servers commonly reject assertions valid for
// more than five minutes.
const DefaultAssertionLifetime = 5 * time.Minute

// AssertionConfig describes the claims and signing parameters of a JWT
// client assertion.
type AssertionConfig struct {
	// ClientID is the platform-issued client identifier. Required.
	ClientID string

	// Audience is the token endpoint (or issuer) the assertion is
	// addressed to. Required.
	Audience string

	// Issuer overrides the "iss" claim. Defaults to ClientID.
	Issuer string

	// Subject overrides the "sub" claim. Defaults to ClientID.
	Subject string

	// KeyID is set as the "kid" header when non-empty, letting the
	// platform select the registered public key.
	KeyID string

	// Algorithm is the RSA signing algorithm: RS256 (default), RS384,
	// or RS512.
	Algorithm string

	// Lifetime is the iat-to-exp window. Defaults to
	// DefaultAssertionLifetime.
	Lifetime time.Duration
}

// signingMethod resolves the configured algorithm name to a jwt-go RSA
// signing method.
func (c AssertionConfig) signingMethod() (jwt.SigningMethod, error) {
	switch c.Algorithm {
	case "", "RS256":
		return jwt.SigningMethodRS256, nil
	case "RS384":
		return jwt.SigningMethodRS384, nil
	case "RS512":
		return jwt.SigningMethodRS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q (want RS256, RS384, or RS512)", c.Algorithm)
	}
}

// BuildClientAssertion builds and signs the JWT presented as
// client_assertion during token exchange. The "jti" claim is a fresh UUID
// per call, so assertions are single-use from the server's perspective.
func BuildClientAssertion(key *rsa.PrivateKey, cfg AssertionConfig) (string, error) {
	if key == nil {
		return "", errors.New("signing key is required")
	}
	if cfg.ClientID == "" || cfg.Audience == "" {
		return "", errors.New("client id and audience are required")
	}

	method, err := cfg.signingMethod()
	if err != nil {
		return "", err
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = cfg.ClientID
	}
	subject := cfg.Subject
	if subject == "" {
		subject = cfg.ClientID
	}
	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultAssertionLifetime
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"iss": issuer,
		"sub": subject,
		"aud": cfg.Audience,
		"iat": now.Unix(),
		"exp": now.Add(lifetime).Unix(),
		"jti": uuid.NewString(),
	}

	tok := jwt.NewWithClaims(method, claims)
	if cfg.KeyID != "" {
		tok.Header["kid"] = cfg.KeyID
	}

	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing client assertion: %w", err)
	}
	return signed, nil
}
