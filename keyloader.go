// Package voucher obtains OAuth2 voucher (bearer access) tokens for a
// federated data-interoperability platform. A client proves possession of
// a registered RSA key by signing a JWT client assertion, then exchanges
// the assertion for a token at the platform's authorization endpoint.
// The package covers PEM private-key ingestion with classified failure
// reporting, client-assertion construction, and the token exchange itself.
package voucher

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/youmark/pkcs8"
)

// PEMVariant identifies the private-key encoding of a PEM document.
type PEMVariant int

const (
	// VariantUnknown means no supported key header was found.
	VariantUnknown PEMVariant = iota
	// VariantPKCS1 is a traditional "RSA PRIVATE KEY" block.
	VariantPKCS1
	// VariantPKCS8 is an unencrypted "PRIVATE KEY" block.
	VariantPKCS8
	// VariantPKCS8Encrypted is an "ENCRYPTED PRIVATE KEY" block.
	VariantPKCS8Encrypted
)

// PEM block labels for the supported key encodings.
const (
	labelPKCS1          = "RSA PRIVATE KEY"
	labelPKCS8          = "PRIVATE KEY"
	labelPKCS8Encrypted = "ENCRYPTED PRIVATE KEY"
)

func (v PEMVariant) String() string {
	switch v {
	case VariantPKCS1:
		return "pkcs1-rsa"
	case VariantPKCS8:
		return "pkcs8"
	case VariantPKCS8Encrypted:
		return "pkcs8-encrypted"
	default:
		return "unknown"
	}
}

// DetectVariant scans a PEM document for the supported key headers and
// returns the matching variant. The encrypted form is checked first: its
// header text contains the plain-PKCS#8 header as a substring and would
// otherwise be misclassified. Detection is a substring search over the
// full BEGIN marker, so interior whitespace and blank lines elsewhere in
// the document do not affect it.
func DetectVariant(document []byte) PEMVariant {
	doc := string(document)
	switch {
	case strings.Contains(doc, "-----BEGIN "+labelPKCS8Encrypted+"-----"):
		return VariantPKCS8Encrypted
	case strings.Contains(doc, "-----BEGIN "+labelPKCS8+"-----"):
		return VariantPKCS8
	case strings.Contains(doc, "-----BEGIN "+labelPKCS1+"-----"):
		return VariantPKCS1
	default:
		return VariantUnknown
	}
}

// LoadPrivateKey reads and parses an RSA private key from a PEM file.
// password is required iff the key is an encrypted PKCS#8 structure; it is
// ignored otherwise, and may be nil. The returned key is exclusively owned
// by the caller; the loader retains no reference to it or to the password.
//
// Every failure is classified: errors.Is against ErrInvalidArgument,
// ErrNotFound, ErrUnsupportedFormat, ErrAccessDenied, ErrPasswordRequired,
// ErrMalformedPEM, or ErrCryptoImport tells the caller which remedy
// applies. Failures are deterministic functions of the input; nothing is
// retried internally.
func LoadPrivateKey(path string, password *Secret) (*rsa.PrivateKey, error) {
	const op = "LoadPrivateKey"

	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, keyErr(op, ErrInvalidArgument, "key path cannot be null or empty")
	}

	info, err := os.Stat(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, keyErr(op, ErrNotFound, "key file not found: %s", trimmed)
		}
		return nil, keyErrWrap(op, ErrAccessDenied, err, "accessing key file %s", trimmed)
	}
	if info.IsDir() {
		return nil, keyErr(op, ErrNotFound, "key file not found: %s is a directory", trimmed)
	}

	// Rejected by extension before the file is read, so a corrupt or fake
	// PFX still fails with the right classification.
	switch strings.ToLower(filepath.Ext(trimmed)) {
	case ".pfx", ".p12":
		return nil, keyErr(op, ErrUnsupportedFormat, "%s: only PEM keys are supported", trimmed)
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, keyErrWrap(op, ErrAccessDenied, err, "reading key file %s", trimmed)
	}

	return LoadPrivateKeyFromPEM(data, password)
}

// LoadPrivateKeyFromPEM parses an RSA private key from in-memory PEM data.
// See LoadPrivateKey for the password contract and error classification.
func LoadPrivateKeyFromPEM(data []byte, password *Secret) (*rsa.PrivateKey, error) {
	variant := DetectVariant(data)
	slog.Debug("detected PEM variant", "variant", variant.String(), "size", len(data))

	if variant == VariantPKCS8Encrypted {
		return loadEncryptedPKCS8(data, password)
	}
	return loadPlain(data, variant)
}

// loadEncryptedPKCS8 extracts and decrypts an ENCRYPTED PRIVATE KEY block.
func loadEncryptedPKCS8(data []byte, password *Secret) (*rsa.PrivateKey, error) {
	const op = "LoadPrivateKey"

	if password.IsZero() {
		return nil, keyErr(op, ErrPasswordRequired, "key is encrypted and requires a password")
	}

	der, err := ExtractDERBlock(data, labelPKCS8Encrypted)
	if err != nil {
		return nil, err
	}

	key, err := pkcs8.ParsePKCS8PrivateKeyRSA(der, password.Bytes())
	if err != nil {
		// Wrong password and corrupt ciphertext are indistinguishable here;
		// both are import failures, never reported as a malformed container.
		return nil, keyErrWrap(op, ErrCryptoImport, err, "decrypting PKCS#8 key (wrong password or corrupt data)")
	}
	slog.Debug("loaded encrypted PKCS#8 key", "bits", key.N.BitLen(), "der_bytes", len(der))
	return key, nil
}

// loadPlain handles unencrypted and unrecognized documents. It probes the
// permissive stdlib PEM import first, then falls back to explicit DER
// extraction per detected variant, which tolerates payloads whose line
// structure the strict decoder rejects.
func loadPlain(data []byte, variant PEMVariant) (*rsa.PrivateKey, error) {
	const op = "LoadPrivateKey"

	if key, err := parsePEMRSAKey(data); err == nil {
		return key, nil
	}

	switch variant {
	case VariantPKCS8:
		der, err := ExtractDERBlock(data, labelPKCS8)
		if err != nil {
			return nil, err
		}
		parsed, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			return nil, keyErrWrap(op, ErrCryptoImport, err, "parsing PKCS#8 key")
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, keyErr(op, ErrCryptoImport, "PKCS#8 block contains a %T, not an RSA key", parsed)
		}
		return key, nil

	case VariantPKCS1:
		der, err := ExtractDERBlock(data, labelPKCS1)
		if err != nil {
			return nil, err
		}
		key, err := x509.ParsePKCS1PrivateKey(der)
		if err != nil {
			return nil, keyErrWrap(op, ErrCryptoImport, err, "parsing PKCS#1 key")
		}
		return key, nil

	default:
		return nil, keyErr(op, ErrUnsupportedFormat, "unsupported or malformed PEM format")
	}
}

// parsePEMRSAKey is the generic import probe: decode the first PEM block
// and try PKCS#8 then PKCS#1 regardless of the block label, handling
// mislabeled keys the way tools in the wild emit them.
func parsePEMRSAKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if key, ok := parsed.(*rsa.PrivateKey); ok {
			return key, nil
		}
		return nil, errors.New("PKCS#8 block does not contain an RSA key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, errors.New("PEM block does not contain an RSA private key")
}
