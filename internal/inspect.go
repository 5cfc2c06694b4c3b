package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/interopkit/voucher"
)

// KeyInfo holds the inspection details for a key file. Only structural
// facts appear here; private key material is never included.
type KeyInfo struct {
	Path           string `json:"path" yaml:"path"`
	Variant        string `json:"variant" yaml:"variant"`
	Algorithm      string `json:"algorithm" yaml:"algorithm"`
	Bits           int    `json:"bits" yaml:"bits"`
	PublicExponent int    `json:"public_exponent" yaml:"publicExponent"`
	SubjectKeyID   string `json:"subject_key_id" yaml:"subjectKeyId"`
	ModulusSHA256  string `json:"modulus_sha256" yaml:"modulusSha256"`
	PublicKeyPEM   string `json:"public_key_pem,omitempty" yaml:"publicKeyPem,omitempty"`
}

// InspectKey loads the key at path and reports its structural facts:
// variant, size, SKI, and the public half in registration-ready PEM form.
func InspectKey(path string, password *voucher.Secret) (*KeyInfo, error) {
	key, err := voucher.LoadPrivateKey(path, password)
	if err != nil {
		return nil, err
	}

	// The loader already validated and read the file; a second read only
	// serves variant reporting.
	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	info := &KeyInfo{
		Path:           path,
		Variant:        voucher.DetectVariant(data).String(),
		Algorithm:      "RSA",
		Bits:           key.N.BitLen(),
		PublicExponent: key.E,
		ModulusSHA256:  voucher.ModulusFingerprint(&key.PublicKey),
	}

	if ski, err := voucher.ComputeSKI(&key.PublicKey); err == nil {
		info.SubjectKeyID = voucher.ColonHex(ski)
	}
	if pubPEM, err := voucher.MarshalPublicKeyToPEM(&key.PublicKey); err == nil {
		info.PublicKeyPEM = pubPEM
	}
	return info, nil
}

// FormatKeyInfo renders a KeyInfo as text, json, or yaml.
func FormatKeyInfo(info *KeyInfo, format string) (string, error) {
	switch format {
	case "json":
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding inspect result: %w", err)
		}
		return string(out) + "\n", nil
	case "yaml":
		out, err := yaml.Marshal(info)
		if err != nil {
			return "", fmt.Errorf("encoding inspect result: %w", err)
		}
		return string(out), nil
	case "text", "":
		var b strings.Builder
		fmt.Fprintf(&b, "Path:            %s\n", info.Path)
		fmt.Fprintf(&b, "Variant:         %s\n", info.Variant)
		fmt.Fprintf(&b, "Algorithm:       %s %d-bit\n", info.Algorithm, info.Bits)
		fmt.Fprintf(&b, "Public exponent: %d\n", info.PublicExponent)
		fmt.Fprintf(&b, "Subject key ID:  %s\n", info.SubjectKeyID)
		fmt.Fprintf(&b, "Modulus SHA256:  %s\n", info.ModulusSHA256)
		if info.PublicKeyPEM != "" {
			b.WriteString("\n" + info.PublicKeyPEM)
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("unsupported format %q (want text, json, or yaml)", format)
	}
}
