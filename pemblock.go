package voucher

import (
	"encoding/base64"
	"strings"
)

// ExtractDERBlock locates the first "-----BEGIN <label>-----" marker in
// document and the first "-----END <label>-----" marker after it, strips
// every whitespace character from the payload between them (tolerating
// re-wrapped or re-indented PEM text), and base64-decodes the result into
// raw DER bytes.
//
// Marker matching is a literal substring search, not anchored to line
// boundaries. A marker appearing elsewhere in the document (for example
// inside a comment) before the real block would therefore be matched
// first. PEM key files are single-purpose in practice, so this tolerant
// behavior is kept rather than fixed.
func ExtractDERBlock(document []byte, label string) ([]byte, error) {
	const op = "ExtractDERBlock"

	begin := "-----BEGIN " + label + "-----"
	end := "-----END " + label + "-----"

	doc := string(document)
	i := strings.Index(doc, begin)
	j := -1
	if i >= 0 {
		j = strings.Index(doc[i+len(begin):], end)
	}
	if i < 0 || j < 0 {
		return nil, keyErr(op, ErrMalformedPEM, "PEM block %q not found or malformed", label)
	}

	payload := doc[i+len(begin) : i+len(begin)+j]
	cleaned := strings.Map(dropSpace, payload)

	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, keyErrWrap(op, ErrMalformedPEM, err, "invalid base64 content in PEM block %q", label)
	}
	return der, nil
}

// dropSpace maps whitespace runes to -1 for strings.Map, removing spaces,
// tabs, newlines, and carriage returns wherever they appear in the payload.
func dropSpace(r rune) rune {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return -1
	}
	return r
}
