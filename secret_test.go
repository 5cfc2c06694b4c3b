package voucher

import (
	"bytes"
	"fmt"
	"testing"
)

func TestSecret_Redaction(t *testing.T) {
	// WHY: Secrets end up in log lines and error messages through fmt verbs;
	// every formatting path must redact.
	t.Parallel()
	s := NewSecret("hunter2")

	for _, rendered := range []string{
		fmt.Sprintf("%v", s),
		fmt.Sprintf("%s", s),
		fmt.Sprintf("%#v", s),
		fmt.Sprint(s),
	} {
		if bytes.Contains([]byte(rendered), []byte("hunter2")) {
			t.Errorf("secret leaked through formatting: %q", rendered)
		}
	}
}

func TestSecret_Destroy(t *testing.T) {
	// WHY: Destroy must zero the buffer in place so the plaintext does not
	// linger in memory, and must be safe to call repeatedly and on nil.
	t.Parallel()
	s := NewSecret("hunter2")
	buf := s.Bytes()

	s.Destroy()
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed after Destroy", i)
		}
	}
	if !s.IsZero() {
		t.Error("destroyed secret should report IsZero")
	}

	s.Destroy() // second call is a no-op
	var nilSecret *Secret
	nilSecret.Destroy()
	if !nilSecret.IsZero() {
		t.Error("nil secret should report IsZero")
	}
}

func TestSecretFromBytes_Copies(t *testing.T) {
	// WHY: The constructor must copy its input so clearing the caller's
	// buffer does not clear the secret, and vice versa.
	t.Parallel()
	src := []byte("hunter2")
	s := SecretFromBytes(src)

	src[0] = 'X'
	if string(s.Bytes()) != "hunter2" {
		t.Error("secret should not alias the caller's buffer")
	}
}

func TestSecret_IsZero(t *testing.T) {
	t.Parallel()
	if !NewSecret("").IsZero() {
		t.Error("empty secret should be zero")
	}
	if NewSecret("x").IsZero() {
		t.Error("non-empty secret should not be zero")
	}
}
