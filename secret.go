package voucher

// Secret holds sensitive material (a key password) in a clearable buffer.
// It redacts itself when formatted with fmt or logged, and Destroy zeroes
// the underlying bytes so the plaintext does not linger after use.
type Secret struct {
	buf []byte
}

// NewSecret copies s into a fresh Secret. An empty string yields a Secret
// for which IsZero reports true.
func NewSecret(s string) *Secret {
	if s == "" {
		return &Secret{}
	}
	return &Secret{buf: []byte(s)}
}

// SecretFromBytes copies b into a fresh Secret. The caller remains
// responsible for clearing its own copy.
func SecretFromBytes(b []byte) *Secret {
	if len(b) == 0 {
		return &Secret{}
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Secret{buf: cp}
}

// IsZero reports whether the secret is nil, destroyed, or empty.
func (s *Secret) IsZero() bool {
	return s == nil || len(s.buf) == 0
}

// Bytes returns the secret material. The slice aliases the internal buffer
// and is only valid until Destroy is called; callers must not retain it.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.buf
}

// Destroy zeroes the buffer. The Secret is unusable afterwards. Safe to
// call on nil and safe to call more than once.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.buf = nil
}

// String implements fmt.Stringer and always redacts.
func (s *Secret) String() string {
	return "****"
}

// GoString redacts %#v output as well.
func (s *Secret) GoString() string {
	return "voucher.Secret(****)"
}
