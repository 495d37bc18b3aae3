package seal

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/fernet/fernet-go"

	"github.com/starford/keyhash/internal/apperr"
)

const secret = "01234567890123456789012345678901"

// A low work factor keeps scrypt fast in tests.
func testSealers() map[Format]*Sealer {
	return map[Format]*Sealer{Fernet: New(Fernet, 10), Age: New(Age, 10)}
}

func TestEncrypt_RoundTrip(t *testing.T) {
	for format, s := range testSealers() {
		for _, msg := range []string{"Hello, World!", "", "1234567890", strings.Repeat("A", 500)} {
			ct, err := s.Encrypt(msg, secret)
			if err != nil {
				t.Fatalf("%s: Encrypt(%q): %v", format, msg, err)
			}
			if ct == msg || ct == "" {
				t.Errorf("%s: ciphertext %q should differ from message", format, ct)
			}
			if _, err := base64.StdEncoding.DecodeString(ct); err != nil {
				t.Errorf("%s: ciphertext is not base64: %v", format, err)
			}
			got, err := s.Decrypt(ct, secret)
			if err != nil {
				t.Fatalf("%s: Decrypt: %v", format, err)
			}
			if got != msg {
				t.Errorf("%s: round trip = %q, want %q", format, got, msg)
			}
		}
	}
}

func TestEncrypt_FernetTokenKeyedBySecretBytes(t *testing.T) {
	ct, err := New(Fernet, 0).Encrypt("Hello, World!", secret)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tok, err := base64.StdEncoding.DecodeString(ct)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(tok), "gAAAAA") {
		t.Errorf("token %q does not carry the Fernet version byte", tok)
	}

	var k fernet.Key
	copy(k[:], secret)
	if got := fernet.VerifyAndDecrypt(tok, 0, []*fernet.Key{&k}); string(got) != "Hello, World!" {
		t.Errorf("direct Fernet decrypt = %q", got)
	}
}

func TestEncrypt_Randomised(t *testing.T) {
	for format, s := range testSealers() {
		a, _ := s.Encrypt("same", secret)
		b, _ := s.Encrypt("same", secret)
		if a == b {
			t.Errorf("%s: two encryptions produced identical ciphertext", format)
		}
	}
}

func TestEncrypt_ShortSecret(t *testing.T) {
	for format, s := range testSealers() {
		if _, err := s.Encrypt("Hello, World!", "0123456789"); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", format, err)
		}
	}
}

func TestDecrypt_WrongSecret(t *testing.T) {
	for format, s := range testSealers() {
		ct, _ := s.Encrypt("msg", secret)
		if _, err := s.Decrypt(ct, strings.Repeat("x", KeySize)); err == nil {
			t.Errorf("%s: expected error for wrong secret", format)
		}
	}
}

func TestDecrypt_OtherFormat(t *testing.T) {
	ct, _ := New(Age, 10).Encrypt("msg", secret)
	if _, err := New(Fernet, 10).Decrypt(ct, secret); err == nil {
		t.Error("fernet sealer should not open age ciphertext")
	}
}

func TestDecrypt_NotBase64(t *testing.T) {
	for format, s := range testSealers() {
		if _, err := s.Decrypt("%%%", secret); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", format, err)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New("", 0)
	if s.format != Fernet || s.workFactor != DefaultWorkFactor {
		t.Errorf("defaults = %q %d", s.format, s.workFactor)
	}
	if _, err := New("rot13", 0).Encrypt("m", secret); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("unknown format err = %v", err)
	}
}
