// Package seal encrypts short messages with a shared 32-byte secret and
// returns transport-safe text.
//
// The default format is a Fernet token keyed directly by the secret bytes
// (signing half first, encryption half second), standard base64 encoded on
// top. The age format encrypts to a passphrase (scrypt) recipient derived
// from the secret instead; its output is not a Fernet token.
package seal

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/fernet/fernet-go"

	"github.com/starford/keyhash/internal/apperr"
)

// KeySize is the required secret length in bytes.
const KeySize = 32

// DefaultWorkFactor is the scrypt log2(N) used by the age format when none
// is configured.
const DefaultWorkFactor = 18

// Format selects the ciphertext construction.
type Format string

const (
	Fernet Format = "fernet"
	Age    Format = "age"
)

// Formats lists the supported formats, default first.
func Formats() []Format { return []Format{Fernet, Age} }

// Sealer encrypts and decrypts in one format.
type Sealer struct {
	format     Format
	workFactor int
}

// New returns a Sealer. An empty format means Fernet; a non-positive
// workFactor means DefaultWorkFactor.
func New(format Format, workFactor int) *Sealer {
	if format == "" {
		format = Fernet
	}
	if workFactor <= 0 {
		workFactor = DefaultWorkFactor
	}
	return &Sealer{format: format, workFactor: workFactor}
}

// Encrypt encrypts message under secret and returns base64 ciphertext.
// Every call produces a different ciphertext.
func (s *Sealer) Encrypt(message, secret string) (string, error) {
	if err := checkSecret(secret); err != nil {
		return "", err
	}
	var (
		raw []byte
		err error
	)
	switch s.format {
	case Fernet:
		raw, err = s.fernetEncrypt(message, secret)
	case Age:
		raw, err = s.ageEncrypt(message, secret)
	default:
		err = fmt.Errorf("seal: unknown format %q: %w", s.format, apperr.ErrInvalidInput)
	}
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt reverses Encrypt.
func (s *Sealer) Decrypt(ciphertext, secret string) (string, error) {
	if err := checkSecret(secret); err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("seal: decoding ciphertext: %w: %w", apperr.ErrInvalidInput, err)
	}
	switch s.format {
	case Fernet:
		return s.fernetDecrypt(raw, secret)
	case Age:
		return s.ageDecrypt(raw, secret)
	default:
		return "", fmt.Errorf("seal: unknown format %q: %w", s.format, apperr.ErrInvalidInput)
	}
}

func fernetKey(secret string) (*fernet.Key, error) {
	k, err := fernet.DecodeKey(base64.URLEncoding.EncodeToString([]byte(secret)))
	if err != nil {
		return nil, fmt.Errorf("seal: fernet key: %w", err)
	}
	return k, nil
}

func (s *Sealer) fernetEncrypt(message, secret string) ([]byte, error) {
	k, err := fernetKey(secret)
	if err != nil {
		return nil, err
	}
	tok, err := fernet.EncryptAndSign([]byte(message), k)
	if err != nil {
		return nil, fmt.Errorf("seal: fernet encrypt: %w", err)
	}
	return tok, nil
}

func (s *Sealer) fernetDecrypt(tok []byte, secret string) (string, error) {
	k, err := fernetKey(secret)
	if err != nil {
		return "", err
	}
	// A zero ttl skips the expiry check.
	msg := fernet.VerifyAndDecrypt(tok, 0, []*fernet.Key{k})
	if msg == nil {
		return "", fmt.Errorf("seal: fernet token is invalid or signed with another key")
	}
	return string(msg), nil
}

func (s *Sealer) ageEncrypt(message, secret string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(secret)
	if err != nil {
		return nil, fmt.Errorf("seal: recipient: %w", err)
	}
	recipient.SetWorkFactor(s.workFactor)

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, fmt.Errorf("seal: creating encryptor: %w", err)
	}
	if _, err := io.WriteString(w, message); err != nil {
		return nil, fmt.Errorf("seal: writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("seal: finalizing: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Sealer) ageDecrypt(raw []byte, secret string) (string, error) {
	identity, err := age.NewScryptIdentity(secret)
	if err != nil {
		return "", fmt.Errorf("seal: identity: %w", err)
	}
	identity.SetMaxWorkFactor(max(s.workFactor, DefaultWorkFactor))

	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return "", fmt.Errorf("seal: decrypting: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("seal: reading plaintext: %w", err)
	}
	return string(out), nil
}

func checkSecret(secret string) error {
	if len(secret) != KeySize {
		return fmt.Errorf("seal: secret is %d bytes, want %d: %w", len(secret), KeySize, apperr.ErrInvalidInput)
	}
	return nil
}
