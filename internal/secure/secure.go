// Package secure implements SecureStorage: an at-rest token vault for
// OAuth credentials (Gmail, Calendar), encrypted with ChaCha20-Poly1305
// using a key derived from a passphrase via scrypt, both from the
// teacher's golang.org/x/crypto dependency.
package secure

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize  = 16
	nonceSize = chacha20poly1305.NonceSizeX
)

// envelope is the on-disk shape: one random salt for key derivation, and a
// ciphertext blob per token name.
type envelope struct {
	Salt   []byte            `json:"salt"`
	Tokens map[string][]byte `json:"tokens"` // name -> nonce||ciphertext
}

// Storage is an encrypted-at-rest key/value vault for OAuth tokens.
type Storage struct {
	path       string
	passphrase []byte
	log        *slog.Logger

	mu  sync.Mutex
	env envelope
}

// aeadCipher is the minimal surface Storage needs from an AEAD cipher.
type aeadCipher interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// Open loads (or initializes) the vault at path, deriving the encryption
// key from passphrase. If a legacy plaintext tokens file exists at
// legacyPlaintextPath, its contents are migrated in and the plaintext file
// is removed — the one-time first-run migration spec.md calls for.
func Open(path string, passphrase []byte, legacyPlaintextPath string, log *slog.Logger) (*Storage, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(passphrase) == 0 {
		return nil, errors.New("secure: empty passphrase")
	}

	s := &Storage{path: path, passphrase: passphrase, log: log.With("component", "secure")}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("secure: generate salt: %w", err)
		}
		s.env = envelope{Salt: salt, Tokens: map[string][]byte{}}
	case err != nil:
		return nil, fmt.Errorf("secure: read vault: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.env); err != nil {
			return nil, fmt.Errorf("secure: parse vault: %w", err)
		}
	}

	if legacyPlaintextPath != "" {
		if err := s.migrateLegacyPlaintext(legacyPlaintextPath); err != nil {
			s.log.Warn("legacy token migration failed", "error", err)
		}
	}

	return s, nil
}

func (s *Storage) migrateLegacyPlaintext(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var plain map[string]string
	if err := json.Unmarshal(raw, &plain); err != nil {
		return fmt.Errorf("parse legacy token file: %w", err)
	}
	for name, value := range plain {
		if err := s.Set(name, value); err != nil {
			return fmt.Errorf("migrate token %s: %w", name, err)
		}
	}
	if err := os.Remove(path); err != nil {
		s.log.Warn("failed to remove legacy plaintext token file after migration", "path", path, "error", err)
	} else {
		s.log.Info("migrated legacy plaintext tokens into encrypted vault", "count", len(plain))
	}
	return nil
}

func (s *Storage) cipher() (aeadCipher, error) {
	key, err := scrypt.Key(s.passphrase, s.env.Salt, 1<<15, 8, 1, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("secure: derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

// Set encrypts and stores value under name, persisting the vault to disk.
func (s *Storage) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	aead, err := s.cipher()
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("secure: generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(value), []byte(name))
	if s.env.Tokens == nil {
		s.env.Tokens = map[string][]byte{}
	}
	s.env.Tokens[name] = sealed
	return s.persist()
}

// Get decrypts and returns the value stored under name, or "", false if
// absent.
func (s *Storage) Get(name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, ok := s.env.Tokens[name]
	if !ok {
		return "", false, nil
	}
	aead, err := s.cipher()
	if err != nil {
		return "", false, err
	}
	if len(sealed) < aead.NonceSize() {
		return "", false, errors.New("secure: corrupt token record")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return "", false, fmt.Errorf("secure: decrypt %s: %w", name, err)
	}
	return string(plain), true, nil
}

// Delete removes a token, persisting the vault.
func (s *Storage) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.env.Tokens, name)
	return s.persist()
}

// Names lists every token name currently stored.
func (s *Storage) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.env.Tokens))
	for name := range s.env.Tokens {
		out = append(out, name)
	}
	return out
}

func (s *Storage) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("secure: create vault dir: %w", err)
	}
	raw, err := json.Marshal(s.env)
	if err != nil {
		return fmt.Errorf("secure: marshal vault: %w", err)
	}
	return os.WriteFile(s.path, raw, 0o600)
}
