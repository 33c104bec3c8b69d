package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

const (
	sealedPrefix = "sealed:"
	sealedStep   = "<sealed>"
)

// ErrNotSealed is returned by Load when the archived history was not written
// by the encryption middleware.
var ErrNotSealed = errors.New("history is missing its sealed envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new histories.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a
	// history, so keys can be rotated without losing the archive.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.HistoryStore
	config EncryptionConfig
}

// NewEncryptionMiddleware seals each archived history with AES-GCM. The
// underlying store sees a single envelope entry carrying the ciphertext and
// the time of the last transition.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.HistoryStore) ports.HistoryStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, id domain.ChainID, entries []domain.HistoryEntry) error {
	plainText, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	// The chain id is authenticated so an envelope cannot be replayed under another id.
	ciphertext, err := encrypt(plainText, m.config.ActiveKey, []byte(id.String()))
	if err != nil {
		return fmt.Errorf("failed to encrypt history: %w", err)
	}

	envelope := domain.HistoryEntry{
		Message: sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext),
		Step:    sealedStep,
	}
	if n := len(entries); n > 0 {
		envelope.At = entries[n-1].At
	}
	return m.next.Save(ctx, id, []domain.HistoryEntry{envelope})
}

func (m *encryptionMiddleware) Load(ctx context.Context, id domain.ChainID) ([]domain.HistoryEntry, error) {
	stored, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(stored) != 1 || !strings.HasPrefix(stored[0].Message, sealedPrefix) {
		return nil, ErrNotSealed
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored[0].Message, sealedPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, []byte(id.String()), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt history: %w", err)
	}

	var entries []domain.HistoryEntry
	if err := json.Unmarshal(plainText, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted history: %w", err)
	}
	return entries, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id domain.ChainID) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]domain.ChainID, error) {
	return m.next.List(ctx)
}

// Helpers

func encrypt(plaintext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

func decryptWithRotation(ciphertext, aad, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey, aad); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key, aad); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
