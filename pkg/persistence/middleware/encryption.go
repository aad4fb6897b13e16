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

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// EnvelopeKey is the final state key holding the encrypted record.
const EnvelopeKey = "__encrypted__"

// ErrNotEncrypted is returned by Load when the stored record has no envelope.
var ErrNotEncrypted = errors.New("run record is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// ParseKey decodes a base64 AES-256 key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("encryption key must be base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (AES-256), got %d", len(key))
	}
	return key, nil
}

type encryptionMiddleware struct {
	next ports.RunStore
	// aeads[0] seals; every entry is tried in order when opening.
	aeads []cipher.AEAD
}

// NewEncryptionMiddleware creates a middleware that encrypts run records
// using AES-GCM. The stored record keeps only the fields needed to list and
// monitor runs; state, log and error text live in the envelope.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	keys := append([][]byte{config.ActiveKey}, config.FallbackKeys...)
	aeads := make([]cipher.AEAD, 0, len(keys))
	for i, key := range keys {
		if len(key) != 32 {
			if i == 0 {
				return nil, errors.New("active key must be 32 bytes (AES-256)")
			}
			return nil, fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i-1)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		aeads = append(aeads, aead)
	}

	return func(next ports.RunStore) ports.RunStore {
		return &encryptionMiddleware{next: next, aeads: aeads}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, rec *domain.RunRecord) error {
	plainText, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	ciphertext, err := m.seal(plainText)
	if err != nil {
		return fmt.Errorf("failed to encrypt run record: %w", err)
	}

	envelope := &domain.RunRecord{
		RunID:      rec.RunID,
		GraphID:    rec.GraphID,
		Status:     rec.Status,
		StepsTaken: rec.StepsTaken,
		ErrorKind:  rec.ErrorKind,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		FinalState: domain.State{
			EnvelopeKey: base64.StdEncoding.EncodeToString(ciphertext),
		},
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	envelope, err := m.next.Load(ctx, runID)
	if err != nil {
		return nil, err
	}

	// Fail secure: a configured store never serves plain records.
	encoded, ok := envelope.FinalState[EnvelopeKey].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEncrypted, runID)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := m.open(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt run record %s: %w", runID, err)
	}

	var rec domain.RunRecord
	if err := json.Unmarshal(plainText, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted run record: %w", err)
	}
	return &rec, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// seal returns nonce || ciphertext under the active key.
func (m *encryptionMiddleware) seal(plaintext []byte) ([]byte, error) {
	aead := m.aeads[0]
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open tries the active key, then the fallback keys.
func (m *encryptionMiddleware) open(data []byte) ([]byte, error) {
	for _, aead := range m.aeads {
		n := aead.NonceSize()
		if len(data) < n {
			return nil, errors.New("ciphertext too short")
		}
		if plain, err := aead.Open(nil, data[:n], data[n:], nil); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}
