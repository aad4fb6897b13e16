package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/persistence/middleware"
	"github.com/aretw0/flowgraph/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func encrypted(t *testing.T, next ports.RunStore, cfg middleware.EncryptionConfig) ports.RunStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func secretRecord() *domain.RunRecord {
	return &domain.RunRecord{
		RunID:      "r1",
		GraphID:    "g1",
		Status:     domain.StatusFailed,
		FinalState: domain.State{"secret": "my-secret-sauce"},
		StepsTaken: 2,
		Log:        []domain.StepLog{{Step: 1, NodeID: "a", Snapshot: domain.State{"secret": "my-secret-sauce"}}},
		Error:      "node \"a\" failed: secret leaked",
		ErrorKind:  "node_execution",
	}
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunStoreContract(t, encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, secretRecord()))

	stored, err := underlying.Load(ctx, "r1")
	require.NoError(t, err)
	assert.NotContains(t, stored.FinalState, "secret")
	assert.Contains(t, stored.FinalState, middleware.EnvelopeKey)
	assert.Empty(t, stored.Log)
	assert.Empty(t, stored.Error)
	assert.Equal(t, domain.StatusFailed, stored.Status, "status stays visible for monitoring")
	assert.Equal(t, "node_execution", stored.ErrorKind)

	loaded, err := secure.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.FinalState["secret"])
	assert.Equal(t, "my-secret-sauce", loaded.Log[0].Snapshot["secret"])
	assert.Equal(t, secretRecord().Error, loaded.Error)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	require.NoError(t, encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey}).Save(ctx, secretRecord()))

	rotated := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := rotated.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.FinalState["secret"])

	withoutFallback := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey})
	_, err = withoutFallback.Load(ctx, "r1")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainRecords(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, secretRecord()))

	_, err := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)}).Load(ctx, "r1")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestNewEncryptionMiddleware_BadKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	parsed, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)

	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestNewEncryptionMiddleware_BadFallbackKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.ErrorContains(t, err, "fallback key 0")
}
