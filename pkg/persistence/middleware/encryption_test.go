package middleware_test

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/persistence/middleware"
	"github.com/aretw0/weft/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func history() []domain.HistoryEntry {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	return []domain.HistoryEntry{
		{Message: "query(10.0.0.7:4001)", Step: "await-reply(10.0.0.7:4001#1)", At: at},
		{Message: "reply(10.0.0.7:4001)", Step: "", At: at.Add(time.Second)},
	}
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunHistoryStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	id := domain.ChainID{ID: 1, External: true}

	// 1. Save
	if err := secureStore.Save(ctx, id, history()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// 2. The underlying store only sees the envelope
	stored, err := underlyingStore.Load(ctx, id)
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("Expected a single envelope entry, got %d", len(stored))
	}
	if strings.Contains(stored[0].Message, "10.0.0.7") {
		t.Fatalf("Expected history to be hidden, found: %v", stored[0].Message)
	}
	if !stored[0].At.Equal(history()[1].At) {
		t.Errorf("Envelope should carry the last transition time, got %v", stored[0].At)
	}

	// 3. Load via middleware
	loaded, err := secureStore.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Message != "query(10.0.0.7:4001)" {
		t.Errorf("Unexpected decrypted history: %v", loaded)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	id := domain.ChainID{ID: 2}

	// 1. Save with OLD key
	if err := secureStoreOld.Save(ctx, id, history()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// 2. Load with NEW key (Active) + OLD key (Fallback)
	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}

	// 3. Save again, now sealed with the NEW key
	if err := secureStoreNew.Save(ctx, id, loaded[:1]); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}

	// 4. The OLD key alone can no longer open it
	if _, err := secureStoreOld.Load(ctx, id); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_BoundToChain(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)

	ctx := context.Background()
	from := domain.ChainID{ID: 3}
	to := domain.ChainID{ID: 3, External: true}
	if err := secureStore.Save(ctx, from, history()); err != nil {
		t.Fatal(err)
	}

	// Copy the envelope to another chain id
	stored, _ := underlyingStore.Load(ctx, from)
	if err := underlyingStore.Save(ctx, to, stored); err != nil {
		t.Fatal(err)
	}

	if _, err := secureStore.Load(ctx, to); err == nil {
		t.Error("Expected an envelope moved to another chain to be rejected")
	}
}

func TestEncryptionMiddleware_NotSealed(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)

	ctx := context.Background()
	id := domain.ChainID{ID: 4}
	if err := underlyingStore.Save(ctx, id, history()); err != nil {
		t.Fatal(err)
	}

	if _, err := secureStore.Load(ctx, id); !errors.Is(err, middleware.ErrNotSealed) {
		t.Errorf("Expected ErrNotSealed, got %v", err)
	}
	if _, err := secureStore.Load(ctx, domain.ChainID{ID: 5}); !errors.Is(err, domain.ErrHistoryNotFound) {
		t.Errorf("Expected ErrHistoryNotFound, got %v", err)
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for invalid key size")
		}
	}()
	middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
}
