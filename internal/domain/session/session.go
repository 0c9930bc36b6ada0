// Package session defines the durable per-session key-value storage used for
// state owned by a single storefront session: cart, wishlist, checkout draft,
// applied promo and the last catalog view.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
)

// Keys under which session documents are stored.
const (
	KeyCart     = "cart"
	KeyWishlist = "wishlist"
	KeyCheckout = "checkout"
	KeyPromo    = "promo"
	KeyCatalog  = "catalog"
)

// ErrMissingID is returned when an operation is attempted without a session id.
var ErrMissingID = errors.New("session id required")

// Store persists opaque JSON documents per session. Get returns nil, nil for
// a key that was never written.
type Store interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Put(ctx context.Context, sessionID, key string, value []byte) error
	Delete(ctx context.Context, sessionID, key string) error
}

// Decode parses raw into a T and returns def when raw is empty or malformed.
// It never fails: session documents are untrusted and a corrupt one must not
// break the caller.
func Decode[T any](raw []byte, def T) T {
	if len(raw) == 0 {
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

// Load reads key from store and decodes it with Decode. Storage errors are
// reported alongside the default value so callers may log and continue.
func Load[T any](ctx context.Context, store Store, sessionID, key string, def T) (T, error) {
	if sessionID == "" {
		return def, ErrMissingID
	}
	raw, err := store.Get(ctx, sessionID, key)
	if err != nil {
		return def, errors.Wrapf(err, "get %s", key)
	}
	return Decode(raw, def), nil
}

// Save serialises v and writes it under key.
func Save(ctx context.Context, store Store, sessionID, key string, v any) error {
	if sessionID == "" {
		return ErrMissingID
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}
	if err := store.Put(ctx, sessionID, key, raw); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store used in development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

// Get returns a copy of the stored document.
func (s *MemoryStore) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[sessionID][key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores a copy of value.
func (s *MemoryStore) Put(_ context.Context, sessionID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.data[sessionID]
	if !ok {
		m = make(map[string][]byte)
		s.data[sessionID] = m
	}
	v := make([]byte, len(value))
	copy(v, value)
	m[key] = v
	return nil
}

// Delete removes key; deleting a missing key is not an error.
func (s *MemoryStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data[sessionID], key)
	return nil
}
