package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"
)

// ScopeAdmin grants access to the admin console.
const ScopeAdmin = "admin"

// APIKeyInfo holds the identity and permission data for a stored API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashAPIKey returns the hex HMAC-SHA256 of key under pepper, the form keys
// are stored in.
func HashAPIKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// KeyAuthenticator resolves API keys to principals.
type KeyAuthenticator struct {
	keys   Repository
	pepper []byte
}

// NewKeyAuthenticator creates a KeyAuthenticator.
func NewKeyAuthenticator(keys Repository, pepper []byte) *KeyAuthenticator {
	return &KeyAuthenticator{keys: keys, pepper: pepper}
}

// Authenticate looks up key and returns its principal. Keys with the admin
// scope are admins.
func (a *KeyAuthenticator) Authenticate(ctx context.Context, key string) (*Principal, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}
	hexHash := HashAPIKey(a.pepper, key)

	info, err := a.keys.FindByHash(ctx, hexHash)
	if err != nil {
		return nil, ErrUnauthorized
	}

	// The stored row must match the computed hash byte for byte.
	computed, _ := hex.DecodeString(hexHash)
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(computed, stored) != 1 {
		return nil, ErrUnauthorized
	}

	return &Principal{
		UserID: "apikey:" + info.ID,
		Name:   info.Name,
		Role:   "service",
		Admin:  slices.Contains(info.Scopes, ScopeAdmin),
		Via:    ViaAPIKey,
	}, nil
}
