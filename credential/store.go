package credential

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// AccessKey is the persisted entry name of the access token.
	AccessKey = "accessToken"
	// RefreshKey is the persisted entry name of the refresh token.
	RefreshKey = "refreshToken"

	// DefaultAccessTTL is the storage envelope of the access token. It is
	// independent of the token's own exp claim.
	DefaultAccessTTL = 24 * time.Hour
	// DefaultRefreshTTL is the storage envelope of the refresh token.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	undefinedSentinel = "undefined"
)

var (
	// ErrBackendUnavailable wraps failures of the persistence medium.
	ErrBackendUnavailable = errors.New("credential backend unavailable")
	// ErrIncompletePair is returned by Save when either token is empty.
	ErrIncompletePair = errors.New("incomplete credential pair")
)

// Pair is the access/refresh credential pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Complete reports whether both halves carry a usable value.
func (p Pair) Complete() bool {
	return usable(p.AccessToken) && usable(p.RefreshToken)
}

func usable(v string) bool {
	return v != "" && v != undefinedSentinel
}

// Entry is one persisted value with its storage TTL. Secure marks entries that
// must only travel over a secure channel; backends record it where they can.
type Entry struct {
	Value  string
	TTL    time.Duration
	Secure bool
}

// Backend is the persistence medium behind a [Store].
//
// Get returns ok=false for missing or expired keys. SetMany must write all
// entries or none. Delete must succeed for keys that do not exist.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	SetMany(ctx context.Context, entries map[string]Entry) error
	Delete(ctx context.Context, keys ...string) error
}

// Store reads and writes the credential pair through a [Backend].
type Store struct {
	backend Backend
	secure  bool
}

// NewStore returns a Store over backend. secure is recorded on every entry.
func NewStore(backend Backend, secure bool) *Store {
	return &Store{backend: backend, secure: secure}
}

// Save persists both tokens with independent storage TTLs. Non-positive TTLs
// fall back to [DefaultAccessTTL] and [DefaultRefreshTTL].
func (s *Store) Save(ctx context.Context, pair Pair, accessTTL, refreshTTL time.Duration) error {
	if !pair.Complete() {
		return ErrIncompletePair
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}

	return s.backend.SetMany(ctx, map[string]Entry{
		AccessKey:  {Value: pair.AccessToken, TTL: accessTTL, Secure: s.secure},
		RefreshKey: {Value: pair.RefreshToken, TTL: refreshTTL, Secure: s.secure},
	})
}

// Load returns the stored pair. ok is false when either half is absent.
func (s *Store) Load(ctx context.Context) (Pair, bool, error) {
	access, ok, err := s.backend.Get(ctx, AccessKey)
	if err != nil {
		return Pair{}, false, err
	}
	if !ok || !usable(access) {
		return Pair{}, false, nil
	}

	refresh, ok, err := s.backend.Get(ctx, RefreshKey)
	if err != nil {
		return Pair{}, false, err
	}
	if !ok || !usable(refresh) {
		return Pair{}, false, nil
	}

	return Pair{AccessToken: access, RefreshToken: refresh}, true, nil
}

// Clear removes both halves.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, AccessKey, RefreshKey); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
