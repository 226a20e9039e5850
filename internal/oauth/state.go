package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrUnknownKey = errors.New("unknown or already used key")
	ErrKeyExpired = errors.New("key expired")
)

// Ephemeral holds short-lived single-use values keyed by random strings:
// the OAuth state between consent and callback, and the one-time code the
// frontend trades for tokens.
type Ephemeral[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]ephemeralItem[T]
}

type ephemeralItem[T any] struct {
	value     T
	expiresAt time.Time
}

func NewEphemeral[T any](ttl time.Duration) *Ephemeral[T] {
	return &Ephemeral[T]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]ephemeralItem[T]),
	}
}

// Issue stores v under a fresh URL-safe key.
func (e *Ephemeral[T]) Issue(v T) (string, error) {
	key, err := randomKey()
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.items[key] = ephemeralItem[T]{value: v, expiresAt: e.now().Add(e.ttl)}
	e.mu.Unlock()
	return key, nil
}

// Take removes the key whether or not it has expired.
func (e *Ephemeral[T]) Take(key string) (T, error) {
	e.mu.Lock()
	item, ok := e.items[key]
	delete(e.items, key)
	e.mu.Unlock()

	var zero T
	if !ok {
		return zero, ErrUnknownKey
	}
	if e.now().After(item.expiresAt) {
		return zero, ErrKeyExpired
	}
	return item.value, nil
}

// Sweep drops entries expired at now and returns how many were removed.
func (e *Ephemeral[T]) Sweep(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for key, item := range e.items {
		if now.After(item.expiresAt) {
			delete(e.items, key)
			removed++
		}
	}
	return removed
}

func (e *Ephemeral[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
