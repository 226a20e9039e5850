package oauth

import (
	"sync"
	"testing"
	"time"

	"github.com/dimitrije/listshub-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewGoogleProvider(config.OAuthConfig{ClientID: "id"}))

	p, ok := r.Get("google")
	require.True(t, ok)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, []string{"google"}, r.Names())

	_, ok = r.Get("github")
	assert.False(t, ok)
	assert.Empty(t, NewRegistry().Names())
}

func TestEphemeral_IssueAndTake(t *testing.T) {
	store := NewEphemeral[string](time.Minute)

	k1, err := store.Issue("google")
	require.NoError(t, err)
	k2, err := store.Issue("google")
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	assert.Len(t, k1, 43)
	assert.Equal(t, 2, store.Len())

	v, err := store.Take(k1)
	require.NoError(t, err)
	assert.Equal(t, "google", v)

	_, err = store.Take(k1)
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, 1, store.Len())
}

func TestEphemeral_Expiry(t *testing.T) {
	start := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	now := start
	store := NewEphemeral[int](30 * time.Second)
	store.now = func() time.Time { return now }

	early, err := store.Issue(1)
	require.NoError(t, err)
	now = start.Add(20 * time.Second)
	late, err := store.Issue(2)
	require.NoError(t, err)

	now = start.Add(40 * time.Second)
	_, err = store.Take(early)
	assert.ErrorIs(t, err, ErrKeyExpired)
	assert.Equal(t, 1, store.Len(), "expired keys are removed on Take")

	assert.Equal(t, 0, store.Sweep(now))
	assert.Equal(t, 1, store.Sweep(start.Add(time.Minute)))
	_, err = store.Take(late)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestEphemeral_ConcurrentTakeIsSingleUse(t *testing.T) {
	store := NewEphemeral[string](time.Minute)
	key, err := store.Issue("once")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(key); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
