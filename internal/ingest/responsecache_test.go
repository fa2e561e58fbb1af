package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCachePutGet(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	body := json.RawMessage(`{"ok":true}`)

	_, hit := cache.Get("https://api.prizepicks.com/projections?league_id=7")
	require.False(t, hit, "expected miss before Put")

	cache.Put("https://api.prizepicks.com/projections?league_id=7", body)

	got, hit := cache.Get("https://api.prizepicks.com/projections?league_id=7")
	require.True(t, hit, "expected hit after Put")
	assert.Equal(t, body, got)
}

func TestResponseCacheExpiry(t *testing.T) {
	cache := NewResponseCache(time.Millisecond)
	cache.Put("https://api.prizepicks.com/projections", json.RawMessage(`{}`))

	time.Sleep(5 * time.Millisecond)

	_, hit := cache.Get("https://api.prizepicks.com/projections")
	assert.False(t, hit, "expected entry to have expired")
	assert.Equal(t, 0, cache.Len(), "expired entry should be evicted lazily on read")
}

func TestResponseCacheSweep(t *testing.T) {
	cache := NewResponseCache(time.Millisecond)
	cache.Put("https://api.prizepicks.com/a", json.RawMessage(`{}`))
	cache.Put("https://api.prizepicks.com/b", json.RawMessage(`{}`))

	time.Sleep(5 * time.Millisecond)

	evicted := cache.Sweep()
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 0, cache.Len())
}

func TestCanonicalURLSortsQueryParams(t *testing.T) {
	a := CanonicalURL("https://api.prizepicks.com/projections?b=2&a=1")
	b := CanonicalURL("https://api.prizepicks.com/projections?a=1&b=2")

	assert.Equal(t, a, b, "canonical URLs should match regardless of param order")
}
