package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type document struct {
	Hash string
	Body string
}

func newTestCache(t *testing.T, name string) *RistrettoCache {
	t.Helper()

	c, err := NewRistrettoCache(&RistrettoConfig{
		Name:        name,
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return c.(*RistrettoCache)
}

func TestNewRistrettoCache_Defaults(t *testing.T) {
	c, err := NewRistrettoCache(&RistrettoConfig{NumCounters: 100, MaxCost: 10, BufferItems: 64})
	require.NoError(t, err)
	defer c.Close()

	rc := c.(*RistrettoCache)
	assert.Equal(t, "default", rc.name)
	assert.NotNil(t, rc.logger)
	assert.NotNil(t, rc.Metrics())
}

func TestNewRistrettoCache_InvalidConfig(t *testing.T) {
	_, err := NewRistrettoCache(&RistrettoConfig{Name: "broken"})
	assert.Error(t, err)
}

func TestRistrettoCache_Documents(t *testing.T) {
	c := newTestCache(t, "documents")

	doc := document{Hash: "a9993e364706816aba3e25717850c26c9cd0d89d", Body: `{"type":"MARKET_MAKING"}`}
	require.True(t, c.Set(doc.Hash, doc, time.Hour))
	c.Wait()

	tests := []struct {
		name  string
		key   string
		found bool
	}{
		{name: "stored_hash", key: doc.Hash, found: true},
		{name: "unknown_hash", key: "da39a3ee5e6b4b0d3255bfef95601890afd80709", found: false},
		{name: "empty_key", key: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := GetAs[document](c, tt.key)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, doc, got)
			}
		})
	}
}

func TestGetAs_TypeMismatch(t *testing.T) {
	c := newTestCache(t, "typed")

	c.Set("count", 42, time.Hour)
	c.Wait()

	n, found := GetAs[int](c, "count")
	assert.True(t, found)
	assert.Equal(t, 42, n)

	s, found := GetAs[string](c, "count")
	assert.False(t, found)
	assert.Empty(t, s)
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestCache(t, "delete")

	c.Set("doc", "body", time.Hour)
	c.Wait()

	_, found := c.Get("doc")
	require.True(t, found)

	c.Delete("doc")

	_, found = c.Get("doc")
	assert.False(t, found)
}

func TestRistrettoCache_TTL(t *testing.T) {
	c := newTestCache(t, "ttl")

	c.Set("short", "lived", 50*time.Millisecond)
	c.Wait()

	_, found := c.Get("short")
	require.True(t, found)

	assert.Eventually(t, func() bool {
		_, found := c.Get("short")
		return !found
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRistrettoCache_Clear(t *testing.T) {
	c := newTestCache(t, "clear")

	c.Set("manifest", "m", time.Hour)
	c.Set("results", "r", time.Hour)
	c.Wait()

	c.Clear()

	_, found := c.Get("manifest")
	assert.False(t, found)
	_, found = c.Get("results")
	assert.False(t, found)
}
