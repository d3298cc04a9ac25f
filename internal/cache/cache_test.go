package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedPort struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func TestSetAndGet(t *testing.T) {
	c := New(nil)
	ports := []cachedPort{
		{Name: "Hydra", Lat: 37.35, Lon: 23.47},
		{Name: "Aegina", Lat: 37.75, Lon: 23.43},
	}

	require.NoError(t, c.Set("extended_ports:user-1", ports, time.Minute, "itinerary"))

	var got []cachedPort
	found, err := c.Get("extended_ports:user-1", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ports, got)
}

func TestGetMissingKey(t *testing.T) {
	c := New(nil)

	var got []cachedPort
	found, err := c.Get("nope", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiredEntryNotReturned(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Set("k", "v", time.Nanosecond, "test"))
	time.Sleep(time.Millisecond)

	var got string
	found, err := c.Get("k", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, c.IsStale("k"))
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Set("k", "v", 0, "test"))
	time.Sleep(time.Millisecond)

	var got string
	found, err := c.Get("k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", got)
	assert.False(t, c.IsStale("k"))
}

func TestCachedValuesAreSnapshots(t *testing.T) {
	c := New(nil)
	ports := []cachedPort{{Name: "Hydra", Lat: 37.35, Lon: 23.47}}
	require.NoError(t, c.Set("ports", ports, time.Minute, "test"))

	// Mutating the original must not reach the cached copy.
	ports[0].Name = "Mutated"

	var got []cachedPort
	found, err := c.Get("ports", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Hydra", got[0].Name)
}

func TestDeleteAndClear(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Set("a", 1, time.Minute, "test"))
	require.NoError(t, c.Set("b", 2, time.Minute, "test"))

	c.Delete("a")
	assert.ElementsMatch(t, []string{"b"}, c.Keys())

	c.Clear()
	assert.Empty(t, c.Keys())
}

func TestCleanupStale(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Set("fresh", 1, time.Hour, "test"))
	require.NoError(t, c.Set("stale", 2, time.Nanosecond, "test"))
	time.Sleep(time.Millisecond)

	removed := c.CleanupStale()
	assert.Equal(t, 1, removed)
	assert.ElementsMatch(t, []string{"fresh"}, c.Keys())
}
