package recordcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	c, err := New(8, time.Hour)
	require.NoError(t, err)

	c.Put("r1", Entry{BatchID: "b1", AgentID: "a1"})
	e, ok := c.Get("r1")
	require.True(t, ok)
	assert.Equal(t, Entry{BatchID: "b1", AgentID: "a1"}, e)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c, err := New(8, 10*time.Millisecond)
	require.NoError(t, err)

	c.Put("r1", Entry{BatchID: "b1", AgentID: "a1"})
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("r1")
	assert.False(t, ok)
}

func TestCacheLRUEviction(t *testing.T) {
	c, err := New(2, time.Hour)
	require.NoError(t, err)

	c.Put("r1", Entry{BatchID: "b1"})
	c.Put("r2", Entry{BatchID: "b2"})
	c.Put("r3", Entry{BatchID: "b3"})

	_, ok := c.Get("r1")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("r3")
	assert.True(t, ok)
}
