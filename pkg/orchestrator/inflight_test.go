package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInFlightTableInsertGetRemove(t *testing.T) {
	tbl := newInFlightTable()
	assert.Equal(t, 0, tbl.len())

	tbl.insert("t1", "r1", "b1", time.Now())
	assert.Equal(t, 1, tbl.len())

	e, ok := tbl.get("t1")
	require.True(t, ok)
	assert.Equal(t, "r1", e.recordID)
	assert.Equal(t, "b1", e.batchID)

	removed, ok := tbl.remove("t1")
	require.True(t, ok)
	assert.Equal(t, "r1", removed.recordID)
	assert.Equal(t, 0, tbl.len())

	_, ok = tbl.remove("t1")
	assert.False(t, ok)
}

func TestInFlightTableExpired(t *testing.T) {
	tbl := newInFlightTable()
	now := time.Now()
	tbl.insert("old", "r1", "b1", now.Add(-time.Hour))
	tbl.insert("fresh", "r2", "b1", now)

	expired := tbl.expired(now, time.Minute)
	assert.Equal(t, []string{"old"}, expired)
}
