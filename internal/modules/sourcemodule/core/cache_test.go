package core

import (
	"testing"

	"github.com/mantonx/streamgate/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestStoreSourceFirstWriteWins(t *testing.T) {
	c := NewCache()
	hls := types.VideoSource{Kind: types.SourceKindHLS, URL: "https://o/a/hls/master.m3u8"}
	mp4 := types.VideoSource{Kind: types.SourceKindMP4, URL: "https://o/a/original/source.mp4"}

	assert.Equal(t, hls, c.StoreSource("a", hls))
	assert.Equal(t, hls, c.StoreSource("a", mp4))

	got, ok := c.Source("a")
	assert.True(t, ok)
	assert.Equal(t, hls, got)

	_, ok = c.Source("b")
	assert.False(t, ok)
}

func TestReadinessStateMachine(t *testing.T) {
	c := NewCache()

	state, _ := c.readinessOf("base")
	assert.Equal(t, stateUncached, state)

	entry, leader := c.acquireProbe("base")
	assert.True(t, leader)
	state, _ = c.readinessOf("base")
	assert.Equal(t, stateProbing, state)
	assert.Equal(t, 1, c.Stats().ProbesActive)

	same, leader := c.acquireProbe("base")
	assert.False(t, leader)
	assert.Same(t, entry, same)

	c.settleProbe(entry, true)
	select {
	case <-entry.done:
	default:
		t.Fatal("waiters were not released")
	}

	state, ready := c.readinessOf("base")
	assert.Equal(t, stateSettled, state)
	assert.True(t, ready)
	assert.Equal(t, "settled", state.String())

	_, leader = c.acquireProbe("base")
	assert.False(t, leader, "settled entries are never probed again")
	assert.Equal(t, types.CacheStats{ReadyHLS: 1}, c.Stats())
}

func TestReleaseProbeLeavesBaseUndecided(t *testing.T) {
	c := NewCache()

	entry, leader := c.acquireProbe("base")
	assert.True(t, leader)
	c.releaseProbe(entry)

	select {
	case <-entry.done:
	default:
		t.Fatal("waiters were not released")
	}
	state, _ := c.readinessOf("base")
	assert.Equal(t, stateUncached, state)
	assert.Equal(t, types.CacheStats{}, c.Stats())

	_, leader = c.acquireProbe("base")
	assert.True(t, leader, "a released base is probed again")
}
