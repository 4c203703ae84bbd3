package watchset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaintrace/indexer/common"
)

func addr(b byte) common.Address { return common.BytesToAddress([]byte{b}) }

func TestAddIsIdempotent(t *testing.T) {
	w := New()
	a := addr(1)

	assert.True(t, w.Add(1, a))
	assert.False(t, w.Add(1, a), "re-adding an already-watched address must be a no-op")
	assert.True(t, w.Contains(1, a))
}

func TestAddPublishesOnce(t *testing.T) {
	w := New()
	ch := make(chan AccountAdded, 4)
	sub := w.Subscribe(ch)
	defer sub.Unsubscribe()

	a := addr(2)
	w.Add(1, a)
	w.Add(1, a)

	select {
	case ev := <-ch:
		assert.Equal(t, AccountAdded{ChainID: 1, Address: a}, ev)
	case <-time.After(time.Second):
		t.Fatal("expected an AccountAdded event")
	}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestContainsUnknownChain(t *testing.T) {
	w := New()
	assert.False(t, w.Contains(99, addr(1)))
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	w := New()
	a, b := addr(1), addr(2)
	w.Add(1, a)
	w.Add(1, b)

	snap := w.Snapshot(1)
	require.Len(t, snap, 2)
	assert.ElementsMatch(t, []common.Address{a, b}, snap)
}
