package regional

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIndexed_AllIndicesOnce(t *testing.T) {
	seen := make([]int32, 100)
	err := runIndexed(context.Background(), 7, len(seen), func(_ context.Context, i int) error {
		atomic.AddInt32(&seen[i], 1)
		return nil
	})
	require.NoError(t, err)
	for i, n := range seen {
		assert.Equal(t, int32(1), n, "index %d", i)
	}
}

func TestRunIndexed_PropagatesError(t *testing.T) {
	boom := eris.New("boom")
	err := runIndexed(context.Background(), 2, 10, func(_ context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.True(t, eris.Is(err, boom))
}

func TestTracker_FinalUpdateAlwaysDelivered(t *testing.T) {
	var last atomic.Int64
	tr := newTracker("fit", 500, func(_ string, done, total int) {
		last.Store(int64(done))
	})
	for i := 0; i < 500; i++ {
		tr.step()
	}
	assert.Equal(t, int64(500), last.Load())
}

func TestTracker_NilCallback(t *testing.T) {
	tr := newTracker("fit", 5, nil)
	// Must be a no-op, not a panic.
	tr.step()
}
