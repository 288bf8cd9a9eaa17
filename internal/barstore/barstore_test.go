package barstore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livechart/internal/types"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func bar(minute int, close float64) types.Bar {
	return types.Bar{Time: t0.Add(time.Duration(minute) * time.Minute), Close: decimal.NewFromFloat(close)}
}

func assertBars(t *testing.T, want, got []types.Bar) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Time.Equal(got[i].Time), "bar %d time: want %s got %s", i, want[i].Time, got[i].Time)
		assert.True(t, want[i].Close.Equal(got[i].Close), "bar %d close: want %s got %s", i, want[i].Close, got[i].Close)
	}
}

func TestStore_ReplaceOnEmpty(t *testing.T) {
	s := New()
	assert.False(t, s.Initialized())

	s.Replace([]types.Bar{bar(1, 5), bar(2, 6)})

	assert.True(t, s.Initialized())
	assertBars(t, []types.Bar{bar(1, 5), bar(2, 6)}, s.CurrentBars())
}

func TestStore_MergeDropsDuplicateTimestamp(t *testing.T) {
	s := New()
	s.Replace([]types.Bar{bar(1, 5), bar(2, 6)})

	added := s.Merge([]types.Bar{bar(2, 6), bar(3, 7)})

	assert.Equal(t, 1, added)
	assertBars(t, []types.Bar{bar(1, 5), bar(2, 6), bar(3, 7)}, s.CurrentBars())
}

func TestStore_MergeKeepsExistingBarWhenInProgressBarRepeats(t *testing.T) {
	s := New()
	s.Replace([]types.Bar{bar(1, 5), bar(2, 6)})

	// the source keeps reporting the open bar with a moving close
	s.Merge([]types.Bar{bar(1, 5), bar(2, 6.5)})

	assertBars(t, []types.Bar{bar(1, 5), bar(2, 6)}, s.CurrentBars())
}

func TestStore_MergeUninitializedBehavesAsReplace(t *testing.T) {
	s := New()

	added := s.Merge([]types.Bar{bar(4, 1), bar(5, 2)})

	assert.Equal(t, 2, added)
	assert.True(t, s.Initialized())
	assertBars(t, []types.Bar{bar(4, 1), bar(5, 2)}, s.CurrentBars())
}

func TestStore_ReplaceThenEmptyMergeIsNoop(t *testing.T) {
	s := New()
	s.Replace([]types.Bar{bar(1, 5), bar(2, 6)})
	before := s.CurrentBars()

	assert.Equal(t, 0, s.Merge(nil))
	assert.Equal(t, 0, s.Merge([]types.Bar{}))

	assertBars(t, before, s.CurrentBars())
}

func TestStore_MergeSequenceStaysStrictlyIncreasing(t *testing.T) {
	s := New()
	s.Replace([]types.Bar{bar(0, 1), bar(1, 1)})

	// overlapping two-bar windows, as produced by incremental polling
	for m := 1; m < 50; m++ {
		s.Merge([]types.Bar{bar(m, float64(m)), bar(m+1, float64(m+1))})
	}

	got := s.CurrentBars()
	require.Len(t, got, 51)
	seen := map[int64]bool{}
	for i := range got {
		ts := got[i].Time.UnixNano()
		assert.False(t, seen[ts], "duplicate timestamp at %d", i)
		seen[ts] = true
		if i > 0 {
			assert.True(t, got[i].Time.After(got[i-1].Time), "not increasing at %d", i)
		}
	}
}

func TestStore_MergeIsSupersetOfPrevious(t *testing.T) {
	s := New()
	s.Replace([]types.Bar{bar(0, 1), bar(1, 2)})
	prev := s.CurrentBars()

	s.Merge([]types.Bar{bar(1, 9), bar(2, 3)})

	got := s.CurrentBars()
	assertBars(t, prev, got[:len(prev)])
}

func TestStore_Reset(t *testing.T) {
	s := New()
	s.Replace([]types.Bar{bar(1, 5)})

	s.Reset()

	assert.False(t, s.Initialized())
	assert.Empty(t, s.CurrentBars())
	_, ok := s.Last()
	assert.False(t, ok)
}

func TestStore_CurrentBarsIsACopy(t *testing.T) {
	s := New()
	s.Replace([]types.Bar{bar(1, 5)})

	got := s.CurrentBars()
	got[0].Close = decimal.NewFromInt(100)

	last, ok := s.Last()
	require.True(t, ok)
	assert.True(t, last.Close.Equal(decimal.NewFromInt(5)))
}

func TestStore_ReplaceDoesNotAliasInput(t *testing.T) {
	s := New()
	in := []types.Bar{bar(1, 5)}
	s.Replace(in)

	in[0].Close = decimal.NewFromInt(42)

	assertBars(t, []types.Bar{bar(1, 5)}, s.CurrentBars())
}
