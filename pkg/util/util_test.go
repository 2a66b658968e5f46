package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDateTpl(t *testing.T) {
	ts := time.Date(2023, 11, 10, 7, 5, 9, 0, time.UTC)
	assert.Equal(t, "memory_20231110_070509.json", FormatDateTpl(ts, "memory_YYYYMMDD_hhmmss.json"))
	assert.Equal(t, "10/11/23", FormatDateTpl(ts, "DD/MM/YY"))
	assert.Equal(t, "", FormatDateTpl(time.Time{}, "YYYY"))
}

func TestParallel(t *testing.T) {
	out := make([]int, 10)
	inputs := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	err := Parallel(context.Background(), inputs, 3, func(_ context.Context, i int, v int) error {
		out[i] = v * v
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 100, out[9])

	var calls atomic.Int32
	boom := errors.New("boom")
	err = Parallel(context.Background(), inputs, 1, func(_ context.Context, _ int, v int) error {
		calls.Add(1)
		if v == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Less(t, int(calls.Load()), len(inputs))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("same", "same"))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.InDelta(t, 0.75, Similarity("abcd", "bcde"), 1e-9)
	assert.Greater(t, Similarity("i came to this strange world", "i came to this strange wrld"), 0.9)
	assert.Less(t, Similarity("hello there", "completely different"), 0.7)
}
