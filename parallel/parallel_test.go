package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOdd = errors.New("odd")

func double(_ context.Context, i int) (int, error) {
	if i%2 == 1 {
		return 0, errOdd
	}
	return i * 2, nil
}

func TestMapPreservesOrder(t *testing.T) {
	items := []int{0, 2, 4, 6, 8, 10}
	results, err := Map(context.Background(), items, Options{Limit: 2}, double)
	require.NoError(t, err)

	for i, r := range results {
		assert.Equal(t, items[i]*2, r.Value)
	}
}

func TestMapFailFast(t *testing.T) {
	results, err := Map(context.Background(), []int{0, 1, 2}, Options{}, double)
	assert.ErrorIs(t, err, errOdd)
	assert.Nil(t, results)
}

func TestMapCollect(t *testing.T) {
	results, err := Map(context.Background(), []int{0, 1, 2, 3}, Options{Policy: Collect}, double)

	var partial *PartialFailure
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 4, partial.Total)
	require.Len(t, partial.Failures, 2)
	assert.Equal(t, 1, partial.Failures[0].Index)
	assert.Equal(t, 3, partial.Failures[1].Index)
	assert.ErrorIs(t, err, errOdd)

	require.Len(t, results, 4)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 4, results[2].Value)
}

func TestMapRespectsLimit(t *testing.T) {
	for _, policy := range []Policy{FailFast, Collect} {
		t.Run(policy.String(), func(t *testing.T) {
			var inFlight, peak atomic.Int32
			items := make([]int, 20)

			_, err := Map(context.Background(), items, Options{Limit: 3, Policy: policy}, func(ctx context.Context, _ int) (struct{}, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return struct{}{}, nil
			})
			require.NoError(t, err)
			assert.LessOrEqual(t, peak.Load(), int32(3))
		})
	}
}

func TestMapEmpty(t *testing.T) {
	results, err := Map(context.Background(), nil, Options{}, double)
	require.NoError(t, err)
	assert.Empty(t, results)
}
