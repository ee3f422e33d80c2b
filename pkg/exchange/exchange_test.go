package exchange_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/neardup/pkg/comm"
	"github.com/Sumatoshi-tech/neardup/pkg/exchange"
	"github.com/Sumatoshi-tech/neardup/pkg/matrix"
	"github.com/Sumatoshi-tech/neardup/pkg/partition"
)

const testCols = 3

// reference builds the full matrix a single rank would hold.
func reference(n int) *matrix.Matrix {
	m := matrix.New(n, testCols)

	for i := range n {
		for j := range testCols {
			_ = m.Set(i, j, uint32(i*100+j))
		}
	}

	return m
}

func syncAll(t *testing.T, n, w int, strategy exchange.Strategy) ([]*matrix.Matrix, []exchange.Stats) {
	t.Helper()

	shards, err := partition.Docs(n, w)
	require.NoError(t, err)

	full := reference(n)

	g, err := comm.NewLocalGroup(w)
	require.NoError(t, err)

	results := make([]*matrix.Matrix, w)
	stats := make([]exchange.Stats, w)

	eg, ctx := errgroup.WithContext(context.Background())

	for rank := range w {
		eg.Go(func() error {
			local, sliceErr := full.Slice(shards[rank].Start, shards[rank].End)
			if sliceErr != nil {
				return sliceErr
			}

			m, s, syncErr := exchange.Sync(ctx, g.Comm(rank), comm.TagSignatures, local, shards, strategy)
			results[rank], stats[rank] = m, s

			return syncErr
		})
	}

	require.NoError(t, eg.Wait())

	return results, stats
}

func TestSync_BroadcastMatchesSingleRank(t *testing.T) {
	t.Parallel()

	want := reference(10)
	results, stats := syncAll(t, 10, 3, exchange.StrategyBroadcast)

	for rank, m := range results {
		require.NotNil(t, m, "rank %d", rank)
		assert.True(t, want.Equal(m), "rank %d", rank)
	}

	assert.Positive(t, stats[0].BytesSent)
	assert.Positive(t, stats[0].BytesReceived)
	assert.Positive(t, stats[1].BytesReceived)
}

func TestSync_GatherOnlyRoot(t *testing.T) {
	t.Parallel()

	want := reference(10)
	results, stats := syncAll(t, 10, 4, exchange.StrategyGather)

	require.NotNil(t, results[0])
	assert.True(t, want.Equal(results[0]))

	for _, m := range results[1:] {
		assert.Nil(t, m)
	}

	assert.Zero(t, stats[0].BytesSent)
	assert.Zero(t, stats[1].BytesReceived)
}

func TestSync_EmptyTrailingShards(t *testing.T) {
	t.Parallel()

	want := reference(5)
	results, _ := syncAll(t, 5, 4, exchange.StrategyBroadcast)

	for _, m := range results {
		assert.True(t, want.Equal(m))
	}
}

func TestSync_SingleRank(t *testing.T) {
	t.Parallel()

	want := reference(4)
	results, stats := syncAll(t, 4, 1, exchange.StrategyBroadcast)

	assert.True(t, want.Equal(results[0]))
	assert.Equal(t, exchange.Stats{}, stats[0])
}

func TestSync_ShardSizeMismatch(t *testing.T) {
	t.Parallel()

	g, err := comm.NewLocalGroup(1)
	require.NoError(t, err)

	shards := []partition.Range{{Start: 0, End: 3}}

	_, _, err = exchange.Sync(context.Background(), g.Comm(0), comm.TagBands, matrix.New(2, 1), shards, exchange.StrategyGather)
	require.ErrorIs(t, err, exchange.ErrShardSize)

	_, _, err = exchange.Sync(context.Background(), g.Comm(0), comm.TagBands, matrix.New(3, 1), nil, exchange.StrategyGather)
	require.ErrorIs(t, err, exchange.ErrShardSize)
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	s, err := exchange.ParseStrategy("Gather")
	require.NoError(t, err)
	assert.Equal(t, exchange.StrategyGather, s)
	assert.Equal(t, "gather", s.String())

	s, err = exchange.ParseStrategy("broadcast")
	require.NoError(t, err)
	assert.Equal(t, exchange.StrategyBroadcast, s)
	assert.Equal(t, "broadcast", s.String())

	_, err = exchange.ParseStrategy("scatter")
	require.ErrorIs(t, err, exchange.ErrUnknownStrategy)
}

func TestStats_Add(t *testing.T) {
	t.Parallel()

	s := exchange.Stats{BytesSent: 1, BytesReceived: 2}
	s.Add(exchange.Stats{BytesSent: 10, BytesReceived: 20})

	assert.Equal(t, exchange.Stats{BytesSent: 11, BytesReceived: 22}, s)
}
