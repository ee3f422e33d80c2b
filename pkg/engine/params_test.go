package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/neardup/pkg/config"
	"github.com/Sumatoshi-tech/neardup/pkg/exchange"
	"github.com/Sumatoshi-tech/neardup/pkg/partition"
)

func TestParams_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Corpus.Directory = "/docs"
	cfg.Cluster.Strategy = "gather"

	p := paramsFromConfig(cfg)
	p.RunID = "run"

	plan, err := partition.NewPlan(10, 3)
	require.NoError(t, err)

	p.Plan = plan

	data, err := encodeParams(p)
	require.NoError(t, err)

	got, err := decodeParams(data, 3)
	require.NoError(t, err)

	assert.Equal(t, p, got)
	assert.Equal(t, exchange.StrategyGather, got.ExchangeStrategy())
	assert.Equal(t, cfg.MinHash.SignatureSize/cfg.MinHash.BandRows, got.NumBands())
}

func TestDecodeParams_Rejects(t *testing.T) {
	t.Parallel()

	plan, err := partition.NewPlan(4, 2)
	require.NoError(t, err)

	p := paramsFromConfig(config.Default())
	p.Plan = plan

	data, err := encodeParams(p)
	require.NoError(t, err)

	_, err = decodeParams(data, 3)
	require.ErrorIs(t, err, ErrBadAnnounce)

	_, err = decodeParams([]byte(`{"plan":null}`), 1)
	require.ErrorIs(t, err, ErrBadAnnounce)

	_, err = decodeParams([]byte("{"), 1)
	require.Error(t, err)
}
