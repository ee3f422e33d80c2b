// Package exchange assembles per-rank matrix shards into the full matrix.
//
// Every rank holds the rows of its own document shard. Under StrategyGather
// only rank 0 ends up with the full matrix; under StrategyBroadcast rank 0
// sends the assembled matrix back to every rank.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/neardup/pkg/comm"
	"github.com/Sumatoshi-tech/neardup/pkg/matrix"
	"github.com/Sumatoshi-tech/neardup/pkg/partition"
)

// Root is the rank that assembles matrices.
const Root = 0

// Strategy selects how the assembled matrix is distributed.
type Strategy int

// Strategies.
const (
	StrategyBroadcast Strategy = iota
	StrategyGather
)

var (
	// ErrUnknownStrategy is returned for an unsupported strategy name.
	ErrUnknownStrategy = errors.New("exchange: unknown strategy")

	// ErrShardSize is returned when a shard does not match its planned size.
	ErrShardSize = errors.New("exchange: shard size mismatch")
)

// ParseStrategy maps a configuration name to a strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "broadcast", "":
		return StrategyBroadcast, nil
	case "gather":
		return StrategyGather, nil
	default:
		return StrategyBroadcast, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

func (s Strategy) String() string {
	if s == StrategyGather {
		return "gather"
	}

	return "broadcast"
}

// Stats counts the payload bytes a rank moved during Sync.
type Stats struct {
	BytesSent     int64
	BytesReceived int64
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.BytesSent += other.BytesSent
	s.BytesReceived += other.BytesReceived
}

// Sync assembles the full matrix from every rank's local shard.
//
// shards is the document partition of the run; local must have exactly
// shards[rank].Len() rows. The result is nil on ranks that do not receive
// the full matrix.
func Sync(
	ctx context.Context, c comm.Communicator, tag comm.Tag,
	local *matrix.Matrix, shards []partition.Range, strategy Strategy,
) (*matrix.Matrix, Stats, error) {
	var stats Stats

	if len(shards) != c.Size() {
		return nil, stats, fmt.Errorf("%w: %d shards for %d ranks", ErrShardSize, len(shards), c.Size())
	}

	want := shards[c.Rank()].Len()
	if local.Rows() != want {
		return nil, stats, fmt.Errorf("%w: rank %d has %d rows, planned %d", ErrShardSize, c.Rank(), local.Rows(), want)
	}

	payload, err := local.MarshalBinary()
	if err != nil {
		return nil, stats, err
	}

	parts, err := comm.Gather(ctx, c, Root, tag, payload)
	if err != nil {
		return nil, stats, err
	}

	var full *matrix.Matrix

	if c.Rank() == Root {
		full, err = assemble(parts, shards, local.Cols())
		if err != nil {
			return nil, stats, err
		}

		for r, part := range parts {
			if r != Root {
				stats.BytesReceived += int64(len(part))
			}
		}
	} else {
		stats.BytesSent += int64(len(payload))
	}

	if strategy == StrategyGather {
		return full, stats, nil
	}

	return broadcast(ctx, c, tag, full, shards, local.Cols(), stats)
}

func broadcast(
	ctx context.Context, c comm.Communicator, tag comm.Tag,
	full *matrix.Matrix, shards []partition.Range, cols int, stats Stats,
) (*matrix.Matrix, Stats, error) {
	var payload []byte

	if c.Rank() == Root {
		data, err := full.MarshalBinary()
		if err != nil {
			return nil, stats, err
		}

		payload = data
		stats.BytesSent += int64(len(payload) * (c.Size() - 1))
	}

	data, err := comm.Broadcast(ctx, c, Root, tag, payload)
	if err != nil {
		return nil, stats, err
	}

	if c.Rank() == Root {
		return full, stats, nil
	}

	stats.BytesReceived += int64(len(data))

	got, err := matrix.Decode(data)
	if err != nil {
		return nil, stats, fmt.Errorf("decode %s broadcast: %w", tag, err)
	}

	total := shards[len(shards)-1].End
	if got.Rows() != total || got.Cols() != cols {
		return nil, stats, fmt.Errorf("%w: broadcast %dx%d, want %dx%d", ErrShardSize, got.Rows(), got.Cols(), total, cols)
	}

	return got, stats, nil
}

func assemble(parts [][]byte, shards []partition.Range, cols int) (*matrix.Matrix, error) {
	full := matrix.New(shards[len(shards)-1].End, cols)

	for r, part := range parts {
		m, err := matrix.Decode(part)
		if err != nil {
			return nil, fmt.Errorf("decode shard of rank %d: %w", r, err)
		}

		if m.Rows() != shards[r].Len() || m.Cols() != cols {
			return nil, fmt.Errorf("%w: rank %d sent %dx%d, planned %dx%d",
				ErrShardSize, r, m.Rows(), m.Cols(), shards[r].Len(), cols)
		}

		err = full.CopyRows(shards[r].Start, m)
		if err != nil {
			return nil, err
		}
	}

	return full, nil
}
