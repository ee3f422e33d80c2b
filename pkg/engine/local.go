package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/neardup/pkg/comm"
)

// RunLocal runs a job with the given number of in-process ranks and returns
// the result of rank 0.
func RunLocal(ctx context.Context, opts Options, workers int) (*Result, error) {
	group, err := comm.NewLocalGroup(workers)
	if err != nil {
		return nil, err
	}

	defer group.Shutdown()

	// The first failing rank cancels gctx, which unblocks its peers.
	g, gctx := errgroup.WithContext(ctx)

	results := make([]*Result, workers)

	for rank := range workers {
		g.Go(func() error {
			res, runErr := Run(gctx, group.Comm(rank), opts)
			if runErr != nil {
				return runErr
			}

			results[rank] = res

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, err
	}

	return results[Root], nil
}
