package comm

import (
	"context"
	"fmt"
)

// Broadcast sends payload from root to every other rank. Every rank returns
// the root's payload.
func Broadcast(ctx context.Context, c Communicator, root int, tag Tag, payload []byte) ([]byte, error) {
	if c.Rank() != root {
		data, err := c.Recv(ctx, root, tag)
		if err != nil {
			return nil, fmt.Errorf("broadcast %s: %w", tag, err)
		}

		return data, nil
	}

	for to := range c.Size() {
		if to == root {
			continue
		}

		err := c.Send(ctx, to, tag, payload)
		if err != nil {
			return nil, fmt.Errorf("broadcast %s to rank %d: %w", tag, to, err)
		}
	}

	return payload, nil
}

// Gather collects one payload per rank at root, indexed by rank. Non-root
// ranks return nil.
func Gather(ctx context.Context, c Communicator, root int, tag Tag, payload []byte) ([][]byte, error) {
	if c.Rank() != root {
		err := c.Send(ctx, root, tag, payload)
		if err != nil {
			return nil, fmt.Errorf("gather %s: %w", tag, err)
		}

		return nil, nil
	}

	out := make([][]byte, c.Size())

	for from := range c.Size() {
		if from == root {
			out[from] = payload

			continue
		}

		data, err := c.Recv(ctx, from, tag)
		if err != nil {
			return nil, fmt.Errorf("gather %s from rank %d: %w", tag, from, err)
		}

		out[from] = data
	}

	return out, nil
}

// Barrier returns once every rank has entered it.
func Barrier(ctx context.Context, c Communicator, root int) error {
	_, err := Gather(ctx, c, root, TagBarrier, nil)
	if err != nil {
		return err
	}

	_, err = Broadcast(ctx, c, root, TagBarrier, nil)

	return err
}
