package comm

import (
	"context"
	"fmt"
	"sync/atomic"
)

type message struct {
	tag     Tag
	payload []byte
}

// LocalGroup connects size in-process ranks with unbuffered channels.
type LocalGroup struct {
	size  int
	links [][]chan message // links[from][to]
	done  chan struct{}
	shut  atomic.Bool
}

// NewLocalGroup creates a group of size ranks.
func NewLocalGroup(size int) (*LocalGroup, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrBadRank, size)
	}

	links := make([][]chan message, size)
	for from := range links {
		links[from] = make([]chan message, size)

		for to := range links[from] {
			if to != from {
				links[from][to] = make(chan message)
			}
		}
	}

	return &LocalGroup{size: size, links: links, done: make(chan struct{})}, nil
}

// Size returns the number of ranks.
func (g *LocalGroup) Size() int { return g.size }

// Comm returns the communicator of rank.
func (g *LocalGroup) Comm(rank int) Communicator {
	return &localComm{group: g, rank: rank}
}

// Shutdown unblocks every pending operation of every rank.
func (g *LocalGroup) Shutdown() {
	if g.shut.CompareAndSwap(false, true) {
		close(g.done)
	}
}

type localComm struct {
	group  *LocalGroup
	rank   int
	closed atomic.Bool
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.group.size }

func (c *localComm) Send(ctx context.Context, to int, tag Tag, payload []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	err := checkPeer(c, to)
	if err != nil {
		return err
	}

	msg := message{tag: tag, payload: append([]byte(nil), payload...)}

	select {
	case c.group.links[c.rank][to] <- msg:
		return nil
	case <-c.group.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *localComm) Recv(ctx context.Context, from int, tag Tag) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	err := checkPeer(c, from)
	if err != nil {
		return nil, err
	}

	select {
	case msg := <-c.group.links[from][c.rank]:
		if msg.tag != tag {
			return nil, unexpected(tag, msg.tag, from)
		}

		return msg.payload, nil
	case <-c.group.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *localComm) Close() error {
	c.closed.Store(true)

	return nil
}
