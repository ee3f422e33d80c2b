// Package comm provides point-to-point messaging between the ranks of a run
// and the collectives built on top of it.
//
// Two transports are available: an in-process channel group for running every
// rank as a goroutine, and a TCP star where rank 0 accepts one connection per
// worker. Messages carry a Tag; receiving a message with a different tag than
// expected is a protocol error.
package comm

import (
	"context"
	"errors"
	"fmt"
)

// Tag identifies the kind of a message.
type Tag uint16

// Message tags used by a run.
const (
	TagHello Tag = iota + 1
	TagAnnounce
	TagSignatures
	TagBands
	TagBarrier
	TagStats
)

func (t Tag) String() string {
	switch t {
	case TagHello:
		return "hello"
	case TagAnnounce:
		return "announce"
	case TagSignatures:
		return "signatures"
	case TagBands:
		return "bands"
	case TagBarrier:
		return "barrier"
	case TagStats:
		return "stats"
	default:
		return fmt.Sprintf("tag(%d)", uint16(t))
	}
}

var (
	// ErrUnexpectedTag is returned when a received message has the wrong tag.
	ErrUnexpectedTag = errors.New("comm: unexpected tag")

	// ErrBadRank is returned for a rank outside [0, size).
	ErrBadRank = errors.New("comm: rank out of range")

	// ErrNoRoute is returned when the transport cannot reach the peer directly.
	ErrNoRoute = errors.New("comm: no route to peer")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("comm: closed")

	// ErrHandshake is returned when a peer fails the connection handshake.
	ErrHandshake = errors.New("comm: handshake failed")
)

// Communicator sends and receives tagged byte payloads between ranks.
// Messages between a given pair of ranks are delivered in order.
type Communicator interface {
	Rank() int
	Size() int
	Send(ctx context.Context, to int, tag Tag, payload []byte) error
	Recv(ctx context.Context, from int, tag Tag) ([]byte, error)
	Close() error
}

func checkPeer(c Communicator, peer int) error {
	if peer < 0 || peer >= c.Size() || peer == c.Rank() {
		return fmt.Errorf("%w: %d (self %d, size %d)", ErrBadRank, peer, c.Rank(), c.Size())
	}

	return nil
}

func unexpected(want, got Tag, from int) error {
	return fmt.Errorf("%w: want %s from rank %d, got %s", ErrUnexpectedTag, want, from, got)
}
