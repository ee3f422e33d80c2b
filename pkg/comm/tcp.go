package comm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/neardup/internal/wire"
	"github.com/Sumatoshi-tech/neardup/pkg/safeconv"
)

// Default TCP settings.
const (
	DefaultDialTimeout   = 30 * time.Second
	DefaultRetryInterval = 250 * time.Millisecond
)

const helloSize = 4

// TCPConfig configures a TCP communicator.
type TCPConfig struct {
	Rank int
	Size int
	// Addr is the coordinator (rank 0) address.
	Addr          string
	Codec         wire.Codec
	DialTimeout   time.Duration
	RetryInterval time.Duration
	Logger        *slog.Logger
}

func (cfg *TCPConfig) normalize() error {
	if cfg.Size <= 0 || cfg.Rank < 0 || cfg.Rank >= cfg.Size {
		return fmt.Errorf("%w: rank %d of %d", ErrBadRank, cfg.Rank, cfg.Size)
	}

	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return nil
}

type peer struct {
	conn net.Conn

	wmu sync.Mutex
	w   *wire.Writer

	rmu sync.Mutex
	r   *wire.Reader
}

func newPeer(conn net.Conn, codec wire.Codec) *peer {
	return &peer{conn: conn, w: wire.NewWriter(conn, codec), r: wire.NewReader(conn)}
}

func (p *peer) send(ctx context.Context, tag Tag, payload []byte) (int, error) {
	p.wmu.Lock()
	defer p.wmu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = p.conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()

	n, err := p.w.WriteFrame(uint16(tag), payload)
	if err != nil && ctx.Err() != nil {
		return n, ctx.Err()
	}

	return n, err
}

func (p *peer) recv(ctx context.Context) (wire.Frame, error) {
	p.rmu.Lock()
	defer p.rmu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = p.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	f, err := p.r.ReadFrame()
	if err != nil && ctx.Err() != nil {
		return f, ctx.Err()
	}

	return f, err
}

// TCPComm is a communicator over a TCP star centred on rank 0.
// Non-root ranks can only exchange messages with rank 0.
type TCPComm struct {
	rank   int
	size   int
	peers  []*peer
	logger *slog.Logger
	closed atomic.Bool

	sent     atomic.Int64
	received atomic.Int64
}

// Rank returns the local rank.
func (c *TCPComm) Rank() int { return c.rank }

// Size returns the number of ranks.
func (c *TCPComm) Size() int { return c.size }

// BytesSent returns the number of bytes written to the network, headers included.
func (c *TCPComm) BytesSent() int64 { return c.sent.Load() }

// BytesReceived returns the decoded payload bytes received.
func (c *TCPComm) BytesReceived() int64 { return c.received.Load() }

func (c *TCPComm) route(to int) (*peer, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	err := checkPeer(c, to)
	if err != nil {
		return nil, err
	}

	p := c.peers[to]
	if p == nil {
		return nil, fmt.Errorf("%w: rank %d to rank %d", ErrNoRoute, c.rank, to)
	}

	return p, nil
}

// Send writes one frame to rank to.
func (c *TCPComm) Send(ctx context.Context, to int, tag Tag, payload []byte) error {
	p, err := c.route(to)
	if err != nil {
		return err
	}

	n, err := p.send(ctx, tag, payload)
	c.sent.Add(int64(n))

	if err != nil {
		return fmt.Errorf("send %s to rank %d: %w", tag, to, err)
	}

	return nil
}

// Recv reads the next frame from rank from and checks its tag.
func (c *TCPComm) Recv(ctx context.Context, from int, tag Tag) ([]byte, error) {
	p, err := c.route(from)
	if err != nil {
		return nil, err
	}

	f, err := p.recv(ctx)
	if err != nil {
		return nil, fmt.Errorf("recv %s from rank %d: %w", tag, from, err)
	}

	c.received.Add(int64(len(f.Payload)))

	if Tag(f.Tag) != tag {
		return nil, unexpected(tag, Tag(f.Tag), from)
	}

	return f.Payload, nil
}

// Close closes every peer connection.
func (c *TCPComm) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error

	for _, p := range c.peers {
		if p != nil {
			errs = append(errs, p.conn.Close())
		}
	}

	return errors.Join(errs...)
}

// Listener accepts worker connections on the coordinator.
type Listener struct {
	cfg TCPConfig
	ln  net.Listener
}

// Listen opens the coordinator socket for rank 0.
func Listen(ctx context.Context, cfg TCPConfig) (*Listener, error) {
	err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	if cfg.Rank != 0 {
		return nil, fmt.Errorf("%w: only rank 0 listens, got %d", ErrBadRank, cfg.Rank)
	}

	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}

	return &Listener{cfg: cfg, ln: ln}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting.
func (l *Listener) Close() error { return l.ln.Close() }

// Accept waits until every worker rank has connected and completed the
// handshake, then closes the listener.
func (l *Listener) Accept(ctx context.Context) (*TCPComm, error) {
	defer l.ln.Close()

	ctx, cancel := context.WithTimeout(ctx, l.cfg.DialTimeout)
	defer cancel()

	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	c := &TCPComm{rank: 0, size: l.cfg.Size, peers: make([]*peer, l.cfg.Size), logger: l.cfg.Logger}

	for joined := 1; joined < l.cfg.Size; {
		conn, err := l.ln.Accept()
		if err != nil {
			_ = c.Close()

			if ctx.Err() != nil {
				return nil, fmt.Errorf("accept workers: %d of %d joined: %w", joined-1, l.cfg.Size-1, ctx.Err())
			}

			return nil, fmt.Errorf("accept workers: %w", err)
		}

		p := newPeer(conn, l.cfg.Codec)

		rank, err := l.handshake(ctx, p, c.peers)
		if err != nil {
			l.cfg.Logger.Warn("rejected worker", "remote", conn.RemoteAddr().String(), "error", err)
			_ = conn.Close()

			continue
		}

		c.peers[rank] = p
		joined++

		l.cfg.Logger.Debug("worker joined", "rank", rank, "remote", conn.RemoteAddr().String())
	}

	return c, nil
}

func (l *Listener) handshake(ctx context.Context, p *peer, peers []*peer) (int, error) {
	f, err := p.recv(ctx)
	if err != nil {
		return 0, err
	}

	if Tag(f.Tag) != TagHello || len(f.Payload) != helloSize {
		return 0, fmt.Errorf("%w: malformed hello", ErrHandshake)
	}

	rank := int(binary.LittleEndian.Uint32(f.Payload))
	if rank <= 0 || rank >= l.cfg.Size {
		return 0, fmt.Errorf("%w: rank %d of %d", ErrHandshake, rank, l.cfg.Size)
	}

	if peers[rank] != nil {
		return 0, fmt.Errorf("%w: rank %d already joined", ErrHandshake, rank)
	}

	_, err = p.send(ctx, TagHello, helloPayload(l.cfg.Size))
	if err != nil {
		return 0, err
	}

	return rank, nil
}

func helloPayload(v int) []byte {
	buf := make([]byte, helloSize)
	binary.LittleEndian.PutUint32(buf, safeconv.MustUint32(v))

	return buf
}

// Dial connects a worker rank to the coordinator, retrying until the dial
// timeout expires.
func Dial(ctx context.Context, cfg TCPConfig) (*TCPComm, error) {
	err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	if cfg.Rank == 0 {
		return nil, fmt.Errorf("%w: rank 0 listens instead of dialing", ErrBadRank)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(cfg.RetryInterval), 1)

	var (
		dialer  net.Dialer
		conn    net.Conn
		lastErr error
	)

	for attempt := 1; ; attempt++ {
		err = limiter.Wait(ctx)
		if err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("dial %s: %w: %w", cfg.Addr, err, lastErr)
			}

			return nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
		}

		conn, lastErr = dialer.DialContext(ctx, "tcp", cfg.Addr)
		if lastErr == nil {
			break
		}

		cfg.Logger.Debug("coordinator not ready", "addr", cfg.Addr, "attempt", attempt, "error", lastErr)
	}

	p := newPeer(conn, cfg.Codec)

	_, err = p.send(ctx, TagHello, helloPayload(cfg.Rank))
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	f, err := p.recv(ctx)
	if err != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	if Tag(f.Tag) != TagHello || len(f.Payload) != helloSize {
		_ = conn.Close()

		return nil, fmt.Errorf("%w: malformed reply", ErrHandshake)
	}

	size := int(binary.LittleEndian.Uint32(f.Payload))
	if size != cfg.Size {
		_ = conn.Close()

		return nil, fmt.Errorf("%w: coordinator expects %d ranks, worker configured for %d", ErrHandshake, size, cfg.Size)
	}

	// Deadlines set while handshaking under the dial timeout must not leak.
	_ = conn.SetDeadline(time.Time{})

	peers := make([]*peer, cfg.Size)
	peers[0] = p

	return &TCPComm{rank: cfg.Rank, size: cfg.Size, peers: peers, logger: cfg.Logger}, nil
}
