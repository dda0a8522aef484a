package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"github.com/danmuck/pyserve/internal/protocol/frame"
	"github.com/danmuck/pyserve/internal/protocol/message"
	"github.com/danmuck/pyserve/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

var (
	ErrClientClosed = errors.New("rpc: client closed")
	ErrDialFailed   = errors.New("rpc: dial failed")
)

// RemoteError is a failure reported by the server for one call.
type RemoteError struct {
	Call    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc: remote %s: %s", e.Call, e.Message)
}

// Client exchanges one request/response pair at a time over a single
// connection.
type Client struct {
	addr   string
	cfg    session.Config
	limits frame.Limits

	mu     sync.Mutex
	conn   net.Conn
	broken error
	closed bool
}

// Dial connects to addr, retrying with backoff up to cfg.MaxConnectAttempts.
func Dial(ctx context.Context, addr string, cfg session.Config) (*Client, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	cfg = cfg.WithDefaults()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxConnectAttempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			log.Debug().Str("addr", addr).Int("attempt", attempt).Msg("rpc.Dial connected")
			return &Client{addr: addr, cfg: cfg, limits: frame.DefaultLimits(), conn: conn}, nil
		}
		lastErr = err
		if attempt == cfg.MaxConnectAttempts {
			break
		}
		log.Debug().Err(err).Str("addr", addr).Int("attempt", attempt).Msg("rpc.Dial retry")
		if err := cfg.Backoff.Wait(ctx, attempt, rng); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDialFailed, addr, err)
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrDialFailed, addr, cfg.MaxConnectAttempts, lastErr)
}

// Addr returns the dialed address.
func (c *Client) Addr() string {
	return c.addr
}

// RemoteCall sends name(args...) and waits for the reply. A nil result with
// nil error means the call returned nothing. Transport failures poison the
// client; later calls return the same error.
func (c *Client) RemoteCall(ctx context.Context, name string, args ...any) (any, error) {
	payload, err := message.EncodeRequest(message.Request{Function: name, Args: args})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if c.broken != nil {
		return nil, c.broken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	_ = c.conn.SetWriteDeadline(deadline(ctx, c.cfg.WriteTimeout))
	if err := frame.WriteFrame(c.conn, frame.Frame{Payload: payload}, c.limits); err != nil {
		return nil, c.fail(ctx, "write", err)
	}
	_ = c.conn.SetReadDeadline(deadline(ctx, c.cfg.ReadTimeout))
	f, err := frame.ReadFrame(c.conn, c.limits)
	if err != nil {
		return nil, c.fail(ctx, "read", err)
	}

	resp, err := message.DecodeResponse(f.Payload)
	if err != nil {
		return nil, c.fail(ctx, "decode", err)
	}
	if resp.Failed {
		return nil, &RemoteError{Call: name, Message: resp.Error}
	}
	return resp.Return, nil
}

// Close closes the connection; it is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) fail(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else if errors.Is(err, os.ErrDeadlineExceeded) {
		// the socket deadline can fire before ctx's own timer marks it done
		if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
			err = context.DeadlineExceeded
		}
	}
	c.broken = fmt.Errorf("rpc: %s %s: %w", op, c.addr, err)
	_ = c.conn.Close()
	return c.broken
}

func deadline(ctx context.Context, fallback time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(fallback)
}
