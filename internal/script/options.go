package script

import (
	"context"

	"github.com/danmuck/pyserve/internal/protocol/session"
	"github.com/danmuck/pyserve/internal/rpc"
)

// Conn is a call connection opened by a script through rpc.dial.
type Conn interface {
	RemoteCallable
	Close() error
}

// DialFunc opens a Conn for a script.
type DialFunc func(ctx context.Context, addr string) (Conn, error)

// Options configures services the host exposes to scripts.
type Options struct {
	// DialAddr is used when a script calls rpc.dial() without an address.
	DialAddr string
	Dial     DialFunc
}

func DefaultOptions() Options {
	return Options{
		DialAddr: rpc.DefaultAddr,
		Dial:     DialRPC(session.DefaultConfig()),
	}
}

// WithDefaults fills unset fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.DialAddr == "" {
		o.DialAddr = def.DialAddr
	}
	if o.Dial == nil {
		o.Dial = def.Dial
	}
	return o
}

// DialRPC returns a DialFunc backed by rpc.Dial.
func DialRPC(cfg session.Config) DialFunc {
	return func(ctx context.Context, addr string) (Conn, error) {
		client, err := rpc.Dial(ctx, addr, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
