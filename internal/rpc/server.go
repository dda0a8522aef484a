package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/danmuck/pyserve/internal/calls"
	"github.com/danmuck/pyserve/internal/observability"
	"github.com/danmuck/pyserve/internal/protocol/frame"
	"github.com/danmuck/pyserve/internal/protocol/message"
	"github.com/rs/zerolog/log"
)

// DefaultAddr is the call server's conventional listen address.
const DefaultAddr = "127.0.0.1:31775"

var ErrServerClosed = errors.New("rpc: server closed")

// ServerConfig configures listen address and per-connection limits.
type ServerConfig struct {
	ID           string
	Addr         string
	Limits       frame.Limits
	WriteTimeout time.Duration
	QueueSize    int
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ID:           "pyserve",
		Addr:         DefaultAddr,
		Limits:       frame.DefaultLimits(),
		WriteTimeout: 15 * time.Second,
		QueueSize:    64,
	}
}

type inbound struct {
	conn *serverConn
	req  message.Request
	err  error
	at   time.Time
}

type serverConn struct {
	id   uint64
	conn net.Conn
	once sync.Once
}

func (c *serverConn) close() {
	c.once.Do(func() {
		_ = c.conn.Close()
	})
}

// Server accepts call connections and dispatches requests to a registry.
type Server struct {
	cfg      ServerConfig
	registry *calls.Registry

	mu      sync.Mutex
	ln      net.Listener
	conns   map[uint64]*serverConn
	nextID  uint64
	serving bool
	closed  bool

	queue chan inbound
	wg    sync.WaitGroup
}

func NewServer(cfg ServerConfig, registry *calls.Registry) *Server {
	def := DefaultServerConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.ID == "" {
		cfg.ID = def.ID
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	cfg.Limits = cfg.Limits.WithDefaults()
	if registry == nil {
		registry = calls.NewRegistry()
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		conns:    make(map[uint64]*serverConn),
		queue:    make(chan inbound, cfg.QueueSize),
	}
}

// Registry returns the calls served.
func (s *Server) Registry() *calls.Registry {
	return s.registry
}

// Listen binds the listener without accepting; Serve calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ConnCount returns the number of open client connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Serve accepts connections and dispatches requests until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.serving {
		s.mu.Unlock()
		return fmt.Errorf("rpc: server already serving")
	}
	s.serving = true
	ln := s.ln
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().Str("id", s.cfg.ID).Str("addr", ln.Addr().String()).Msg("rpc.Server serving")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(ctx)
	}()

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- s.acceptLoop(ctx, ln)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-acceptErr:
		cancel()
	}
	s.shutdown()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.nextID++
		sc := &serverConn{id: s.nextID, conn: conn}
		s.conns[sc.id] = sc
		s.wg.Add(1)
		s.mu.Unlock()

		observability.ConnectionOpened()
		log.Info().Str("remote", conn.RemoteAddr().String()).Uint64("conn", sc.id).Msg("rpc.Server client connected")

		go func() {
			defer s.wg.Done()
			s.readLoop(ctx, sc)
		}()
	}
}

// readLoop queues every request from one connection until it closes.
func (s *Server) readLoop(ctx context.Context, sc *serverConn) {
	defer s.drop(sc)
	for {
		f, err := frame.ReadFrame(sc.conn, s.cfg.Limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				log.Warn().Err(err).Uint64("conn", sc.id).Msg("rpc.Server read failed")
			}
			return
		}
		req, err := message.DecodeRequest(f.Payload)
		in := inbound{conn: sc, req: req, err: err, at: time.Now()}
		select {
		case s.queue <- in:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-s.queue:
			s.handle(ctx, in)
		}
	}
}

func (s *Server) handle(ctx context.Context, in inbound) {
	var resp message.Response
	name := in.req.Function
	if in.err != nil {
		name = "invalid"
		resp = message.Failure("bad request: %v", in.err)
	} else {
		ret, err := s.registry.Invoke(ctx, in.req.Function, in.req.Args)
		if err != nil {
			resp = message.Failure("%v", err)
		} else {
			resp = message.Response{Return: ret}
		}
	}
	observability.RecordCall(name, time.Since(in.at), !resp.Failed)
	if resp.Failed {
		log.Warn().Str("call", name).Uint64("conn", in.conn.id).Str("error", resp.Error).Msg("rpc.Server call failed")
	} else {
		log.Debug().Str("call", name).Uint64("conn", in.conn.id).Msg("rpc.Server call handled")
	}

	payload, err := message.EncodeResponse(resp)
	if err != nil {
		payload, _ = message.EncodeResponse(message.Failure("encode response: %v", err))
	}
	_ = in.conn.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := frame.WriteFrame(in.conn.conn, frame.Frame{Payload: payload}, s.cfg.Limits); err != nil {
		log.Warn().Err(err).Uint64("conn", in.conn.id).Msg("rpc.Server write failed")
		in.conn.close()
	}
}

func (s *Server) drop(sc *serverConn) {
	sc.close()
	s.mu.Lock()
	_, ok := s.conns[sc.id]
	delete(s.conns, sc.id)
	s.mu.Unlock()
	if ok {
		observability.ConnectionClosed()
		log.Info().Uint64("conn", sc.id).Msg("rpc.Server client disconnected")
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	s.closed = true
	if s.ln != nil {
		_ = s.ln.Close()
	}
	conns := make([]*serverConn, 0, len(s.conns))
	for _, sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	for _, sc := range conns {
		sc.close()
	}
	s.wg.Wait()
	log.Info().Str("id", s.cfg.ID).Msg("rpc.Server stopped")
}
