package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/pyserve/internal/calls"
	"github.com/danmuck/pyserve/internal/protocol/frame"
	"github.com/danmuck/pyserve/internal/protocol/message"
	"github.com/danmuck/pyserve/internal/protocol/session"
	"github.com/danmuck/pyserve/internal/testutil/testlog"
	"github.com/vmihailenco/msgpack/v5"
)

func startServer(t *testing.T, registry *calls.Registry) *Server {
	t.Helper()
	srv := NewServer(ServerConfig{ID: "rpc.test", Addr: "127.0.0.1:0"}, registry)
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return srv
}

func dialTest(t *testing.T, srv *Server) *Client {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	client, err := Dial(context.Background(), srv.Addr().String(), cfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRemoteCallAdd(t *testing.T) {
	testlog.Start(t)

	srv := startServer(t, calls.Builtins())
	client := dialTest(t, srv)

	got, err := client.RemoteCall(context.Background(), "add", 45, 53)
	if err != nil {
		t.Fatalf("remote call: %v", err)
	}
	if got != int64(98) {
		t.Fatalf("expected int64(98), got %#v", got)
	}
}

func TestRemoteCallEchoReturnsNil(t *testing.T) {
	testlog.Start(t)

	srv := startServer(t, calls.Builtins())
	client := dialTest(t, srv)

	got, err := client.RemoteCall(context.Background(), "echo", "testing text")
	if err != nil {
		t.Fatalf("remote call: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestRemoteCallUnknownKeepsConnectionUsable(t *testing.T) {
	testlog.Start(t)

	srv := startServer(t, calls.Builtins())
	client := dialTest(t, srv)

	_, err := client.RemoteCall(context.Background(), "mul", 2, 3)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remoteErr.Call != "mul" || !strings.Contains(remoteErr.Message, "unknown call") {
		t.Fatalf("unexpected remote error: %+v", remoteErr)
	}

	got, err := client.RemoteCall(context.Background(), "hello")
	if err != nil {
		t.Fatalf("follow-up call: %v", err)
	}
	if got != "hello friend" {
		t.Fatalf("unexpected hello reply: %#v", got)
	}
}

func TestServerRoutesRepliesToOriginatingConnection(t *testing.T) {
	testlog.Start(t)

	srv := startServer(t, calls.Builtins())
	names := []string{"alpha", "beta", "gamma", "delta"}
	clients := make([]*Client, len(names))
	for i := range names {
		clients[i] = dialTest(t, srv)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(names)*10)
	for i, name := range names {
		wg.Add(1)
		go func(c *Client, name string) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				got, err := c.RemoteCall(context.Background(), "goodbye", name)
				if err != nil {
					errs <- err
					return
				}
				if got != "goodbye "+name {
					errs <- fmt.Errorf("crossed reply: %v", got)
					return
				}
			}
		}(clients[i], name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent call: %v", err)
	}
}

func TestServerAnswersMalformedRequest(t *testing.T) {
	testlog.Start(t)

	srv := startServer(t, calls.Builtins())
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload, err := msgpack.Marshal([]any{"add", 1, 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := frame.WriteFrame(conn, frame.Frame{Payload: payload}, frame.DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp, err := message.DecodeResponse(f.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Failed || !strings.Contains(resp.Error, "bad request") {
		t.Fatalf("expected bad request failure, got %+v", resp)
	}
}

func TestServerDropsClosedConnections(t *testing.T) {
	testlog.Start(t)

	srv := startServer(t, calls.Builtins())
	client := dialTest(t, srv)
	if _, err := client.RemoteCall(context.Background(), "hello"); err != nil {
		t.Fatalf("remote call: %v", err)
	}
	if got := srv.ConnCount(); got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.ConnCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection not dropped, count=%d", srv.ConnCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRemoteCallHonoursContextDeadline(t *testing.T) {
	testlog.Start(t)

	registry := calls.NewRegistry().MustRegister(calls.Spec{
		Name:  "slow",
		Arity: 0,
		Fn: func(ctx context.Context, _ []any) (any, error) {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-ctx.Done():
			}
			return "late", nil
		},
	})
	srv := startServer(t, registry)
	client := dialTest(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := client.RemoteCall(ctx, "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if _, err := client.RemoteCall(context.Background(), "slow"); err == nil {
		t.Fatalf("expected poisoned client after transport failure")
	}
}

func TestRemoteCallDeadlineIsReportedAsContextError(t *testing.T) {
	testlog.Start(t)

	registry := calls.NewRegistry().MustRegister(calls.Spec{
		Name:  "slow",
		Arity: 0,
		Fn: func(ctx context.Context, _ []any) (any, error) {
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
			}
			return nil, nil
		},
	})
	srv := startServer(t, registry)

	for i := 0; i < 20; i++ {
		client := dialTest(t, srv)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := client.RemoteCall(ctx, "slow")
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("call %d: expected deadline exceeded, got %v", i, err)
		}
	}
}

func TestClientClosedRejectsCalls(t *testing.T) {
	testlog.Start(t)

	srv := startServer(t, calls.Builtins())
	client := dialTest(t, srv)
	_ = client.Close()
	if err := client.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := client.RemoteCall(context.Background(), "hello"); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestDialRetriesThenFails(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := session.Config{
		ConnectTimeout:     200 * time.Millisecond,
		MaxConnectAttempts: 3,
		Backoff:            session.BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 2},
	}
	start := time.Now()
	_, err = Dial(context.Background(), addr, cfg)
	if !errors.Is(err, ErrDialFailed) {
		t.Fatalf("expected ErrDialFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("expected attempt count in error, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("dial retries took too long: %v", time.Since(start))
	}
}
