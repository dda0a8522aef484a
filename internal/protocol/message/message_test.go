package message

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/pyserve/internal/protocol"
	"github.com/danmuck/pyserve/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
	"github.com/vmihailenco/msgpack/v5"
)

func TestRequestRoundTripNormalizesIntegers(t *testing.T) {
	testlog.Start(t)

	b, err := EncodeRequest(Request{Function: "add", Args: []any{45, int8(53)}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRequest(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Request{Function: "add", Args: []any{int64(45), int64(53)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRequestAcceptsBinaryKeysAndArgs(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	steps := []func() error{
		func() error { return enc.EncodeMapLen(2) },
		func() error { return enc.EncodeBytes([]byte(KeyFunction)) },
		func() error { return enc.EncodeBytes([]byte("goodbye")) },
		func() error { return enc.EncodeBytes([]byte(KeyArgs)) },
		func() error { return enc.EncodeArrayLen(1) },
		func() error { return enc.EncodeBytes([]byte("friend")) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("encode raw: %v", err)
		}
	}
	got, err := DecodeRequest(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Request{Function: "goodbye", Args: []any{"friend"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRequestRejectsMissingFunction(t *testing.T) {
	testlog.Start(t)

	b, err := msgpack.Marshal(map[string]any{KeyArgs: []any{1}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeRequest(b); !errors.Is(err, protocol.ErrMissingFunction) {
		t.Fatalf("expected ErrMissingFunction, got %v", err)
	}
	if _, err := EncodeRequest(Request{}); !errors.Is(err, protocol.ErrMissingFunction) {
		t.Fatalf("expected ErrMissingFunction on encode, got %v", err)
	}
}

func TestDecodeRequestRejectsNonMap(t *testing.T) {
	testlog.Start(t)

	b, err := msgpack.Marshal([]any{"add", 1, 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeRequest(b); !errors.Is(err, protocol.ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestResponseNilReturnIsNotAnError(t *testing.T) {
	testlog.Start(t)

	b, err := EncodeResponse(Response{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeResponse(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Failed || got.Return != nil {
		t.Fatalf("expected nil success response, got %+v", got)
	}
}

func TestResponseFailureCarriesMessage(t *testing.T) {
	testlog.Start(t)

	b, err := EncodeResponse(Failure("unknown call %q", "mul"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeResponse(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Failed || got.Error != `unknown call "mul"` {
		t.Fatalf("unexpected failure response: %+v", got)
	}
}

func TestDecodeResponseRequiresReturnOrError(t *testing.T) {
	testlog.Start(t)

	b, err := msgpack.Marshal(map[string]any{"other": 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := DecodeResponse(b); !errors.Is(err, protocol.ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}
