// Package message encodes call requests and responses as msgpack maps.
package message

import (
	"bytes"
	"fmt"
	"math"

	"github.com/danmuck/pyserve/internal/protocol"
	"github.com/vmihailenco/msgpack/v5"
)

// Map keys shared with the script-side client.
const (
	KeyFunction = "function"
	KeyArgs     = "args"
	KeyReturn   = "return"
	KeyError    = "error"
)

// Request names a registered call and its positional arguments.
type Request struct {
	Function string
	Args     []any
}

// Response carries either a return value (possibly nil) or an error message.
type Response struct {
	Return any
	Error  string
	Failed bool
}

// Failure builds an error response.
func Failure(format string, args ...any) Response {
	return Response{Error: fmt.Sprintf(format, args...), Failed: true}
}

func EncodeRequest(req Request) ([]byte, error) {
	if req.Function == "" {
		return nil, protocol.ErrMissingFunction
	}
	args := req.Args
	if args == nil {
		args = []any{}
	}
	return encode(map[string]any{
		KeyFunction: req.Function,
		KeyArgs:     args,
	})
}

// DecodeRequest accepts str or bin keys and function names; bin arguments
// are converted to strings.
func DecodeRequest(b []byte) (Request, error) {
	m, err := decodeMap(b)
	if err != nil {
		return Request{}, err
	}
	fn, ok := textOf(m[KeyFunction])
	if !ok || fn == "" {
		return Request{}, protocol.ErrMissingFunction
	}
	req := Request{Function: fn, Args: []any{}}
	switch args := m[KeyArgs].(type) {
	case nil:
	case []any:
		req.Args = make([]any, len(args))
		for i, arg := range args {
			req.Args[i] = normalize(arg)
		}
	default:
		return Request{}, fmt.Errorf("%w: args must be an array, got %T", protocol.ErrMalformedMessage, args)
	}
	return req, nil
}

func EncodeResponse(resp Response) ([]byte, error) {
	if resp.Failed {
		return encode(map[string]any{KeyError: resp.Error})
	}
	return encode(map[string]any{KeyReturn: resp.Return})
}

func DecodeResponse(b []byte) (Response, error) {
	m, err := decodeMap(b)
	if err != nil {
		return Response{}, err
	}
	if raw, ok := m[KeyError]; ok && raw != nil {
		msg, _ := textOf(raw)
		if msg == "" {
			msg = fmt.Sprint(raw)
		}
		return Response{Error: msg, Failed: true}, nil
	}
	ret, ok := m[KeyReturn]
	if !ok {
		return Response{}, fmt.Errorf("%w: response has neither %q nor %q", protocol.ErrMalformedMessage, KeyReturn, KeyError)
	}
	return Response{Return: normalize(ret)}, nil
}

func encode(v map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrMalformedMessage, err)
	}
	return buf.Bytes(), nil
}

func decodeMap(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, protocol.ErrTruncated
	}
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	raw, err := dec.DecodeInterface()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrMalformedMessage, err)
	}
	switch m := raw.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			key, ok := textOf(k)
			if !ok {
				return nil, fmt.Errorf("%w: non-text map key %T", protocol.ErrMalformedMessage, k)
			}
			out[key] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected map, got %T", protocol.ErrMalformedMessage, raw)
	}
}

// normalize maps bin to string and in-range uint64 to int64 so callers see
// one integer type regardless of how the peer packed it.
func normalize(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
	}
	return v
}

func textOf(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}
