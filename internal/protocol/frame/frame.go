package frame

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// HeaderLen is the size of the big-endian payload length prefix.
const HeaderLen = 4

var (
	ErrShortHeader     = errors.New("frame: short length header")
	ErrShortPayload    = errors.New("frame: short payload")
	ErrEmptyPayload    = errors.New("frame: empty payload")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
)

// Frame is one complete wire message: a uint32 length followed by the body.
type Frame struct {
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

// WithDefaults fills zero limits.
func (l Limits) WithDefaults() Limits {
	if l.MaxPayloadBytes == 0 {
		l.MaxPayloadBytes = DefaultLimits().MaxPayloadBytes
	}
	return l
}

// ReadFrame reads exactly one frame. A clean EOF before any header byte is
// returned as io.EOF so callers can tell a closed peer from a torn frame.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	limits = limits.WithDefaults()

	var header [HeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	n := DecodeHeader(header[:])
	if n == 0 {
		return Frame{}, ErrEmptyPayload
	}
	if n > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrShortPayload
		}
		return Frame{}, err
	}
	return Frame{Payload: payload}, nil
}

// WriteFrame writes header and payload in one Write call.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	limits = limits.WithDefaults()
	if len(f.Payload) == 0 {
		return ErrEmptyPayload
	}
	if uint64(len(f.Payload)) > uint64(limits.MaxPayloadBytes) || uint64(len(f.Payload)) > math.MaxUint32 {
		return ErrPayloadTooLarge
	}

	buf := make([]byte, HeaderLen+len(f.Payload))
	copy(buf[:HeaderLen], EncodeHeader(uint32(len(f.Payload))))
	copy(buf[HeaderLen:], f.Payload)
	_, err := w.Write(buf)
	return err
}

func EncodeHeader(payloadLen uint32) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf, payloadLen)
	return buf
}

func DecodeHeader(b []byte) uint32 {
	return binary.BigEndian.Uint32(b[:HeaderLen])
}
