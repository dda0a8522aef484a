package protocol

import "errors"

var (
	ErrTruncated        = errors.New("protocol: truncated data")
	ErrMissingFunction  = errors.New("protocol: request missing function")
	ErrMalformedMessage = errors.New("protocol: malformed message")
)
