package protocol

import "errors"

var (
	// ErrDecodingFailed is returned for empty lines and malformed payloads.
	ErrDecodingFailed = errors.New("protocol: decoding failed")

	// ErrUnsupportedMessage is returned for well-formed lines whose prefix
	// is not one of the known message kinds.
	ErrUnsupportedMessage = errors.New("protocol: unsupported message")
)
