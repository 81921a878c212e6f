package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a header.
	ErrTruncated = errors.New("format: truncated buffer")

	// ErrBadSize indicates a byte count that could not be parsed.
	ErrBadSize = errors.New("format: bad size")
)
