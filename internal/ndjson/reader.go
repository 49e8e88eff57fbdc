// Package ndjson reads newline-delimited JSON streams line by line.
//
// Agent CLIs emit one JSON object per line on stdout. Individual lines can
// be large (a tool result embedding a whole file easily exceeds bufio's
// default 64KB token limit), so the reader grows its buffer up to a fixed
// ceiling instead of failing mid-stream.
package ndjson

import (
	"bufio"
	"bytes"
	"io"
)

// MaxLineSize is the largest single line the reader will accept.
const MaxLineSize = 10 * 1024 * 1024

// Reader reads JSON lines from an underlying stream.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r in a line reader.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	return &Reader{scanner: scanner}
}

// ReadLine returns the next non-empty line without the trailing newline.
// Returns io.EOF when the stream is exhausted.
func (r *Reader) ReadLine() ([]byte, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// Copy out of the scanner's buffer; the next Scan invalidates it.
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
