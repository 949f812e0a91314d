package sidecar

import (
	"bufio"
	"bytes"
	"io"
)

// maxStreamLine bounds a single NDJSON stream line. Progress messages are
// tiny; this only guards against a misbehaving sidecar.
const maxStreamLine = 1 << 20

// OperationStream iterates the NDJSON messages of a dataset push or pull.
type OperationStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	err     error
}

func newOperationStream(body io.ReadCloser) *OperationStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	return &OperationStream{body: body, scanner: scanner}
}

// Next returns the next message, or nil when the stream is exhausted.
// After Next returns nil, Err reports any decode or transport failure.
func (s *OperationStream) Next() *StreamMessage {
	if s.err != nil {
		return nil
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		msg, err := decodeStreamMessage(line)
		if err != nil {
			s.err = err
			return nil
		}
		return msg
	}

	s.err = s.scanner.Err()
	return nil
}

// Err returns the first error encountered while reading the stream.
func (s *OperationStream) Err() error {
	return s.err
}

// Close releases the underlying response body.
func (s *OperationStream) Close() error {
	return s.body.Close()
}
