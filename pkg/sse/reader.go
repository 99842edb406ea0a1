package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Reader pulls newline-terminated lines off an open byte stream, typically
// an *http.Response body.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌─────────────────────────────────┐
// │  Reader.Next()   │──▶│ optional tee destination Writer │
// └──────────────────┘   └─────────────────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  raw line string │
// └──────────────────┘
//
// Reader does not retry and does not buffer beyond the current line. Lines
// longer than MaxFrameSize are drained and reported as ErrFrameTooLong so
// the caller can skip them and keep reading.
type Reader struct {
	br   *bufio.Reader
	dest io.Writer

	teeErr error
}

// MaxFrameSize bounds a single line, terminator excluded.
const MaxFrameSize = 1024 * 1024

// ErrFrameTooLong is returned by Next for a line over MaxFrameSize. The
// stream is positioned at the following line.
var ErrFrameTooLong = errors.New("frame exceeds maximum size")

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader over src that also writes every raw line,
// newline included, to dest. A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	return &Reader{
		br:   bufio.NewReaderSize(src, 64*1024),
		dest: dest,
	}
}

// Next returns the next line with its line terminator ("\n" or "\r\n")
// stripped. A final line without a terminator is still returned.
//
// Next returns io.EOF once the source is exhausted. Any other read error is
// returned as-is, so a broken connection is never mistaken for a clean end
// of stream. An oversized line yields ErrFrameTooLong and reading may
// continue.
//
// A failing tee destination does not fail Next: the tee is switched off and
// the write error is kept for TeeErr.
func (r *Reader) Next() (string, error) {
	var (
		line []byte
		size int
		read bool
	)

	for {
		chunk, more, err := r.br.ReadLine()
		if err != nil {
			// A line that filled the buffer exactly and then hit EOF.
			if errors.Is(err, io.EOF) && read {
				break
			}
			return "", err
		}
		read = true

		size += len(chunk)
		if size <= MaxFrameSize {
			line = append(line, chunk...)
		}
		if !more {
			break
		}
	}

	if size > MaxFrameSize {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLong, size, MaxFrameSize)
	}

	if r.dest != nil {
		if _, err := r.dest.Write(append(line, '\n')); err != nil {
			r.teeErr = err
			r.dest = nil
		}
	}

	return string(line), nil
}

// TeeErr returns the write error that switched the tee off, if any.
func (r *Reader) TeeErr() error {
	return r.teeErr
}
