// ABOUTME: Newline-delimited JSON framing for the stdio channel.
// ABOUTME: FrameReader yields one line per call with a size cap; FrameWriter emits one flushed line per frame.

package stdio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameBytes caps a single request line.
const DefaultMaxFrameBytes = 1 << 20

// ErrFrameTooLarge is returned for a line longer than the reader's cap.
// The rest of the line has already been discarded.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// FrameReader reads newline-delimited frames. Blank lines are skipped and a
// trailing "\r" is stripped.
type FrameReader struct {
	r   *bufio.Reader
	max int
}

// NewFrameReader wraps r. A non-positive max selects DefaultMaxFrameBytes.
func NewFrameReader(r io.Reader, max int) *FrameReader {
	if max <= 0 {
		max = DefaultMaxFrameBytes
	}
	return &FrameReader{r: bufio.NewReaderSize(r, 64*1024), max: max}
}

// ReadFrame returns the next non-blank line without its terminator.
// At end of input it returns io.EOF. For an oversized line it returns the
// first max bytes together with ErrFrameTooLarge.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for {
		line, err := fr.readLine()
		if err != nil {
			return line, err
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return line, nil
	}
}

func (fr *FrameReader) readLine() ([]byte, error) {
	var buf []byte
	var head []byte

	for {
		chunk, err := fr.r.ReadSlice('\n')

		if head == nil {
			buf = append(buf, chunk...)
			if len(bytes.TrimRight(buf, "\r\n")) > fr.max {
				head = buf[:fr.max]
				buf = nil
			}
		}

		switch {
		case err == nil:
			if head != nil {
				return head, ErrFrameTooLarge
			}
			return bytes.TrimRight(buf, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if head != nil {
				return head, ErrFrameTooLarge
			}
			if len(buf) > 0 {
				return bytes.TrimRight(buf, "\r\n"), nil
			}
			return nil, io.EOF
		default:
			return nil, err
		}
	}
}

// FrameWriter writes one JSON value per line and flushes after each.
type FrameWriter struct {
	w *bufio.Writer
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: bufio.NewWriter(w)}
}

// WriteFrame encodes v, appends a newline, and flushes.
func (fw *FrameWriter) WriteFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	data = append(data, '\n')

	if _, err := fw.w.Write(data); err != nil {
		return err
	}
	return fw.w.Flush()
}
