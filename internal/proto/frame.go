// Package proto implements the wire protocol: CRLF line framing, the
// VERB/req_id/kv request grammar and the OK/ERR/PUSH reply grammar. It has
// no knowledge of accounts, sessions or chat — it only knows how to turn
// bytes into Requests and results into lines.
package proto

import (
	"bufio"
	"errors"
	"io"
)

// MaxLineLength is the largest request line accepted, excluding the CRLF
// terminator.
const MaxLineLength = 65535

// ErrOverlongLine is returned when a line exceeds MaxLineLength without a
// CRLF terminator; the caller must hard-disconnect.
var ErrOverlongLine = errors.New("proto: line exceeds maximum length")

// LineReader frames an incoming byte stream on CRLF, tolerating split writes
// and multiple lines per read.
type LineReader struct {
	r *bufio.Reader
}

// NewLineReader wraps r with CRLF framing.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 4096)}
}

// ReadLine returns the next line with its terminator stripped. It returns
// ErrOverlongLine if the line exceeds MaxLineLength before a terminator is
// seen, and io.EOF (or the underlying read error) when the connection closes.
func (lr *LineReader) ReadLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := lr.r.ReadSlice('\n')
		buf = append(buf, chunk...)

		if len(buf) > MaxLineLength+2 {
			return nil, ErrOverlongLine
		}

		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return nil, err
	}

	n := len(buf)
	if n > 0 && buf[n-1] == '\n' {
		n--
	}
	if n > 0 && buf[n-1] == '\r' {
		n--
	}
	line := buf[:n]
	if len(line) > MaxLineLength {
		return nil, ErrOverlongLine
	}
	return line, nil
}
