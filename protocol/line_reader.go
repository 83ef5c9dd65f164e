package protocol

import (
	"bufio"
	"errors"
	"io"

	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
)

// LineReader yields lines from a connection one at a time.
// Bytes read ahead of the current line stay buffered and are returned by the
// next ReadLine or by Reader; nothing is discarded.
type LineReader struct {
	r *bufio.Reader
}

// NewLineReader wraps r, reusing it if it already is a *bufio.Reader
func NewLineReader(r io.Reader) *LineReader {
	if br, ok := r.(*bufio.Reader); ok {
		return &LineReader{r: br}
	}
	return &LineReader{r: bufio.NewReader(r)}
}

// Reader exposes the buffered stream positioned after the last line read
func (lr *LineReader) Reader() *bufio.Reader {
	return lr.r
}

// ReadLine returns the next line without its "\n" or "\r\n" terminator.
//
// A stream that ends before any byte is read yields RequestErrorEmpty. A
// stream that ends in the middle of a line yields that partial line. Any
// other read failure is returned as an ErrorIo error.
func (lr *LineReader) ReadLine() (string, error) {
	var line []byte
	for {
		chunk, err := lr.r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxRequestLineSize {
			return "", httperrors.NewRequestError(
				httperrors.RequestErrorLineTooLong,
				"request line exceeds limit",
			)
		}

		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(line) == 0 {
				return "", httperrors.NewRequestError(httperrors.RequestErrorEmpty, "")
			}
			break
		}
		return "", httperrors.NewIoError("failed to read request line", err)
	}

	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}
	return string(line[:n]), nil
}
