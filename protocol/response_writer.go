package protocol

import (
	"errors"
	"fmt"
	"io"
	"os"

	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
)

// buildHead formats the status line and headers, blank line included
func buildHead(status Status, contentLength int64) []byte {
	head := make([]byte, 0, 128)
	head = append(head, fmt.Sprintf("%s %s\r\n", Version, status)...)
	head = append(head, fmt.Sprintf("Content-Length: %d\r\n", contentLength)...)
	head = append(head, fmt.Sprintf("Content-Type: %s\r\n", ContentTypeHTML)...)
	head = append(head, "\r\n"...)
	return head
}

// OpenBody opens a file to be sent as a response body and returns its size
// in bytes. The caller closes the file.
func OpenBody(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, httperrors.NewIoError("failed to open "+path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, httperrors.NewIoError("failed to stat "+path, err)
	}

	return f, info.Size(), nil
}

// WriteResponse writes the complete head in one write, then streams exactly
// contentLength bytes of body. It returns the number of body bytes written.
// A body that runs short fails with io.ErrUnexpectedEOF; the head is
// already on the wire at that point and nothing else is sent.
func WriteResponse(w io.Writer, status Status, body io.Reader, contentLength int64) (int64, error) {
	head := buildHead(status, contentLength)
	if n, err := w.Write(head); err != nil || n != len(head) {
		if err == nil {
			err = io.ErrShortWrite
		}
		return 0, httperrors.NewIoError("failed to write response head", err)
	}

	if contentLength == 0 {
		return 0, nil
	}

	n, err := io.CopyN(w, body, contentLength)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return n, httperrors.NewIoError("failed to stream response body", err)
	}
	return n, nil
}

// WriteFileResponse sends the file at path with the given status
func WriteFileResponse(w io.Writer, status Status, path string) (int64, error) {
	f, size, err := OpenBody(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return WriteResponse(w, status, f, size)
}

// WriteEmptyResponse sends a head with Content-Length 0 and no body
func WriteEmptyResponse(w io.Writer, status Status) error {
	_, err := WriteResponse(w, status, nil, 0)
	return err
}
