package protocol

import (
	"strings"
	"unicode/utf8"

	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
)

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}

// ParseRequestLine validates a request line against the closed grammar
// "GET <path> HTTP/1.1". The path token is returned unmodified.
func ParseRequestLine(line string) (Request, error) {
	if !utf8.ValidString(line) {
		return Request{}, httperrors.NewRequestError(
			httperrors.RequestErrorInvalidHeader,
			"request line is not valid UTF-8",
		)
	}

	fields := strings.FieldsFunc(line, isASCIISpace)
	if len(fields) != 3 {
		return Request{}, httperrors.NewRequestError(
			httperrors.RequestErrorInvalidLength,
			"expected METHOD PATH VERSION",
		)
	}

	if fields[0] != MethodGet || fields[2] != Version {
		return Request{}, httperrors.NewRequestError(
			httperrors.RequestErrorInvalidHeader,
			"unsupported method or version",
		)
	}

	return Request{
		Method:  fields[0],
		Path:    fields[1],
		Version: fields[2],
	}, nil
}

// ReadRequest reads exactly one line from lr and parses it.
// The rest of the stream is left unread.
func ReadRequest(lr *LineReader) (Request, error) {
	line, err := lr.ReadLine()
	if err != nil {
		return Request{}, err
	}
	return ParseRequestLine(line)
}
