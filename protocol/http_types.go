package protocol

import "fmt"

const (
	// MethodGet is the only accepted request method
	MethodGet = "GET"

	// Version is the only accepted protocol version
	Version = "HTTP/1.1"

	// ContentTypeHTML is sent with every response
	ContentTypeHTML = "text/html; charset=utf-8"

	// MaxRequestLineSize bounds the request line, terminator included
	MaxRequestLineSize = 8 << 10
)

// Request is a parsed request line. Headers and body are never read.
type Request struct {
	Method  string
	Path    string // raw, undecoded, query and fragment included
	Version string
}

// String renders the request as its request line without the terminator
func (r Request) String() string {
	return fmt.Sprintf("%s %s %s", r.Method, r.Path, r.Version)
}

// Status is a response status line minus the protocol version
type Status struct {
	Code   int
	Reason string
}

func (s Status) String() string {
	return fmt.Sprintf("%d %s", s.Code, s.Reason)
}

var (
	StatusOK         = Status{Code: 200, Reason: "Ok"}
	StatusBadRequest = Status{Code: 400, Reason: "BAD REQUEST"}
	StatusNotFound   = Status{Code: 404, Reason: "NOT FOUND"}
)
