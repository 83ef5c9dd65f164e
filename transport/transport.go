package transport

import (
	"fmt"
	"net"
	"time"
)

// Transport is one accepted client connection.
// A read that hits the end of the stream returns a TransportErrorConnectionClosed
// error wrapping io.EOF.
type Transport interface {
	// Read receives data from the client.
	// Returns the number of bytes read.
	Read(buf []byte) (int, error)

	// Write sends data to the client.
	// Returns the number of bytes written.
	Write(buf []byte) (int, error)

	// Interrupt completes a Read or Write blocked in another goroutine.
	// It may be called concurrently with Read and Write but not with Close.
	Interrupt() error

	// Close closes the connection
	Close() error

	// RemoteAddr returns the client address for logging
	RemoteAddr() string
}

// Listener accepts client connections as Transports
type Listener interface {
	Accept() (Transport, error)
	Addr() net.Addr
	Close() error
}

// Kind selects the I/O implementation behind accepted connections
type Kind string

const (
	KindTcp     Kind = "tcp"
	KindUring   Kind = "uring"
	KindUringV2 Kind = "uring-v2"
)

// Kinds lists every supported transport kind
var Kinds = []Kind{KindTcp, KindUring, KindUringV2}

// ParseKind validates a transport name
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown transport %q", s)
}

// Options are per-connection settings applied by the listener.
// Zero timeouts disable deadlines.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Listen opens a listener of the given kind on addr
func Listen(kind Kind, addr string, opts Options) (Listener, error) {
	var (
		ln  Listener
		err error
	)
	switch kind {
	case KindTcp:
		ln, err = ListenTcp(addr, opts)
	case KindUring:
		ln, err = ListenUring(addr, opts)
	case KindUringV2:
		ln, err = ListenUringV2(addr, opts)
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return ln, nil
}
