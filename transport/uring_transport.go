package transport

import (
	"io"
	"net"
	"os"

	"github.com/iceber/iouring-go"
	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
)

// UringListener accepts TCP connections and hands their sockets to io_uring.
// All accepted transports share the listener's ring, which stays open until
// the listener and every accepted transport are closed.
type UringListener struct {
	ln    *net.TCPListener
	iour  *iouring.IOURing
	owner *ringOwner
	opts  Options
}

// ListenUring binds addr and creates an io_uring instance for accepted sockets
func ListenUring(addr string, opts Options) (*UringListener, error) {
	// Create io_uring instance with queue depth of 32
	iour, err := iouring.New(32)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	tcpLn, err := listenTcpRaw(addr)
	if err != nil {
		iour.Close()
		return nil, err
	}

	return &UringListener{
		ln:    tcpLn,
		iour:  iour,
		owner: newRingOwner(func() { iour.Close() }),
		opts:  opts,
	}, nil
}

// Accept waits for the next client and detaches its socket from the Go poller
func (l *UringListener) Accept() (Transport, error) {
	file, remote, err := acceptFile(l.ln, l.owner)
	if err != nil {
		return nil, err
	}
	return &UringTransport{
		iour:   l.iour,
		owner:  l.owner,
		opts:   l.opts,
		file:   file,
		fd:     int(file.Fd()),
		remote: remote,
	}, nil
}

// Addr returns the bound address
func (l *UringListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting connections. The ring is released once the last
// accepted transport is closed.
func (l *UringListener) Close() error {
	err := l.ln.Close()
	l.owner.close()
	if err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCloseFailure,
			"failed to close listener",
			err,
		)
	}
	return nil
}

// UringTransport implements Transport using io_uring for async I/O.
// Timeouts from Options bound each submitted operation.
type UringTransport struct {
	iour   *iouring.IOURing
	owner  *ringOwner
	opts   Options
	file   *os.File
	fd     int
	remote string
	closed bool
}

// Write sends data over the connection using io_uring
func (t *UringTransport) Write(buf []byte) (int, error) {
	if t.closed {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		ch := make(chan iouring.Result, 1)
		prepReq := iouring.Send(t.fd, buf[totalWritten:], 0)
		wd := watch(t.fd, t.opts.WriteTimeout)
		if _, err := t.iour.SubmitRequest(prepReq, ch); err != nil {
			wd.stop()
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorIoUringSubmit,
				"failed to submit write request",
				err,
			)
		}

		result := <-ch
		timedOut := wd.stop()
		n, err := result.ReturnInt()
		if timedOut && (err != nil || n <= 0) {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorSocketWriteFailure,
				"write timed out",
				err,
			)
		}
		if err != nil {
			return totalWritten, classifyWriteError(err)
		}

		if n <= 0 {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

// Read receives data from the connection using io_uring
func (t *UringTransport) Read(buf []byte) (int, error) {
	if t.closed {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"connection closed",
			io.EOF,
		)
	}

	ch := make(chan iouring.Result, 1)
	prepReq := iouring.Recv(t.fd, buf, 0)
	wd := watch(t.fd, t.opts.ReadTimeout)
	if _, err := t.iour.SubmitRequest(prepReq, ch); err != nil {
		wd.stop()
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to submit read request",
			err,
		)
	}

	result := <-ch
	timedOut := wd.stop()
	n, err := result.ReturnInt()
	if timedOut && (err != nil || n == 0) {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorSocketReadFailure,
			"read timed out",
			err,
		)
	}
	if err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorSocketReadFailure,
			"read failed",
			err,
		)
	}

	if n == 0 && len(buf) > 0 {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"connection closed by peer",
			io.EOF,
		)
	}

	return n, nil
}

// Interrupt shuts the socket down so a Read or Write blocked in another
// goroutine completes. Close must still be called.
func (t *UringTransport) Interrupt() error {
	if t.closed {
		return nil
	}
	return shutdownSocket(t.fd)
}

// Close closes the socket and drops its hold on the listener's ring
func (t *UringTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	defer t.owner.done()

	if err := t.file.Close(); err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCloseFailure,
			"failed to close socket",
			err,
		)
	}
	return nil
}

// RemoteAddr returns the client address
func (t *UringTransport) RemoteAddr() string {
	return t.remote
}
