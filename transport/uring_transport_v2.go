package transport

import (
	"io"
	"net"
	"os"

	"github.com/godzie44/go-uring/uring"
	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
)

// UringListenerV2 is UringListener built on godzie44/go-uring.
// The ring is driven synchronously, so accepted transports must not be used
// concurrently with each other.
type UringListenerV2 struct {
	ln    *net.TCPListener
	ring  *uring.Ring
	owner *ringOwner
	opts  Options
}

// ListenUringV2 binds addr and creates a go-uring ring for accepted sockets
func ListenUringV2(addr string, opts Options) (*UringListenerV2, error) {
	// Create io_uring instance with queue depth of 32
	ring, err := uring.New(32)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	tcpLn, err := listenTcpRaw(addr)
	if err != nil {
		ring.Close()
		return nil, err
	}

	return &UringListenerV2{
		ln:    tcpLn,
		ring:  ring,
		owner: newRingOwner(func() { ring.Close() }),
		opts:  opts,
	}, nil
}

// Accept waits for the next client and detaches its socket from the Go poller
func (l *UringListenerV2) Accept() (Transport, error) {
	file, remote, err := acceptFile(l.ln, l.owner)
	if err != nil {
		return nil, err
	}
	return &UringTransportV2{
		ring:   l.ring,
		owner:  l.owner,
		opts:   l.opts,
		file:   file,
		fd:     int(file.Fd()),
		remote: remote,
	}, nil
}

// Addr returns the bound address
func (l *UringListenerV2) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting connections. The ring is released once the last
// accepted transport is closed.
func (l *UringListenerV2) Close() error {
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

// UringTransportV2 implements Transport using godzie44/go-uring
type UringTransportV2 struct {
	ring   *uring.Ring
	owner  *ringOwner
	opts   Options
	file   *os.File
	fd     int
	remote string
	closed bool
}

// complete queues one operation, submits it and waits for its result.
// timedOut reports whether the watchdog shut the socket down meanwhile.
func (t *UringTransportV2) complete(queue func() error, failure httperrors.TransportError, what string, wd *watchdog) (n int, timedOut bool, err error) {
	if err := queue(); err != nil {
		return 0, wd.stop(), httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to queue "+what+" request",
			err,
		)
	}

	if _, err := t.ring.Submit(); err != nil {
		return 0, wd.stop(), httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to submit "+what+" request",
			err,
		)
	}

	cqe, err := t.ring.WaitCQEvents(1)
	timedOut = wd.stop()
	if err != nil {
		return 0, timedOut, httperrors.NewTransportError(
			failure,
			"failed to wait for "+what+" completion",
			err,
		)
	}

	if err := cqe.Error(); err != nil {
		t.ring.SeenCQE(cqe)
		return 0, timedOut, httperrors.NewTransportError(
			failure,
			what+" operation failed",
			err,
		)
	}

	n = int(cqe.Res)
	t.ring.SeenCQE(cqe)
	return n, timedOut, nil
}

// Write sends data over the connection using io_uring
func (t *UringTransportV2) Write(buf []byte) (int, error) {
	if t.closed {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		chunk := buf[totalWritten:]
		queue := func() error {
			return t.ring.QueueSQE(uring.Write(uintptr(t.fd), chunk, 0), 0, 0)
		}
		wd := watch(t.fd, t.opts.WriteTimeout)
		n, timedOut, err := t.complete(queue, httperrors.TransportErrorSocketWriteFailure, "write", wd)
		if timedOut && (err != nil || n <= 0) {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorSocketWriteFailure,
				"write timed out",
				err,
			)
		}
		if err != nil {
			return totalWritten, err
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
func (t *UringTransportV2) Read(buf []byte) (int, error) {
	if t.closed {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"connection closed",
			io.EOF,
		)
	}

	queue := func() error {
		return t.ring.QueueSQE(uring.Read(uintptr(t.fd), buf, 0), 0, 0)
	}
	wd := watch(t.fd, t.opts.ReadTimeout)
	n, timedOut, err := t.complete(queue, httperrors.TransportErrorSocketReadFailure, "read", wd)
	if timedOut && (err != nil || n == 0) {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorSocketReadFailure,
			"read timed out",
			err,
		)
	}
	if err != nil {
		return 0, err
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
func (t *UringTransportV2) Interrupt() error {
	if t.closed {
		return nil
	}
	return shutdownSocket(t.fd)
}

// Close closes the socket and drops its hold on the listener's ring
func (t *UringTransportV2) Close() error {
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
func (t *UringTransportV2) RemoteAddr() string {
	return t.remote
}
