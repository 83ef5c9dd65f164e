package transport

import (
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
)

// ringOwner releases a listener's ring once the listener is closed and
// every transport accepted from it has been closed.
type ringOwner struct {
	mu      sync.Mutex
	active  int
	closed  bool
	release func()
}

func newRingOwner(release func()) *ringOwner {
	return &ringOwner{release: release}
}

// acquire registers a new transport. It fails once the listener is closed.
func (o *ringOwner) acquire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.active++
	return true
}

// done unregisters a closed transport
func (o *ringOwner) done() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active--
	o.releaseIfIdle()
}

// close marks the listener closed
func (o *ringOwner) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.releaseIfIdle()
}

func (o *ringOwner) releaseIfIdle() {
	if o.closed && o.active == 0 && o.release != nil {
		o.release()
		o.release = nil
	}
}

// watchdog shuts a socket down when one ring operation outlives its timeout.
// Shutdown completes the pending operation, which io_uring cannot cancel
// through a deadline the way the Go poller can.
type watchdog struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	fired   bool
}

func watch(fd int, timeout time.Duration) *watchdog {
	if timeout <= 0 {
		return nil
	}
	w := &watchdog{}
	w.timer = time.AfterFunc(timeout, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.stopped {
			return
		}
		w.fired = true
		syscall.Shutdown(fd, syscall.SHUT_RDWR)
	})
	return w
}

// stop disarms the watchdog and reports whether it fired.
// Once stop returns the socket is never touched again.
func (w *watchdog) stop() bool {
	if w == nil {
		return false
	}
	w.timer.Stop()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	return w.fired
}

// shutdownSocket completes any pending operation on fd with EOF or EPIPE
func shutdownSocket(fd int) error {
	err := syscall.Shutdown(fd, syscall.SHUT_RDWR)
	if err != nil && !errors.Is(err, syscall.ENOTCONN) {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCloseFailure,
			"failed to shut down socket",
			err,
		)
	}
	return nil
}

func listenTcpRaw(addr string) (*net.TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorListenFailure,
			"failed to listen on "+addr,
			err,
		)
	}
	return ln.(*net.TCPListener), nil
}

// acceptFile accepts one connection and returns a dup of its socket.
// The net.Conn is closed; the dup keeps the socket open. On success the
// socket is registered with owner and must be released with owner.done.
func acceptFile(ln *net.TCPListener, owner *ringOwner) (*os.File, string, error) {
	conn, err := ln.AcceptTCP()
	if err != nil {
		return nil, "", httperrors.NewTransportError(
			httperrors.TransportErrorAcceptFailure,
			"failed to accept connection",
			err,
		)
	}
	defer conn.Close()

	if !owner.acquire() {
		return nil, "", httperrors.NewTransportError(
			httperrors.TransportErrorAcceptFailure,
			"listener closed",
			net.ErrClosed,
		)
	}

	if err := conn.SetNoDelay(true); err != nil {
		owner.done()
		return nil, "", httperrors.NewTransportError(
			httperrors.TransportErrorAcceptFailure,
			"failed to set TCP_NODELAY",
			err,
		)
	}

	file, err := conn.File()
	if err != nil {
		owner.done()
		return nil, "", httperrors.NewTransportError(
			httperrors.TransportErrorAcceptFailure,
			"failed to detach socket",
			err,
		)
	}

	return file, conn.RemoteAddr().String(), nil
}
