package transport

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
)

// TcpListener accepts plain TCP connections
type TcpListener struct {
	ln   net.Listener
	opts Options
}

// ListenTcp binds a TCP listener to addr
func ListenTcp(addr string, opts Options) (*TcpListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorListenFailure,
			"failed to listen on "+addr,
			err,
		)
	}
	return &TcpListener{ln: ln, opts: opts}, nil
}

// Accept waits for the next client connection.
// After Close the returned error wraps net.ErrClosed.
func (l *TcpListener) Accept() (Transport, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorAcceptFailure,
			"failed to accept connection",
			err,
		)
	}

	// Set TCP_NODELAY to disable Nagle's algorithm for lower latency
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, httperrors.NewTransportError(
				httperrors.TransportErrorAcceptFailure,
				"failed to set TCP_NODELAY",
				err,
			)
		}
	}

	return NewTcpTransport(conn, l.opts), nil
}

// Addr returns the bound address
func (l *TcpListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting connections
func (l *TcpListener) Close() error {
	if err := l.ln.Close(); err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCloseFailure,
			"failed to close listener",
			err,
		)
	}
	return nil
}

// TcpTransport implements Transport over a net.Conn
type TcpTransport struct {
	conn net.Conn
	opts Options
}

// NewTcpTransport wraps an accepted connection
func NewTcpTransport(conn net.Conn, opts Options) *TcpTransport {
	return &TcpTransport{
		conn: conn,
		opts: opts,
	}
}

// Read receives data from the client, refreshing the read deadline first
func (t *TcpTransport) Read(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "not connected", nil)
	}

	if t.opts.ReadTimeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed by peer", err)
		}
		if isTimeout(err) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read timed out", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
	}

	return n, nil
}

// Write sends data to the client, refreshing the write deadline first
func (t *TcpTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not connected", nil)
	}

	t.refreshWriteDeadline()

	n, err := t.conn.Write(buf)
	if err != nil {
		return n, classifyWriteError(err)
	}

	return n, nil
}

// ReadFrom lets io.Copy hand file bodies to the kernel (sendfile on Linux)
func (t *TcpTransport) ReadFrom(r io.Reader) (int64, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not connected", nil)
	}

	t.refreshWriteDeadline()

	var (
		n   int64
		err error
	)
	if rf, ok := t.conn.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(r)
	} else {
		n, err = io.Copy(t.conn, r)
	}
	if err != nil {
		return n, classifyWriteError(err)
	}
	return n, nil
}

// Interrupt shuts both directions of the connection down.
// Connections without half-close support get an expired deadline instead.
func (t *TcpTransport) Interrupt() error {
	if t.conn == nil {
		return nil
	}

	if hc, ok := t.conn.(interface {
		CloseRead() error
		CloseWrite() error
	}); ok {
		readErr := hc.CloseRead()
		writeErr := hc.CloseWrite()
		if err := errors.Join(readErr, writeErr); err != nil && !errors.Is(err, syscall.ENOTCONN) {
			return httperrors.NewTransportError(httperrors.TransportErrorSocketCloseFailure, "failed to shut down socket", err)
		}
		return nil
	}

	return t.conn.SetDeadline(time.Now())
}

// Close closes the connection
func (t *TcpTransport) Close() error {
	if t.conn == nil {
		return nil // Idempotent close
	}

	err := t.conn.Close()
	t.conn = nil

	if err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketCloseFailure, "failed to close socket", err)
	}

	return nil
}

// RemoteAddr returns the client address
func (t *TcpTransport) RemoteAddr() string {
	if t.conn == nil {
		return ""
	}
	return t.conn.RemoteAddr().String()
}

func (t *TcpTransport) refreshWriteDeadline() {
	if t.opts.WriteTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	}
}

func classifyWriteError(err error) error {
	// Check for broken pipe or connection reset
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed during write", err)
	}
	if isTimeout(err) {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write timed out", err)
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
