package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
	"github.com/nczempin/0005_std_lib_http_server/transport"
)

const acceptRetryDelay = 50 * time.Millisecond

// Server accepts connections and serves them one at a time.
// The next connection is accepted only after the current cycle finished and
// its connection was closed.
type Server struct {
	listener transport.Listener
	handler  *Handler
	logger   *log.Logger

	mu       sync.Mutex
	current  transport.Transport
	stopping bool
}

// New creates a Server. It takes ownership of ln.
func New(ln transport.Listener, h *Handler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		listener: ln,
		handler:  h,
		logger:   logger,
	}
}

// Addr returns the listening address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is done, then closes the listener,
// interrupts the connection in flight and returns nil. If the listener is
// closed by anyone else, Serve returns the accept error. A failing
// connection never stops the loop.
func (s *Server) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.listener.Close()
			s.interruptCurrent()
		case <-stop:
		}
	}()

	s.logger.Printf("I listening on %s", s.listener.Addr())

	for {
		t, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Printf("I server stopped")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Printf("E accept error: %v", err)
			time.Sleep(acceptRetryDelay)
			continue
		}

		s.serveConn(t)
	}
}

// Close stops the accept loop
func (s *Server) Close() error {
	return s.listener.Close()
}

// interruptCurrent marks the server stopping and unblocks the connection
// being served, if any
func (s *Server) interruptCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopping = true
	if s.current != nil {
		if err := s.current.Interrupt(); err != nil {
			s.logger.Printf("W %s interrupt: %v", s.current.RemoteAddr(), err)
		}
	}
}

// track makes t the connection interrupted on shutdown. A connection
// accepted while stopping is interrupted right away.
func (s *Server) track(t transport.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = t
	if t != nil && s.stopping {
		t.Interrupt()
	}
}

func (s *Server) serveConn(t transport.Transport) {
	remote := t.RemoteAddr()
	s.track(t)
	defer func() {
		s.track(nil)
		if err := t.Close(); err != nil {
			s.logger.Printf("W %s close: %v", remote, err)
		}
	}()

	err := s.handler.HandleConnection(t)
	switch {
	case err == nil:
	case httperrors.IsRequestError(err, httperrors.RequestErrorEmpty):
		s.logger.Printf("I %s closed without a request", remote)
	case httperrors.TypeOf(err) == httperrors.ErrorRequest:
		s.logger.Printf("I %s rejected: %v", remote, err)
	default:
		s.logger.Printf("E %s: %v", remote, err)
	}
}
