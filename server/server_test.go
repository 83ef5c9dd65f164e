package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
	"github.com/nczempin/0005_std_lib_http_server/resolver"
	"github.com/nczempin/0005_std_lib_http_server/transport"
)

// runningServer is a Serve loop running in the background
type runningServer struct {
	addr   string
	cancel context.CancelFunc
	done   chan error
	once   sync.Once
}

// stop cancels the server and checks that Serve returns nil promptly
func (r *runningServer) stop(t *testing.T) {
	t.Helper()
	r.once.Do(func() {
		r.cancel()
		select {
		case err := <-r.done:
			if err != nil {
				t.Errorf("Serve returned %v after cancel", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not stop after cancel")
		}
	})
}

// launch serves base on a loopback port with the given transport
func launch(t *testing.T, base string, kind transport.Kind, opts transport.Options) *runningServer {
	t.Helper()

	ln, err := transport.Listen(kind, "127.0.0.1:0", opts)
	if httperrors.IsTransportError(err, httperrors.TransportErrorIoUringInit) {
		t.Skipf("%s unavailable: %v", kind, err)
	}
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	srv := New(ln, NewHandler(resolver.New(base), logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	r := &runningServer{
		addr:   srv.Addr().String(),
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		r.done <- srv.Serve(ctx)
	}()

	t.Cleanup(func() { r.stop(t) })
	return r
}

// startServer serves base on a loopback port and returns its address.
// The server is stopped and Serve's result checked at cleanup.
func startServer(t *testing.T, base string, kind transport.Kind) string {
	t.Helper()
	return launch(t, base, kind, transport.Options{ReadTimeout: time.Second, WriteTimeout: time.Second}).addr
}

// roundTrip sends raw bytes and returns everything the server wrote
// before closing the connection.
func roundTrip(t *testing.T, addr, request string) string {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if request != "" {
		if _, err := conn.Write([]byte(request)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.CloseWrite()
	}

	response, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return string(response)
}

func TestServer_ServesPages(t *testing.T) {
	addr := startServer(t, setupSite(t), transport.KindTcp)

	got := roundTrip(t, addr, "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
	expect := "HTTP/1.1 200 Ok\r\n" +
		"Content-Length: 12\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		indexBody
	if got != expect {
		t.Errorf("Got %q, want %q", got, expect)
	}

	got = roundTrip(t, addr, "GET /docs/ HTTP/1.1\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 200 Ok\r\n") || !strings.HasSuffix(got, docsBody) {
		t.Errorf("Unexpected docs response %q", got)
	}
}

func TestServer_SequentialConnections(t *testing.T) {
	addr := startServer(t, setupSite(t), transport.KindTcp)

	for i := 0; i < 5; i++ {
		got := roundTrip(t, addr, "GET /../../etc/passwd HTTP/1.1\r\n\r\n")
		if !strings.HasPrefix(got, "HTTP/1.1 404 NOT FOUND\r\n") {
			t.Fatalf("Request %d: expected 404, got %q", i, got)
		}
		if !strings.HasSuffix(got, notFoundBody) {
			t.Errorf("Request %d: expected the 404 page, got %q", i, got)
		}
	}
}

func TestServer_EmptyConnection(t *testing.T) {
	addr := startServer(t, setupSite(t), transport.KindTcp)

	if got := roundTrip(t, addr, ""); got != "" {
		t.Errorf("Expected no response to an empty connection, got %q", got)
	}

	// The loop keeps serving afterwards
	if got := roundTrip(t, addr, "GET / HTTP/1.1\r\n\r\n"); !strings.HasSuffix(got, indexBody) {
		t.Errorf("Expected the index page after an empty connection, got %q", got)
	}
}

func TestServer_BadRequest(t *testing.T) {
	addr := startServer(t, setupSite(t), transport.KindTcp)

	got := roundTrip(t, addr, "DELETE / HTTP/1.1\r\n\r\n")
	if !strings.HasPrefix(got, "HTTP/1.1 400 BAD REQUEST\r\n") {
		t.Errorf("Expected 400, got %q", got)
	}
}

func TestServer_Uring(t *testing.T) {
	for _, kind := range []transport.Kind{transport.KindUring, transport.KindUringV2} {
		t.Run(string(kind), func(t *testing.T) {
			addr := startServer(t, setupSite(t), kind)
			got := roundTrip(t, addr, "GET /docs HTTP/1.1\r\n\r\n")
			if !strings.HasPrefix(got, "HTTP/1.1 200 Ok\r\n") || !strings.HasSuffix(got, docsBody) {
				t.Errorf("Unexpected response %q", got)
			}
		})
	}
}

func TestServer_CancelWithSilentClient(t *testing.T) {
	for _, kind := range transport.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			// No timeouts: only the shutdown can unblock the read
			srv := launch(t, setupSite(t), kind, transport.Options{})

			conn, err := net.Dial("tcp", srv.addr)
			if err != nil {
				t.Fatalf("Failed to dial: %v", err)
			}
			defer conn.Close()

			// Let the server accept and block reading the request line
			time.Sleep(100 * time.Millisecond)
			srv.stop(t)

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			got, _ := io.ReadAll(conn)
			if len(got) != 0 {
				t.Errorf("Expected no response, got %q", got)
			}
		})
	}
}

func TestServer_SilentClientTimesOut(t *testing.T) {
	for _, kind := range transport.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			srv := launch(t, setupSite(t), kind, transport.Options{ReadTimeout: 100 * time.Millisecond})

			silent, err := net.Dial("tcp", srv.addr)
			if err != nil {
				t.Fatalf("Failed to dial: %v", err)
			}
			defer silent.Close()

			// Served only after the silent connection timed out
			got := roundTrip(t, srv.addr, "GET / HTTP/1.1\r\n\r\n")
			if !strings.HasSuffix(got, indexBody) {
				t.Errorf("Expected the index page after the timeout, got %q", got)
			}
		})
	}
}

func TestServer_ListenerClosedExternally(t *testing.T) {
	ln, err := transport.ListenTcp("127.0.0.1:0", transport.Options{})
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	srv := New(ln, NewHandler(resolver.New(t.TempDir()), logger), logger)

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	srv.Close()

	select {
	case err := <-done:
		if !errors.Is(err, net.ErrClosed) {
			t.Errorf("Expected net.ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Serve did not return after Close")
	}
}
