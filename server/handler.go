package server

import (
	"io"
	"log"

	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
	"github.com/nczempin/0005_std_lib_http_server/protocol"
	"github.com/nczempin/0005_std_lib_http_server/resolver"
	"github.com/nczempin/0005_std_lib_http_server/transport"
)

// PathResolver maps request paths onto servable files.
// *resolver.Resolver is the production implementation.
type PathResolver interface {
	Resolve(rawPath string) (string, error)
	FallbackPath() (string, error)
}

// Handler runs one request/response cycle per connection.
// It holds no per-connection state and may serve any number of connections.
type Handler struct {
	resolver PathResolver
	logger   *log.Logger
}

// NewHandler creates a Handler serving files resolved by r
func NewHandler(r PathResolver, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		resolver: r,
		logger:   logger,
	}
}

// HandleConnection reads the request line from t and answers it.
// It never closes t.
//
// The cycle ends with one of:
//   - no response, RequestErrorEmpty: the client sent nothing
//   - 400 with empty body, request error returned: malformed request line
//   - 200 with the resolved file, nil
//   - 404 with the fallback page, nil
//   - ResolveErrorFallbackMissing: nothing could be sent
//   - ErrorIo: the connection or a file failed mid-cycle
func (h *Handler) HandleConnection(t transport.Transport) error {
	req, err := protocol.ReadRequest(protocol.NewLineReader(t))
	if err != nil {
		return h.rejectRequest(t, err)
	}

	h.logger.Printf("I %s %s", t.RemoteAddr(), req)

	return h.serve(t, req)
}

func (h *Handler) rejectRequest(w io.Writer, err error) error {
	if httperrors.TypeOf(err) != httperrors.ErrorRequest || httperrors.IsRequestError(err, httperrors.RequestErrorEmpty) {
		return err
	}
	if writeErr := protocol.WriteEmptyResponse(w, protocol.StatusBadRequest); writeErr != nil {
		return writeErr
	}
	return err
}

func (h *Handler) serve(w io.Writer, req protocol.Request) error {
	path, err := h.resolver.Resolve(req.Path)
	if err == nil {
		body, size, openErr := protocol.OpenBody(path)
		if openErr == nil {
			defer body.Close()
			_, err = protocol.WriteResponse(w, protocol.StatusOK, body, size)
			return err
		}
		// Removed or replaced since it was resolved; nothing is written yet.
		h.logger.Printf("W %s vanished after resolution: %v", path, openErr)
	} else if httperrors.IsResolveError(err, httperrors.ResolveErrorBaseDirUnavailable) {
		h.logger.Printf("W base directory unavailable: %v", err)
	}

	return h.serveNotFound(w)
}

func (h *Handler) serveNotFound(w io.Writer) error {
	path, err := h.resolver.FallbackPath()
	if err != nil {
		return httperrors.NewResolveError(httperrors.ResolveErrorFallbackMissing, resolver.FallbackFile, err)
	}

	body, size, err := protocol.OpenBody(path)
	if err != nil {
		return httperrors.NewResolveError(httperrors.ResolveErrorFallbackMissing, path, err)
	}
	defer body.Close()

	_, err = protocol.WriteResponse(w, protocol.StatusNotFound, body, size)
	return err
}
