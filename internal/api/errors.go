package api

import (
	"errors"
	"net/http"

	"github.com/tomoyukiirino/spy-credit-spread/internal/bridge"
	"github.com/tomoyukiirino/spy-credit-spread/internal/venue"
)

// writeBridgeError maps bridge failures onto HTTP statuses: connectivity
// problems are service-level (503), a caller's expired await is a gateway
// timeout (504), and a failed venue operation is a bad gateway (502). One
// request's failure never affects other in-flight requests.
func (s *Server) writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrDisconnected),
		errors.Is(err, bridge.ErrConnectFailed),
		errors.Is(err, bridge.ErrConnectTimeout),
		errors.Is(err, bridge.ErrNotRunning),
		errors.Is(err, venue.ErrNotConnected):
		s.writeError(w, http.StatusServiceUnavailable, "venue unavailable")
	case errors.Is(err, bridge.ErrQueueFull):
		s.writeError(w, http.StatusServiceUnavailable, "bridge overloaded, retry later")
	case errors.Is(err, bridge.ErrAwaitTimeout):
		s.writeError(w, http.StatusGatewayTimeout, "venue call timed out")
	default:
		var opErr *bridge.OpError
		if errors.As(err, &opErr) {
			s.logger.Error("venue operation failed", "error", err)
			s.writeError(w, http.StatusBadGateway, "venue operation failed")
			return
		}
		s.logger.Error("unexpected bridge error", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
