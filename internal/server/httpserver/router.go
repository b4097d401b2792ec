package httpserver

import (
	"net/http"

	"github.com/yndnr/docmesh-go/internal/telemetry/logger"
)

// NewRouter wraps the handler with the standard middleware chain:
// recover first so panics in later layers are caught, then request
// IDs, then access logging.
func NewRouter(h http.Handler, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.Default()
	}
	log = log.With("component", "http")

	wrapped := withAccessLog(log, h)
	wrapped = withRequestID(wrapped)
	wrapped = withRecover(log, wrapped)
	return wrapped
}
