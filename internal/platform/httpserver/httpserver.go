// Package httpserver builds the process HTTP server with the timeouts the
// registration API needs. Per-request deadlines live in middleware; the
// values here only bound header reads and idle keep-alives.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server ready for ListenAndServe. Shutdown is the caller's
// responsibility.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
