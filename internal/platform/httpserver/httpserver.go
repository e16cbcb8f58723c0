// Package httpserver builds the registrar's HTTP listeners.
package httpserver

import (
	"net/http"
	"time"
)

// New builds a server tuned for the registrar's small-JSON request/response
// traffic. Writes are bounded so a stalled client cannot pin a handler, and
// kept-alive connections are recycled after a minute idle.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
		MaxHeaderBytes:    1 << 16,
	}
}
