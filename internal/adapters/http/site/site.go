// Package site serves the embedded landing page.
package site

import (
	"context"
	"embed"
	"net/http"
)

//go:embed static/index.html
var static embed.FS

// Register attaches the landing page to the root of mux. Only the exact
// root path is served; everything else falls through to other routes.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "static/index.html")
	})
}
