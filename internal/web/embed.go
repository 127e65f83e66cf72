// ABOUTME: Embeds HTML templates and static assets into the binary
// ABOUTME: Provides templateFS and the static file handler

package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html templates/partials/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// staticHandler serves the embedded static assets.
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
