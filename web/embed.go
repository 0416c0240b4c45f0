// Package web embeds the chat page templates and static assets.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed templates static
var files embed.FS

// Templates returns the html/template sources rooted at templates/.
func Templates() fs.FS {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic("web: failed to create templates filesystem: " + err.Error())
	}
	return sub
}

// StaticHandler serves the embedded static/ directory. Mount it under a
// prefix with http.StripPrefix.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic("web: failed to create static filesystem: " + err.Error())
	}
	return http.FileServer(http.FS(sub))
}
