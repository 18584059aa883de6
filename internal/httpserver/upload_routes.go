package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// UploadRoutes returns a sub-router mounted at /uploads that serves files
// written by the local object store. Only GET and HEAD are exposed.
func UploadRoutes(files http.Handler) chi.Router {
	r := chi.NewRouter()
	serve := func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if key == "" || strings.Contains(key, "..") {
			writeError(w, http.StatusBadRequest, "invalid path")
			return
		}
		r.URL.Path = "/" + key
		files.ServeHTTP(w, r)
	}
	r.Get("/*", serve)
	r.Head("/*", serve)
	return r
}
