package api

import (
	"io/fs"
	"net/http"

	"github.com/vocdoni/flatauth/errors"
)

// pageHandler returns a handler that serves the page with the given name
// from the assets.
func (a *API) pageHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := fs.Stat(a.assets, name); err != nil {
			errors.ErrGenericInternalServerError.Withf("page %s: %v", name, err).Write(w)
			return
		}
		http.ServeFileFS(w, r, a.assets, name)
	}
}

// staticHandler serves the rest of the assets, such as stylesheets.
func (a *API) staticHandler() http.Handler {
	return http.FileServerFS(a.assets)
}
