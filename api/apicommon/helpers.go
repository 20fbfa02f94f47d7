// Package apicommon provides common types and helper functions for the API.
package apicommon

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vocdoni/flatauth/errors"
	"go.vocdoni.io/dvote/log"
)

const (
	// ContentTypeJSON is the media type of JSON requests and responses.
	ContentTypeJSON = "application/json"
	// ContentTypeHTML is the media type of pages and alert responses.
	ContentTypeHTML = "text/html; charset=utf-8"
	// ContentTypeMultipart is the media type of multipart form requests.
	ContentTypeMultipart = "multipart/form-data"
)

// HTTPWriteJSON helper function allows to write a JSON response.
func HTTPWriteJSON(w http.ResponseWriter, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		errors.ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// HTTPWriteOK helper function allows to write an OK response.
func HTTPWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// HTTPWriteAlert writes an HTML response that shows msg in a browser alert
// and then either goes back in the history, if location is empty, or
// navigates to location.
func HTTPWriteAlert(w http.ResponseWriter, msg, location string) {
	next := "window.history.back();"
	if location != "" {
		next = fmt.Sprintf("window.location.href=%s;", jsString(location))
	}
	w.Header().Set("Content-Type", ContentTypeHTML)
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, "<script>alert(%s); %s</script>", jsString(msg), next); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// jsString quotes s as a JavaScript string literal that is safe inside a
// script element.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
