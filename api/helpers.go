package api

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/vocdoni/flatauth/api/apicommon"
)

// maxFormMemory bounds the part of a multipart body kept in memory.
const maxFormMemory = 1 << 20

// mediaType returns the media type of the request body, or an empty string if
// the Content-Type header is missing or invalid.
func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// isJSONRequest reports whether the request body is a JSON document. Such
// requests get JSON responses instead of pages.
func isJSONRequest(r *http.Request) bool {
	return mediaType(r) == apicommon.ContentTypeJSON
}

// userInfoFromRequest reads the id and password fields of the request, sent
// either as a JSON object, an urlencoded form or a multipart form. Missing
// fields are returned empty.
func userInfoFromRequest(r *http.Request) (*apicommon.UserInfo, error) {
	info := &apicommon.UserInfo{}
	switch mediaType(r) {
	case apicommon.ContentTypeJSON:
		if err := json.NewDecoder(r.Body).Decode(info); err != nil {
			return nil, err
		}
		return info, nil
	case apicommon.ContentTypeMultipart:
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, err
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
	}
	info.ID = r.PostFormValue("id")
	info.Password = r.PostFormValue("password")
	return info, nil
}
