package testutils

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

var parentsQuery = regexp.MustCompile(`^'(.*)' in parents and trashed=false$`)

// StartDriveServer serves tree with the Drive v3 REST shape: GET /files for
// listings and GET /files/{id}?alt=media for content. Listing and open
// failures configured on the tree are returned as 403 responses so the client
// does not retry them. If apiKey is non-empty every request must carry it in
// the X-Goog-Api-Key header; a key in the query string is rejected.
func StartDriveServer(t *testing.T, tree *Tree, apiKey string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Has("key") {
			writeError(w, http.StatusBadRequest, "API key must not be sent in the URL")
			return
		}
		if apiKey != "" && r.Header.Get("X-Goog-Api-Key") != apiKey {
			writeError(w, http.StatusUnauthorized, "API key not valid")
			return
		}

		switch {
		case r.URL.Path == "/files":
			m := parentsQuery.FindStringSubmatch(q.Get("q"))
			if m == nil {
				writeError(w, http.StatusBadRequest, "invalid query")
				return
			}
			folderID := strings.ReplaceAll(m[1], `\'`, `'`)

			page, err := tree.List(r.Context(), folderID, q.Get("pageToken"))
			if err != nil {
				writeError(w, http.StatusForbidden, err.Error())
				return
			}

			type owner struct {
				DisplayName  string `json:"displayName"`
				EmailAddress string `json:"emailAddress"`
			}
			type file struct {
				ID           string     `json:"id"`
				Name         string     `json:"name"`
				MimeType     string     `json:"mimeType"`
				Size         string     `json:"size,omitempty"`
				CreatedTime  *time.Time `json:"createdTime,omitempty"`
				ModifiedTime *time.Time `json:"modifiedTime,omitempty"`
				Parents      []string   `json:"parents,omitempty"`
				Owners       []owner    `json:"owners,omitempty"`
			}
			resp := struct {
				NextPageToken string `json:"nextPageToken,omitempty"`
				Files         []file `json:"files"`
			}{NextPageToken: page.NextPageToken, Files: []file{}}

			for _, e := range page.Entries {
				f := file{ID: e.ID, Name: e.Name, MimeType: e.MimeType, Parents: e.Parents}
				if e.Size >= 0 {
					f.Size = strconv.FormatInt(e.Size, 10)
				}
				if !e.CreatedAt.IsZero() {
					ts := e.CreatedAt
					f.CreatedTime = &ts
				}
				if !e.ModifiedAt.IsZero() {
					ts := e.ModifiedAt
					f.ModifiedTime = &ts
				}
				for _, o := range e.Owners {
					f.Owners = append(f.Owners, owner{DisplayName: o.DisplayName, EmailAddress: o.EmailAddress})
				}
				resp.Files = append(resp.Files, f)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)

		case strings.HasPrefix(r.URL.Path, "/files/"):
			if q.Get("alt") != "media" {
				writeError(w, http.StatusBadRequest, "only alt=media is supported")
				return
			}
			id := strings.TrimPrefix(r.URL.Path, "/files/")
			if tree.Content(id) == nil {
				writeError(w, http.StatusNotFound, "File not found: "+id+".")
				return
			}
			body, err := tree.Open(r.Context(), id)
			if err != nil {
				writeError(w, http.StatusForbidden, err.Error())
				return
			}
			defer body.Close()
			w.Header().Set("Content-Type", "application/octet-stream")
			io.Copy(w, body)

		default:
			http.NotFound(w, r)
		}
	}))
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": msg},
	})
}
