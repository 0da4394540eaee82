// Package drive implements the remote listing contract on the Google Drive
// v3 API client.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	drivehttp "github.com/ethangolledge/doc-query/internal/http"
	"github.com/ethangolledge/doc-query/internal/remote"
)

const (
	// MaxPageSize is the largest page size files.list accepts.
	MaxPageSize = 1000

	// ReadonlyScope is the OAuth2 scope needed for listing and downloading.
	ReadonlyScope = drivev3.DriveReadonlyScope

	// APIKeyHeader carries the API key. Keys stay out of request URLs, and so
	// out of transport error messages.
	APIKeyHeader = "X-Goog-Api-Key"

	listFields googleapi.Field = "nextPageToken, files(id, name, mimeType, size, createdTime, modifiedTime, parents, owners, webViewLink)"
)

// ErrNoCredentials is returned when neither an API key nor a token source is
// configured.
var ErrNoCredentials = errors.New("drive: no credentials configured")

// Options configures the Drive client.
type Options struct {
	// BaseURL overrides the API endpoint.
	// Default: the library's Drive v3 endpoint
	BaseURL string

	// APIKey authenticates requests with the X-Goog-Api-Key header.
	APIKey string

	// TokenSource authenticates requests with OAuth2 bearer tokens.
	// Takes precedence over APIKey.
	TokenSource oauth2.TokenSource

	// PageSize is the listing page size, capped at MaxPageSize.
	// Default: MaxPageSize
	PageSize int

	// HTTP configures the underlying client.
	HTTP drivehttp.Options
}

// Client lists folders and streams files from Drive.
type Client struct {
	svc      *drivev3.Service
	pageSize int64
}

var (
	_ remote.Lister = (*Client)(nil)
	_ remote.Opener = (*Client)(nil)
)

// New creates a Drive client. Requests go through the retrying transport of
// internal/http.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.TokenSource == nil && opts.APIKey == "" {
		return nil, ErrNoCredentials
	}
	if opts.PageSize <= 0 || opts.PageSize > MaxPageSize {
		opts.PageSize = MaxPageSize
	}
	if opts.HTTP.MaxIdleConnsPerHost == 0 {
		opts.HTTP = drivehttp.DefaultOptions()
	}

	if ts := opts.TokenSource; ts != nil {
		opts.HTTP.Wrap = func(base http.RoundTripper) http.RoundTripper {
			return &oauth2.Transport{Source: ts, Base: base}
		}
	} else {
		key := opts.APIKey
		opts.HTTP.Wrap = func(base http.RoundTripper) http.RoundTripper {
			return &apiKeyTransport{key: key, base: base}
		}
	}

	svcOpts := []option.ClientOption{
		option.WithHTTPClient(drivehttp.NewClient(opts.HTTP).HTTPClient()),
	}
	if opts.BaseURL != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(strings.TrimRight(opts.BaseURL, "/")+"/"))
	}

	svc, err := drivev3.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Client{svc: svc, pageSize: int64(opts.PageSize)}, nil
}

// ServiceAccountTokenSource reads a service account key file and returns a
// read-only token source for it.
func ServiceAccountTokenSource(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, ReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account file: %w", err)
	}
	return creds.TokenSource, nil
}

// List returns one page of the non-trashed children of folderID.
func (c *Client) List(ctx context.Context, folderID, pageToken string) (*remote.Page, error) {
	call := c.svc.Files.List().
		Context(ctx).
		Q(fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))).
		Fields(listFields).
		PageSize(c.pageSize).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	fl, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, apiError(err))
	}

	page := &remote.Page{
		Entries:       make([]remote.Entry, 0, len(fl.Files)),
		NextPageToken: fl.NextPageToken,
	}
	for _, f := range fl.Files {
		page.Entries = append(page.Entries, entry(f))
	}
	return page, nil
}

// Open streams the content of fileID. The caller must close the reader.
func (c *Client) Open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := c.svc.Files.Get(fileID).
		Context(ctx).
		SupportsAllDrives(true).
		Download()
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", fileID, apiError(err))
	}
	return resp.Body, nil
}

func entry(f *drivev3.File) remote.Entry {
	// size is omitted for folders and native documents
	size := f.Size
	if f.MimeType == remote.FolderMimeType || strings.Contains(f.MimeType, "google-apps") {
		size = remote.UnknownSize
	}

	e := remote.Entry{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		Size:        size,
		CreatedAt:   parseTime(f.CreatedTime),
		ModifiedAt:  parseTime(f.ModifiedTime),
		Parents:     f.Parents,
		WebViewLink: f.WebViewLink,
	}
	for _, o := range f.Owners {
		if o != nil {
			e.Owners = append(e.Owners, remote.Owner{DisplayName: o.DisplayName, EmailAddress: o.EmailAddress})
		}
	}
	return e
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// apiError maps a googleapi.Error onto the internal/http sentinels.
func apiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return drivehttp.NewStatusError(gerr.Code, gerr.Message)
	}
	return err
}

// escapeQuery escapes a value for use inside a single-quoted Drive query
// string.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(APIKeyHeader, t.key)
	return t.base.RoundTrip(req)
}
