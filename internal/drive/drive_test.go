package drive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	drivehttp "github.com/ethangolledge/doc-query/internal/http"
	"github.com/ethangolledge/doc-query/internal/remote"
	"github.com/ethangolledge/doc-query/internal/testutils"
)

func testHTTPOptions() drivehttp.Options {
	opts := drivehttp.DefaultOptions()
	opts.RetryAttempts = 1
	opts.RetryBackoff = 10 * time.Millisecond
	opts.RetryMaxBackoff = 20 * time.Millisecond
	return opts
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestListPaginates(t *testing.T) {
	tree := testutils.NewTree("root").
		Folder("sub", "Sub", "root").
		File("a", "a.txt", "text/plain", "root", []byte("aaa")).
		File("b", "b.pdf", "application/pdf", "root", []byte("bbbb"))
	tree.PageSize = 2

	server := testutils.StartDriveServer(t, tree, "secret")
	defer server.Close()

	client, err := New(context.Background(), Options{BaseURL: server.URL, APIKey: "secret", HTTP: testHTTPOptions()})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := client.List(ctx, "root", "")
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	require.NotEmpty(t, first.NextPageToken)

	assert.Equal(t, "sub", first.Entries[0].ID)
	assert.True(t, first.Entries[0].IsFolder())
	assert.Equal(t, remote.UnknownSize, first.Entries[0].Size)
	assert.Equal(t, int64(3), first.Entries[1].Size)
	assert.Equal(t, []string{"root"}, first.Entries[1].Parents)
	require.Len(t, first.Entries[1].Owners, 1)
	assert.Equal(t, "owner@example.com", first.Entries[1].Owners[0].EmailAddress)

	second, err := client.List(ctx, "root", first.NextPageToken)
	require.NoError(t, err)
	require.Len(t, second.Entries, 1)
	assert.Equal(t, "b", second.Entries[0].ID)
	assert.Empty(t, second.NextPageToken)
}

func TestListSendsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, `'it\'s' in parents and trashed=false`, q.Get("q"))
		assert.Equal(t, "1000", q.Get("pageSize"))
		assert.Equal(t, "tok", q.Get("pageToken"))
		assert.Equal(t, string(listFields), q.Get("fields"))
		assert.Equal(t, "k", q.Get("key"))
		w.Write([]byte(`{"files":[{"id":"x","name":"x.txt","mimeType":"text/plain","size":"12","createdTime":"2024-01-02T03:04:05Z","webViewLink":"https://example/x"}]}`))
	}))
	defer server.Close()

	client, err := New(context.Background(), Options{BaseURL: server.URL, APIKey: "k", PageSize: 5000, HTTP: testHTTPOptions()})
	require.NoError(t, err)

	page, err := client.List(context.Background(), "it's", "tok")
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)

	e := page.Entries[0]
	assert.Equal(t, int64(12), e.Size)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), e.CreatedAt.UTC())
	assert.Equal(t, "https://example/x", e.WebViewLink)
}

func TestListForbidden(t *testing.T) {
	tree := testutils.NewTree("root").FailList("root", errors.New("The user does not have sufficient permissions"))
	server := testutils.StartDriveServer(t, tree, "")
	defer server.Close()

	client, err := New(context.Background(), Options{BaseURL: server.URL, APIKey: "k", HTTP: testHTTPOptions()})
	require.NoError(t, err)

	_, err = client.List(context.Background(), "root", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, drivehttp.ErrForbidden)
	assert.Contains(t, err.Error(), "sufficient permissions")
}

func TestOpen(t *testing.T) {
	tree := testutils.NewTree("root").File("f1", "f.bin", "application/octet-stream", "root", []byte("payload"))
	server := testutils.StartDriveServer(t, tree, "")
	defer server.Close()

	client, err := New(context.Background(), Options{BaseURL: server.URL, APIKey: "k", HTTP: testHTTPOptions()})
	require.NoError(t, err)

	body, err := client.Open(context.Background(), "f1")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestOpenNotFound(t *testing.T) {
	server := testutils.StartDriveServer(t, testutils.NewTree("root"), "")
	defer server.Close()

	client, err := New(context.Background(), Options{BaseURL: server.URL, APIKey: "k", HTTP: testHTTPOptions()})
	require.NoError(t, err)

	_, err = client.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, drivehttp.ErrNotFound)
}

func TestTokenSourceAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("key"))
		w.Write([]byte(`{"files":[]}`))
	}))
	defer server.Close()

	client, err := New(context.Background(), Options{
		BaseURL:     server.URL,
		APIKey:      "ignored",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-123"}),
		HTTP:        testHTTPOptions(),
	})
	require.NoError(t, err)

	page, err := client.List(context.Background(), "root", "")
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
}

func TestServiceAccountTokenSourceMissingFile(t *testing.T) {
	_, err := ServiceAccountTokenSource(context.Background(), "/nonexistent/sa.json")
	assert.Error(t, err)
}

func TestTransportErrorsOmitAPIKey(t *testing.T) {
	const key = "SECRET-KEY-123"
	client, err := New(context.Background(), Options{BaseURL: "http://127.0.0.1:1", APIKey: key, HTTP: testHTTPOptions()})
	require.NoError(t, err)

	_, err = client.Open(context.Background(), "x")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), key)

	_, err = client.List(context.Background(), "root", "")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), key)
}

func TestNativeDocumentSizeUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"files":[{"id":"d","name":"Notes","mimeType":"application/vnd.google-apps.document"},{"id":"e","name":"empty.txt","mimeType":"text/plain","size":"0"}]}`))
	}))
	defer server.Close()

	client, err := New(context.Background(), Options{BaseURL: server.URL, APIKey: "k", HTTP: testHTTPOptions()})
	require.NoError(t, err)

	page, err := client.List(context.Background(), "root", "")
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, remote.UnknownSize, page.Entries[0].Size)
	assert.Equal(t, int64(0), page.Entries[1].Size)
}
