// Package testutils provides shared test infrastructure: an in-memory folder
// tree implementing the remote contract, an HTTP server that serves it with
// the Drive REST shape, and (under the integration tag) a Minio container.
package testutils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/ethangolledge/doc-query/internal/remote"
)

// Tree is an in-memory folder tree. It implements remote.Lister and
// remote.Opener and is safe for concurrent use.
type Tree struct {
	RootID string

	// PageSize bounds the entries per List call. Zero means one page.
	PageSize int

	mu        sync.Mutex
	entries   map[string]remote.Entry
	children  map[string][]string
	content   map[string][]byte
	listErr   map[string]error
	pageErr   map[string]pageFailure
	openErr   map[string][]error
	listCalls map[string]int
	openCalls map[string]int
}

// NewTree returns an empty tree rooted at rootID.
func NewTree(rootID string) *Tree {
	return &Tree{
		RootID:    rootID,
		entries:   make(map[string]remote.Entry),
		children:  make(map[string][]string),
		content:   make(map[string][]byte),
		listErr:   make(map[string]error),
		pageErr:   make(map[string]pageFailure),
		openErr:   make(map[string][]error),
		listCalls: make(map[string]int),
		openCalls: make(map[string]int),
	}
}

// Folder adds a folder named name under parentID.
func (t *Tree) Folder(id, name, parentID string) *Tree {
	return t.add(remote.Entry{
		ID:       id,
		Name:     name,
		MimeType: remote.FolderMimeType,
		Size:     remote.UnknownSize,
		Parents:  []string{parentID},
	})
}

// File adds a file with the given content under parentID.
func (t *Tree) File(id, name, mimeType, parentID string, content []byte) *Tree {
	t.add(remote.Entry{
		ID:       id,
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(content)),
		Parents:  []string{parentID},
		Owners:   []remote.Owner{{DisplayName: "Owner", EmailAddress: "owner@example.com"}},
	})
	t.mu.Lock()
	t.content[id] = content
	t.mu.Unlock()
	return t
}

// Link lists an existing entry under an additional folder without changing
// its parents, which lets tests build cycles.
func (t *Tree) Link(id, folderID string) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.children[folderID] = append(t.children[folderID], id)
	return t
}

// FailList makes every List call for folderID fail with err.
func (t *Tree) FailList(folderID string, err error) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listErr[folderID] = err
	return t
}

type pageFailure struct {
	after int
	err   error
}

// FailListAfter lets the first pages List calls for folderID succeed and
// fails every later one with err.
func (t *Tree) FailListAfter(folderID string, pages int, err error) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageErr[folderID] = pageFailure{after: pages, err: err}
	return t
}

// FailOpen makes the next len(errs) Open calls for fileID fail in order.
func (t *Tree) FailOpen(fileID string, errs ...error) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openErr[fileID] = append(t.openErr[fileID], errs...)
	return t
}

// ListCalls returns how many times folderID was listed.
func (t *Tree) ListCalls(folderID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listCalls[folderID]
}

// OpenCalls returns how many times fileID was opened.
func (t *Tree) OpenCalls(fileID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openCalls[fileID]
}

// TotalOpenCalls returns the number of Open calls across all files.
func (t *Tree) TotalOpenCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.openCalls {
		n += c
	}
	return n
}

// Content returns the bytes stored for fileID.
func (t *Tree) Content(fileID string) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.content[fileID]
}

func (t *Tree) add(e remote.Entry) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[e.ID] = e
	parent := e.FirstParent()
	t.children[parent] = append(t.children[parent], e.ID)
	return t
}

// List implements remote.Lister. Page tokens are decimal offsets.
func (t *Tree) List(ctx context.Context, folderID, pageToken string) (*remote.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.listCalls[folderID]++
	if err := t.listErr[folderID]; err != nil {
		return nil, err
	}
	if f, ok := t.pageErr[folderID]; ok && t.listCalls[folderID] > f.after {
		return nil, f.err
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}

	ids := t.children[folderID]
	end := len(ids)
	if t.PageSize > 0 && offset+t.PageSize < end {
		end = offset + t.PageSize
	}
	if offset > end {
		offset = end
	}

	page := &remote.Page{}
	for _, id := range ids[offset:end] {
		page.Entries = append(page.Entries, t.entries[id])
	}
	if end < len(ids) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// Open implements remote.Opener.
func (t *Tree) Open(ctx context.Context, fileID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.openCalls[fileID]++
	if errs := t.openErr[fileID]; len(errs) > 0 {
		t.openErr[fileID] = errs[1:]
		return nil, errs[0]
	}

	data, ok := t.content[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
