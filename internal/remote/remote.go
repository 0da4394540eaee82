// Package remote defines the contract between the tree scanner and the
// executor on one side and a paginated folder store on the other.
//
// A Lister returns the children of one folder a page at a time. Callers must
// keep calling List with the returned NextPageToken until it comes back empty.
// Folder entries are recognised by the FolderMimeType sentinel.
package remote

import (
	"context"
	"io"
	"time"
)

// FolderMimeType marks an entry that is itself a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// UnknownSize is reported for entries without a byte size, such as folders
// and native workspace documents.
const UnknownSize int64 = -1

// Owner identifies an owner of a remote entry.
type Owner struct {
	DisplayName  string
	EmailAddress string
}

// Entry is one child returned by a folder listing.
type Entry struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Owners      []Owner
	Parents     []string
	WebViewLink string
}

// IsFolder reports whether the entry is a folder.
func (e Entry) IsFolder() bool {
	return e.MimeType == FolderMimeType
}

// FirstParent returns the primary parent id, or "" if the entry has none.
func (e Entry) FirstParent() string {
	if len(e.Parents) == 0 {
		return ""
	}
	return e.Parents[0]
}

// Page is one page of a folder listing.
type Page struct {
	Entries       []Entry
	NextPageToken string
}

// Lister lists the children of a folder page by page.
type Lister interface {
	// List returns the page of children of folderID identified by pageToken.
	// An empty pageToken requests the first page.
	List(ctx context.Context, folderID, pageToken string) (*Page, error)
}

// Opener opens the raw byte stream of a remote file.
type Opener interface {
	Open(ctx context.Context, fileID string) (io.ReadCloser, error)
}
