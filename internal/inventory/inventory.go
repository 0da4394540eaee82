// Package inventory holds the flat file inventory produced by a tree scan.
package inventory

import (
	"strings"
	"time"

	"github.com/ethangolledge/doc-query/internal/remote"
)

// UnknownFolder stands in for an ancestor that was never indexed.
const UnknownFolder = "UNKNOWN"

// FileRecord is one remote file discovered by a scan.
type FileRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	Owners      string    `json:"owners,omitempty"`
	Parents     []string  `json:"parents,omitempty"`
	WebViewLink string    `json:"web_view_link,omitempty"`

	// RemotePath is the slash-joined name chain from below the scan root
	// down to and including this file.
	RemotePath string `json:"remote_path"`

	// LocalPath is set once a download has written the file.
	LocalPath string `json:"local_path,omitempty"`
}

// NewFileRecord copies listing metadata into a record. Owner emails are joined
// into one display string.
func NewFileRecord(e remote.Entry) *FileRecord {
	owners := make([]string, 0, len(e.Owners))
	for _, o := range e.Owners {
		if o.EmailAddress != "" {
			owners = append(owners, o.EmailAddress)
		}
	}
	var parents []string
	if len(e.Parents) > 0 {
		parents = append(parents, e.Parents...)
	}
	return &FileRecord{
		ID:          e.ID,
		Name:        e.Name,
		MimeType:    e.MimeType,
		Size:        e.Size,
		CreatedAt:   e.CreatedAt,
		ModifiedAt:  e.ModifiedAt,
		Owners:      strings.Join(owners, ", "),
		Parents:     parents,
		WebViewLink: e.WebViewLink,
	}
}

// FirstParent returns the primary parent id, or "".
func (r *FileRecord) FirstParent() string {
	if len(r.Parents) == 0 {
		return ""
	}
	return r.Parents[0]
}

// Inventory is the result of one scan: every file found under RootID, in
// discovery order. Folders are kept only in the index.
type Inventory struct {
	RootID  string
	Files   []*FileRecord
	Folders *FolderIndex
}

// New returns an empty inventory for a scan of rootID.
func New(rootID string) *Inventory {
	return &Inventory{
		RootID:  rootID,
		Folders: NewFolderIndex(),
	}
}

// Len returns the number of files.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.Files)
}

// Add appends a file record.
func (inv *Inventory) Add(r *FileRecord) {
	inv.Files = append(inv.Files, r)
}

// ResolvePaths computes RemotePath for every file from the folder index.
func (inv *Inventory) ResolvePaths() {
	for _, f := range inv.Files {
		f.RemotePath = inv.Folders.Path(inv.RootID, f.Name, f.FirstParent())
	}
}
