package inventory

import "strings"

// FolderIndex maps folder ids to their names and primary parents. It is built
// during one scan and used afterwards to rebuild remote paths without going
// back to the service.
type FolderIndex struct {
	names   map[string]string
	parents map[string]string
}

// NewFolderIndex returns an empty index.
func NewFolderIndex() *FolderIndex {
	return &FolderIndex{
		names:   make(map[string]string),
		parents: make(map[string]string),
	}
}

// Add records a folder. parentID may be empty.
func (fi *FolderIndex) Add(id, name, parentID string) {
	fi.names[id] = name
	fi.parents[id] = parentID
}

// Has reports whether id has been indexed.
func (fi *FolderIndex) Has(id string) bool {
	_, ok := fi.names[id]
	return ok
}

// Len returns the number of indexed folders.
func (fi *FolderIndex) Len() int {
	return len(fi.names)
}

// Path builds the slash-joined path of an item named name whose primary
// parent is parentID. Walking stops at rootID, at an empty parent, or at an
// unindexed parent, which contributes UnknownFolder. The root's own name is
// never part of the path.
func (fi *FolderIndex) Path(rootID, name, parentID string) string {
	parts := []string{name}
	seen := make(map[string]bool)

	for parentID != "" && parentID != rootID {
		if seen[parentID] {
			break
		}
		seen[parentID] = true

		folder, ok := fi.names[parentID]
		if !ok {
			parts = append(parts, UnknownFolder)
			break
		}
		parts = append(parts, folder)
		parentID = fi.parents[parentID]
	}

	// parts were collected leaf first
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}
