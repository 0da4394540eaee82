// Package catalog derives the set of content types present in an inventory and
// filters the inventory by an operator's selection.
package catalog

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ethangolledge/doc-query/internal/inventory"
	"github.com/ethangolledge/doc-query/internal/remote"
)

// DefaultProcessable lists the types processable when nothing is configured.
var DefaultProcessable = []string{"text/plain"}

// Policy is the allow-list of types that downstream processing supports.
type Policy struct {
	processable mapset.Set[string]
}

// NewPolicy returns a policy allowing types. Blank entries are ignored.
func NewPolicy(types ...string) Policy {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			set.Add(t)
		}
	}
	return Policy{processable: set}
}

// DefaultPolicy returns a policy allowing DefaultProcessable.
func DefaultPolicy() Policy {
	return NewPolicy(DefaultProcessable...)
}

// Allows reports whether mimeType is processable.
func (p Policy) Allows(mimeType string) bool {
	return p.processable != nil && p.processable.Contains(mimeType)
}

// Types returns the allowed types, sorted.
func (p Policy) Types() []string {
	if p.processable == nil {
		return nil
	}
	types := p.processable.ToSlice()
	sort.Strings(types)
	return types
}

// Partition splits requested into types the policy allows and types it does
// not. Both results are sorted and free of duplicates and blanks.
func (p Policy) Partition(requested []string) (compatible, incompatible []string) {
	seen := make(map[string]bool, len(requested))
	for _, t := range requested {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		if p.Allows(t) {
			compatible = append(compatible, t)
		} else {
			incompatible = append(incompatible, t)
		}
	}
	sort.Strings(compatible)
	sort.Strings(incompatible)
	return compatible, incompatible
}

// DistinctTypes returns the sorted set of content types in inv, excluding the
// folder sentinel.
func DistinctTypes(inv *inventory.Inventory) []string {
	if inv == nil {
		return nil
	}
	set := mapset.NewThreadUnsafeSet[string]()
	for _, f := range inv.Files {
		if f.MimeType != "" && f.MimeType != remote.FolderMimeType {
			set.Add(f.MimeType)
		}
	}
	types := set.ToSlice()
	sort.Strings(types)
	return types
}

// Filter returns the records of inv whose type is one of types, in inventory
// order.
func Filter(inv *inventory.Inventory, types []string) []*inventory.FileRecord {
	if inv == nil || len(types) == 0 {
		return nil
	}
	var out []*inventory.FileRecord
	for _, f := range inv.Files {
		if slices.Contains(types, f.MimeType) {
			out = append(out, f)
		}
	}
	return out
}

// TypeSummary aggregates the files of one type.
type TypeSummary struct {
	MimeType   string
	Count      int
	TotalBytes int64
}

// Summarize groups files by type. Unknown sizes count as zero bytes.
func Summarize(files []*inventory.FileRecord) []TypeSummary {
	byType := make(map[string]*TypeSummary)
	for _, f := range files {
		s, ok := byType[f.MimeType]
		if !ok {
			s = &TypeSummary{MimeType: f.MimeType}
			byType[f.MimeType] = s
		}
		s.Count++
		if f.Size > 0 {
			s.TotalBytes += f.Size
		}
	}

	out := make([]TypeSummary, 0, len(byType))
	for _, s := range byType {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MimeType < out[j].MimeType })
	return out
}

// WriteTypes writes one type per line.
func WriteTypes(w io.Writer, types []string) error {
	bw := bufio.NewWriter(w)
	for _, t := range types {
		if _, err := fmt.Fprintln(bw, t); err != nil {
			return fmt.Errorf("write types: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write types: %w", err)
	}
	return nil
}
