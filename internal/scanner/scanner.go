// Package scanner walks a remote folder tree and builds a flat inventory of
// the files in it.
//
// The walk is depth-first and strictly sequential: one listing call at a
// time, a sub-folder is fully walked before the rest of its parent's page.
// Pending folders live on an explicit stack, so deep trees do not grow the
// goroutine stack. Listing failures are logged and the affected folder is
// treated as having no further children.
package scanner

import (
	"context"

	"go.uber.org/zap"

	"github.com/ethangolledge/doc-query/internal/inventory"
	"github.com/ethangolledge/doc-query/internal/remote"
)

// Options configures a Scanner.
type Options struct {
	// MaxDepth limits how many folder levels below the root are walked.
	// Zero means unlimited.
	MaxDepth int

	// Logger receives scan progress and listing failures.
	// Default: no-op
	Logger *zap.Logger
}

// Scanner builds inventories from a remote.Lister.
type Scanner struct {
	lister remote.Lister
	opts   Options
	log    *zap.Logger
}

// New creates a Scanner.
func New(lister remote.Lister, opts Options) *Scanner {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{lister: lister, opts: opts, log: log}
}

// frame is one folder being paged through.
type frame struct {
	folderID string
	depth    int
	entries  []remote.Entry
	pos      int
	next     string
	listed   bool
}

// exhausted reports whether every page of the folder has been consumed.
func (f *frame) exhausted() bool {
	return f.listed && f.pos >= len(f.entries) && f.next == ""
}

// Scan walks the tree below rootID. The returned inventory contains files
// only, each with RemotePath resolved. The error is non-nil only when ctx is
// cancelled; the partial inventory is returned alongside it.
func (s *Scanner) Scan(ctx context.Context, rootID string) (*inventory.Inventory, error) {
	inv := inventory.New(rootID)
	visited := map[string]bool{rootID: true}
	stack := []frame{{folderID: rootID}}

	s.log.Info("scan started", zap.String("root", rootID))

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			inv.ResolvePaths()
			return inv, err
		}

		top := &stack[len(stack)-1]

		if top.exhausted() {
			stack = stack[:len(stack)-1]
			continue
		}

		if top.pos >= len(top.entries) {
			page, err := s.lister.List(ctx, top.folderID, top.next)
			if err != nil {
				s.log.Warn("list folder failed",
					zap.String("folder", top.folderID),
					zap.Error(err),
				)
				stack = stack[:len(stack)-1]
				continue
			}
			top.entries = page.Entries
			top.pos = 0
			top.next = page.NextPageToken
			top.listed = true
			continue
		}

		e := top.entries[top.pos]
		top.pos++

		if e.IsFolder() {
			if visited[e.ID] {
				s.log.Warn("folder already visited, skipping",
					zap.String("folder", e.ID),
					zap.String("name", e.Name),
				)
				continue
			}
			visited[e.ID] = true
			inv.Folders.Add(e.ID, e.Name, e.FirstParent())

			depth := top.depth + 1
			if s.opts.MaxDepth > 0 && depth > s.opts.MaxDepth {
				s.log.Warn("max depth reached, not descending",
					zap.String("folder", e.ID),
					zap.Int("depth", depth),
				)
				continue
			}
			// top is invalid after this append
			stack = append(stack, frame{folderID: e.ID, depth: depth})
			continue
		}

		if e.MimeType == "" {
			continue
		}
		inv.Add(inventory.NewFileRecord(e))
	}

	inv.ResolvePaths()

	s.log.Info("scan complete",
		zap.Int("files", inv.Len()),
		zap.Int("folders", inv.Folders.Len()),
	)
	return inv, nil
}
