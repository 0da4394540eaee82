package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Dir writes objects into a local directory tree.
type Dir struct {
	root string
}

// NewDir creates root if needed and checks it is writable.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Join(ErrUnwritable, err)
	}
	probe, err := os.CreateTemp(root, ".probe-*")
	if err != nil {
		return nil, errors.Join(ErrUnwritable, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &Dir{root: root}, nil
}

// tempPattern names in-flight files, independent of the final name length.
const tempPattern = ".drivefetch-*.part"

// Root returns the directory objects are written under.
func (d *Dir) Root() string { return d.root }

// Create opens a temporary file in root/dir that is renamed to name on
// Commit. The final path is replaced if it already exists.
func (d *Dir) Create(ctx context.Context, dir, name string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parent := filepath.Join(d.root, dir)
	// MkdirAll succeeds when another worker created the directory first
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", parent, err)
	}

	tmp, err := os.CreateTemp(parent, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return &fileObject{tmp: tmp, final: filepath.Join(parent, name)}, nil
}

// Close is a no-op.
func (d *Dir) Close() error { return nil }

func (d *Dir) String() string { return d.root }

type fileObject struct {
	tmp   *os.File
	final string
}

func (o *fileObject) Write(p []byte) (int, error) {
	return o.tmp.Write(p)
}

func (o *fileObject) Commit() error {
	if err := o.tmp.Close(); err != nil {
		os.Remove(o.tmp.Name())
		return fmt.Errorf("close %s: %w", o.final, err)
	}
	if err := os.Rename(o.tmp.Name(), o.final); err != nil {
		os.Remove(o.tmp.Name())
		return fmt.Errorf("rename to %s: %w", o.final, err)
	}
	return nil
}

func (o *fileObject) Abort() {
	o.tmp.Close()
	os.Remove(o.tmp.Name())
}

func (o *fileObject) Location() string { return o.final }
