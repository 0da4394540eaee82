// Package storage is the destination for downloaded file contents.
//
// A destination is either a local directory tree or a gocloud bucket URL
// (s3://, gs://, file://, mem://). Both mirror the same layout: one
// sub-directory per content type, one object per file name.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// ErrUnwritable is returned by Open when the destination cannot be written.
var ErrUnwritable = errors.New("storage: destination not writable")

// Object is a single file being written. Exactly one of Commit or Abort must
// be called.
type Object interface {
	io.Writer

	// Commit makes the written bytes visible at Location.
	Commit() error

	// Abort discards everything written so far.
	Abort()

	// Location is where the object lands once committed.
	Location() string
}

// Sink creates objects under a destination root. Implementations are safe
// for concurrent use.
type Sink interface {
	Create(ctx context.Context, dir, name string) (Object, error)
	Close() error
	String() string
}

// Open returns the sink for dest. A value with a URL scheme opens a gocloud
// bucket; anything else is a local directory, created if missing.
func Open(ctx context.Context, dest string) (Sink, error) {
	if IsBucketURL(dest) {
		b, err := blob.OpenBucket(ctx, dest)
		if err != nil {
			return nil, errors.Join(ErrUnwritable, err)
		}
		ok, err := b.IsAccessible(ctx)
		if err != nil || !ok {
			b.Close()
			return nil, errors.Join(ErrUnwritable, err)
		}
		return NewBucket(b, dest), nil
	}
	return NewDir(dest)
}

// IsBucketURL reports whether dest names a bucket rather than a directory.
func IsBucketURL(dest string) bool {
	scheme, _, ok := strings.Cut(dest, "://")
	return ok && scheme != "" && !strings.ContainsAny(scheme, `/\`)
}

// TypeDir is the directory name used for files of mimeType.
func TypeDir(mimeType string) string {
	return replaceSeparators(mimeType)
}

// SafeName makes a remote file name usable as a single path element.
func SafeName(name string) string {
	name = replaceSeparators(name)
	switch name {
	case "", ".", "..":
		return "_" + name
	}
	return name
}

func replaceSeparators(s string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(s)
}
