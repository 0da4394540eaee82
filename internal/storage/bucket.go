package storage

import (
	"context"
	"fmt"
	"path"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Bucket writes objects into a gocloud blob bucket.
type Bucket struct {
	bucket *blob.Bucket
	url    string
}

// NewBucket wraps an open bucket. The Bucket takes ownership of b.
func NewBucket(b *blob.Bucket, url string) *Bucket {
	return &Bucket{bucket: b, url: url}
}

// Create starts writing the object dir/name.
func (b *Bucket) Create(ctx context.Context, dir, name string) (Object, error) {
	key := path.Join(dir, name)

	// cancelling the writer's context discards the upload on Close
	wctx, cancel := context.WithCancel(ctx)
	w, err := b.bucket.NewWriter(wctx, key, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create object %s (%s): %w", key, gcerrors.Code(err), err)
	}
	return &blobObject{w: w, cancel: cancel, key: key}, nil
}

// Close closes the underlying bucket.
func (b *Bucket) Close() error {
	return b.bucket.Close()
}

func (b *Bucket) String() string { return b.url }

type blobObject struct {
	w      *blob.Writer
	cancel context.CancelFunc
	key    string
}

func (o *blobObject) Write(p []byte) (int, error) {
	return o.w.Write(p)
}

func (o *blobObject) Commit() error {
	defer o.cancel()
	if err := o.w.Close(); err != nil {
		return fmt.Errorf("commit object %s (%s): %w", o.key, gcerrors.Code(err), err)
	}
	return nil
}

func (o *blobObject) Abort() {
	o.cancel()
	o.w.Close()
}

func (o *blobObject) Location() string { return o.key }
