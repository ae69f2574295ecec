package storageprovider

import (
	"context"
	"io"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/getsentry/flamegraph/internal/storageutil"

	// registered URL schemes
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
)

// Blob implements storageutil.ObjectHandler on top of any portable bucket,
// local directories included.
type Blob struct {
	Bucket *blob.Bucket
}

// OpenBlob opens the bucket at url, "gs://bucket" or "file:///path" for
// instance.
func OpenBlob(ctx context.Context, url string) (*Blob, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Blob{Bucket: b}, nil
}

func (b *Blob) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return b.Bucket.NewWriter(ctx, name, nil)
}

func (b *Blob) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	r, err := b.Bucket.NewReader(ctx, name, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, storageutil.ErrObjectNotFound
		}
		return nil, err
	}
	return r, nil
}

func (b *Blob) Close() error {
	return b.Bucket.Close()
}
