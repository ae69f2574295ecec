package storageutil

import (
	"context"
	"errors"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v4"
)

// ErrObjectNotFound indicates an object was not found.
var ErrObjectNotFound = errors.New("object not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	ReadSizeCloser interface {
		io.Reader
		io.Closer
		Size() int64
	}

	// ObjectHandler provides common interface for multiple storage providers.
	ObjectHandler interface {
		// Put writes a file to the storage provider with name being the path.
		Put(ctx context.Context, name string) (io.WriteCloser, error)
		// Get reads a file from the storage provider with name being the path.
		// If a key was not found, it will return ErrObjectNotFound.
		Get(ctx context.Context, name string) (ReadSizeCloser, error)
	}

	ReadJob interface {
		Read()
	}

	ReadJobResult interface {
		Error() error
	}
)

// Timeout bounds every single storage operation.
var Timeout = 5 * time.Second

// CompressedWrite compresses and writes data to the storage provider.
func CompressedWrite(ctx context.Context, b ObjectHandler, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	ow, err := b.Put(ctx, objectName)
	if err != nil {
		return err
	}
	zw := lz4.NewWriter(ow)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	err = json.NewEncoder(zw).Encode(d)
	if err != nil {
		return err
	}
	err = zw.Close()
	if err != nil {
		return err
	}
	return ow.Close()
}

// UnmarshalCompressed reads compressed JSON data from the storage provider
// and unmarshals it.
func UnmarshalCompressed(ctx context.Context, b ObjectHandler, objectName string, d interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	or, err := b.Get(ctx, objectName)
	if err != nil {
		return err
	}
	defer or.Close()
	return json.NewDecoder(lz4.NewReader(or)).Decode(d)
}

// ReadWorker runs jobs until the channel is closed.
func ReadWorker(jobs <-chan ReadJob) {
	for job := range jobs {
		job.Read()
	}
}
