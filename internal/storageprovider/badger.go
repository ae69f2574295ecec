package storageprovider

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/getsentry/flamegraph/internal/storageutil"
)

// Badger implements storageutil.ObjectHandler on top of an embedded key
// value store, for local development without a bucket.
type Badger struct {
	DB *badger.DB
}

// OpenBadger opens the store in dir, in memory if dir is empty.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger: log.Logger})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Badger{DB: db}, nil
}

// Put writes a file to the storage provider with name being the path. The
// object is only stored once the writer is closed.
func (b *Badger) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return &badgerWriter{
		db:   b.DB,
		b:    &bytes.Buffer{},
		name: name,
	}, nil
}

// Get reads a file from the storage provider with name being the path.
// If a key was not found, it will return ErrObjectNotFound.
func (b *Badger) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	var value []byte
	err := b.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(name))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storageutil.ErrObjectNotFound
		}
		return nil, err
	}
	return &badgerReader{Reader: bytes.NewReader(value)}, nil
}

func (b *Badger) Close() error {
	return b.DB.Close()
}

type badgerWriter struct {
	db   *badger.DB
	b    *bytes.Buffer
	name string
}

func (bw *badgerWriter) Write(p []byte) (int, error) {
	return bw.b.Write(p)
}

func (bw *badgerWriter) Close() error {
	return bw.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(bw.name), bw.b.Bytes())
	})
}

type badgerReader struct {
	*bytes.Reader
}

func (br *badgerReader) Close() error {
	return nil
}

// badgerLogger forwards badger's logs to zerolog, its informational logs
// are debug events here.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Str("component", "badger").Msgf(format, v...)
}

func (l badgerLogger) Warningf(format string, v ...interface{}) {
	l.logger.Warn().Str("component", "badger").Msgf(format, v...)
}

func (l badgerLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug().Str("component", "badger").Msgf(format, v...)
}

func (l badgerLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Str("component", "badger").Msgf(format, v...)
}
