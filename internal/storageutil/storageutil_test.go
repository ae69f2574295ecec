package storageutil_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/dgraph-io/badger/v4"
	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/google/uuid"
	"github.com/phayes/freeport"
	"github.com/pierrec/lz4/v4"

	gojson "github.com/goccy/go-json"
	jsoniter "github.com/json-iterator/go"

	"github.com/getsentry/flamegraph/internal/frame"
	"github.com/getsentry/flamegraph/internal/sample"
	"github.com/getsentry/flamegraph/internal/storageprovider"
	"github.com/getsentry/flamegraph/internal/storageutil"
	"github.com/getsentry/flamegraph/internal/testutil"
)

const bucketName = "profiles"

var (
	gcsServer *fakestorage.Server
	blobDir   string
	badgerDB  *storageprovider.Badger
)

type Profile struct {
	Samples []int `json:"samples"`
	Frames  []int `json:"frames"`
}

func TestMain(m *testing.M) {
	port, err := freeport.GetFreePort()
	if err != nil {
		log.Fatalf("no free port found: %v", err)
	}
	publicHost := fmt.Sprintf("127.0.0.1:%d", port)
	gcsServer, err = fakestorage.NewServerWithOptions(fakestorage.Options{
		PublicHost: publicHost,
		Host:       "127.0.0.1",
		Port:       uint16(port),
		Scheme:     "http",
	})
	if err != nil {
		log.Fatalf("couldn't set up gcs server: %v", err)
	}
	os.Setenv("STORAGE_EMULATOR_HOST", publicHost)
	gcsServer.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: bucketName})

	blobDir, err = os.MkdirTemp(os.TempDir(), "sentry-profiles-*")
	if err != nil {
		log.Fatalf("couldn't create a temporary directory: %s", err.Error())
	}

	badgerDB, err = storageprovider.OpenBadger("")
	if err != nil {
		log.Fatalf("couldn't open an in-memory badger store: %v", err)
	}

	code := m.Run()

	gcsServer.Stop()
	if err := badgerDB.Close(); err != nil {
		log.Printf("couldn't close the badger store: %s", err.Error())
	}
	if err := os.RemoveAll(blobDir); err != nil {
		log.Printf("couldn't remove the temporary directory: %s", err.Error())
	}
	os.Exit(code)
}

func providers(t *testing.T) map[string]storageutil.ObjectHandler {
	t.Helper()
	ctx := context.Background()
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		t.Fatalf("we should be able to create a client: %v", err)
	}
	t.Cleanup(func() { storageClient.Close() })

	b, err := storageprovider.OpenBlob(ctx, "file://"+filepath.ToSlash(blobDir))
	if err != nil {
		t.Fatalf("couldn't open a local filesystem bucket: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	return map[string]storageutil.ObjectHandler{
		"GCS":    storageprovider.NewGcs(storageClient, bucketName),
		"Blob":   b,
		"Badger": badgerDB,
	}
}

func readRaw(t *testing.T, name, objectName string) []byte {
	t.Helper()
	switch name {
	case "GCS":
		object, err := gcsServer.GetObject(bucketName, objectName)
		if err != nil {
			t.Fatalf("we should be able to read the object: %v", err)
		}
		return object.Content
	case "Badger":
		var content []byte
		err := badgerDB.DB.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(objectName))
			if err != nil {
				return err
			}
			content, err = item.ValueCopy(nil)
			return err
		})
		if err != nil {
			t.Fatalf("we should be able to read the object: %v", err)
		}
		return content
	default:
		content, err := os.ReadFile(filepath.Join(blobDir, objectName))
		if err != nil {
			t.Fatalf("we should be able to read the object: %v", err)
		}
		return content
	}
}

func TestUploadProfile(t *testing.T) {
	ctx := context.Background()
	originalData := Profile{
		Samples: []int{1, 2, 3, 4},
		Frames:  []int{1, 2, 3, 4},
	}

	for name, handler := range providers(t) {
		t.Run(name, func(t *testing.T) {
			objectName := uuid.New().String()
			err := storageutil.CompressedWrite(ctx, handler, objectName, originalData)
			if err != nil {
				t.Fatalf("we should be able to write: %v", err)
			}
			r := lz4.NewReader(bytes.NewBuffer(readRaw(t, name, objectName)))
			uncompressedData, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("we should be able to uncompress the data: %v", err)
			}
			b, err := gojson.Marshal(originalData)
			if err != nil {
				t.Fatalf("we should be able to marshal this: %v", err)
			}
			if !bytes.Equal(b, bytes.TrimSpace(uncompressedData)) {
				t.Fatalf("data should be identical: %s %s", b, uncompressedData)
			}
		})
	}
}

func TestDownloadProfile(t *testing.T) {
	ctx := context.Background()
	originalData := []byte(`{"samples":[1,2,3,4],"frames":[1,2,3,4]}`)

	var compressedData bytes.Buffer
	w := lz4.NewWriter(&compressedData)
	_, _ = w.Write(originalData)
	if err := w.Close(); err != nil {
		t.Fatalf("we should be able to close the writer: %v", err)
	}

	for name, handler := range providers(t) {
		t.Run(name, func(t *testing.T) {
			objectName := uuid.New().String()
			switch name {
			case "GCS":
				gcsServer.CreateObject(fakestorage.Object{
					ObjectAttrs: fakestorage.ObjectAttrs{
						BucketName: bucketName,
						Name:       objectName,
					},
					Content: compressedData.Bytes(),
				})
			case "Badger":
				w, err := handler.Put(ctx, objectName)
				if err != nil {
					t.Fatalf("we should be able to write the object: %v", err)
				}
				_, _ = w.Write(compressedData.Bytes())
				if err := w.Close(); err != nil {
					t.Fatalf("we should be able to write the object: %v", err)
				}
			default:
				if err := os.WriteFile(filepath.Join(blobDir, objectName), compressedData.Bytes(), 0o600); err != nil {
					t.Fatalf("we should be able to write the object: %v", err)
				}
			}

			var profile Profile
			err := storageutil.UnmarshalCompressed(ctx, handler, objectName, &profile)
			if err != nil {
				t.Fatalf("we should be able to read the object: %v", err)
			}
			uncompressedData, err := gojson.Marshal(profile)
			if err != nil {
				t.Fatalf("we should be able to marshal back to JSON: %v", err)
			}
			if !bytes.Equal(originalData, uncompressedData) {
				t.Fatalf("data should be identical: %v %v", string(originalData), string(uncompressedData))
			}
		})
	}
}

func TestObjectNotFound(t *testing.T) {
	ctx := context.Background()
	for name, handler := range providers(t) {
		t.Run(name, func(t *testing.T) {
			var profile Profile
			err := storageutil.UnmarshalCompressed(ctx, handler, uuid.New().String(), &profile)
			if !errors.Is(err, storageutil.ErrObjectNotFound) {
				t.Fatalf("expected ErrObjectNotFound, got %v", err)
			}
		})
	}
}

func TestBatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	batch := testBatch(3, 10)
	for name, handler := range providers(t) {
		t.Run(name, func(t *testing.T) {
			objectName := uuid.New().String()
			if err := storageutil.CompressedWrite(ctx, handler, objectName, batch); err != nil {
				t.Fatalf("we should be able to write: %v", err)
			}
			var got sample.Batch
			if err := storageutil.UnmarshalCompressed(ctx, handler, objectName, &got); err != nil {
				t.Fatalf("we should be able to read the object: %v", err)
			}
			if diff := testutil.Diff(got, batch); diff != "" {
				t.Fatalf("Result mismatch: got - want +\n%s", diff)
			}
		})
	}
}

func testBatch(profiles, samples int) sample.Batch {
	b := sample.Batch{
		Shared: sample.Shared{
			Frames: []frame.Raw{
				{Name: "main", File: "main.py", Module: "main", Line: 1, IsApplication: &testutil.True},
				{Name: "handle", File: "app/handlers.py", Module: "app.handlers", Line: 42},
				{Name: "select", Path: "/usr/lib/python3.11/selectors.py", Module: "selectors", Line: 469},
			},
		},
	}
	for i := 0; i < profiles; i++ {
		p := sample.RawProfile{
			ProfileID:          uuid.New().String(),
			ProjectID:          1,
			Platform:           "python",
			SamplingIntervalNS: 10_000_000,
		}
		for j := 0; j < samples; j++ {
			p.Samples = append(p.Samples, sample.RawSample{Stack: []int{0, 1, j % 3}})
		}
		b.Profiles = append(b.Profiles, p)
	}
	return b
}

func BenchmarkGoJSON(b *testing.B) {
	b.ReportAllocs()
	data, err := gojson.Marshal(testBatch(10, 1000))
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < b.N; i++ {
		var result sample.Batch
		if err := gojson.Unmarshal(data, &result); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJsonIterator(b *testing.B) {
	b.ReportAllocs()
	data, err := jsoniter.Marshal(testBatch(10, 1000))
	if err != nil {
		b.Fatal(err)
	}
	for n := 0; n < b.N; n++ {
		var result sample.Batch
		if err := jsoniter.Unmarshal(data, &result); err != nil {
			b.Fatal(err)
		}
	}
}
