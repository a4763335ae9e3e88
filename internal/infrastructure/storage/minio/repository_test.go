package minio

import (
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
)

func newTestStore(api MinIOAPI) ScreeningStore {
	return NewScreeningStore(newTestClient(api), logging.NewNopLogger())
}

func TestUpload_Success(t *testing.T) {
	var gotBucket, gotKey, gotContentType string
	var gotData []byte
	api := &fakeMinIOAPI{
		putObjectFunc: func(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
			gotBucket, gotKey = bucket, object
			gotContentType = opts.ContentType
			gotData, _ = io.ReadAll(reader)
			return minio.UploadInfo{Bucket: bucket, Key: object, Size: size, ETag: "abc"}, nil
		},
	}
	store := newTestStore(api)

	res, err := store.Upload(context.Background(), &UploadRequest{
		Bucket:      "moldock-ligands",
		ObjectKey:   "receptors/1hsg.pdbqt",
		Data:        []byte("ATOM      1  N   PRO A   1"),
		ContentType: "chemical/x-pdbqt",
	})
	require.NoError(t, err)
	assert.Equal(t, "moldock-ligands", gotBucket)
	assert.Equal(t, "receptors/1hsg.pdbqt", gotKey)
	assert.Equal(t, "chemical/x-pdbqt", gotContentType)
	assert.Equal(t, "ATOM      1  N   PRO A   1", string(gotData))
	assert.Equal(t, "abc", res.ETag)
}

func TestUpload_DetectsContentType(t *testing.T) {
	var gotContentType string
	api := &fakeMinIOAPI{
		putObjectFunc: func(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
			gotContentType = opts.ContentType
			return minio.UploadInfo{Bucket: bucket, Key: object}, nil
		},
	}
	store := newTestStore(api)

	_, err := store.Upload(context.Background(), &UploadRequest{
		Bucket:    "moldock-results",
		ObjectKey: "jobs/j1/log.csv",
		Data:      []byte("ligand,conf,energy\n"),
	})
	require.NoError(t, err)
	assert.Contains(t, gotContentType, "text/plain")
}

func TestUpload_InvalidRequest(t *testing.T) {
	store := newTestStore(&fakeMinIOAPI{})
	_, err := store.Upload(context.Background(), &UploadRequest{ObjectKey: "k"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = store.Upload(context.Background(), &UploadRequest{Bucket: "b"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUploadSliceResult_KeyLayout(t *testing.T) {
	var gotBucket, gotKey string
	api := &fakeMinIOAPI{
		putObjectFunc: func(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
			gotBucket, gotKey = bucket, object
			return minio.UploadInfo{Bucket: bucket, Key: object}, nil
		},
	}
	store := newTestStore(api)

	key, err := store.UploadSliceResult(context.Background(), "job-1", 7, []byte("rows"))
	require.NoError(t, err)
	assert.Equal(t, "jobs/job-1/slices/0007.csv", key)
	assert.Equal(t, "moldock-results", gotBucket)
	assert.Equal(t, key, gotKey)
}

func TestUploadResult_KeyLayout(t *testing.T) {
	api := &fakeMinIOAPI{}
	store := newTestStore(api)

	key, err := store.UploadResult(context.Background(), "job-1", []byte("rows"))
	require.NoError(t, err)
	assert.Equal(t, "jobs/job-1/log.csv", key)
}

func TestListSliceResults_OrderedKeys(t *testing.T) {
	var gotPrefix string
	api := &fakeMinIOAPI{
		listObjectsFunc: func(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
			gotPrefix = opts.Prefix
			ch := make(chan minio.ObjectInfo, 3)
			ch <- minio.ObjectInfo{Key: "jobs/job-1/slices/0000.csv"}
			ch <- minio.ObjectInfo{Key: "jobs/job-1/slices/0001.csv"}
			ch <- minio.ObjectInfo{Key: "jobs/job-1/slices/0002.csv"}
			close(ch)
			return ch
		},
	}
	store := newTestStore(api)

	keys, err := store.ListSliceResults(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "jobs/job-1/slices/", gotPrefix)
	assert.Equal(t, []string{
		"jobs/job-1/slices/0000.csv",
		"jobs/job-1/slices/0001.csv",
		"jobs/job-1/slices/0002.csv",
	}, keys)
}

func TestExists(t *testing.T) {
	api := &fakeMinIOAPI{
		statObjectFunc: func(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
			if object == "receptors/1hsg.pdbqt" {
				return minio.ObjectInfo{Key: object}, nil
			}
			return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}
		},
	}
	store := newTestStore(api)

	ok, err := store.Exists(context.Background(), "moldock-ligands", "receptors/1hsg.pdbqt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(context.Background(), "moldock-ligands", "receptors/missing.pdbqt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInputExists_UsesLigandBucket(t *testing.T) {
	var seenBucket string
	api := &fakeMinIOAPI{
		statObjectFunc: func(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
			seenBucket = bucket
			return minio.ObjectInfo{Key: object}, nil
		},
	}
	store := newTestStore(api)

	ok, err := store.InputExists(context.Background(), "libraries/zinc-10k.pdbqt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "moldock-ligands", seenBucket)
}

func TestGetMetadata_NotFound(t *testing.T) {
	api := &fakeMinIOAPI{
		statObjectFunc: func(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
			return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}
		},
	}
	store := newTestStore(api)

	_, err := store.GetMetadata(context.Background(), "moldock-ligands", "gone")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestList_RespectsMaxKeys(t *testing.T) {
	api := &fakeMinIOAPI{
		listObjectsFunc: func(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
			ch := make(chan minio.ObjectInfo, 5)
			for _, k := range []string{"a", "b", "c", "d", "e"} {
				ch <- minio.ObjectInfo{Key: k}
			}
			close(ch)
			return ch
		},
	}
	store := newTestStore(api)

	res, err := store.List(context.Background(), "moldock-ligands", "", &ListOptions{MaxKeys: 3, Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Len(t, res.Objects, 3)
}

func TestDeleteBatch_ReportsFailures(t *testing.T) {
	api := &fakeMinIOAPI{
		removeObjectsFunc: func(ctx context.Context, bucket string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError {
			out := make(chan minio.RemoveObjectError, 1)
			go func() {
				defer close(out)
				for obj := range objectsCh {
					if obj.Key == "bad" {
						out <- minio.RemoveObjectError{ObjectName: obj.Key, Err: minio.ErrorResponse{Code: "AccessDenied"}}
					}
				}
			}()
			return out
		},
	}
	store := newTestStore(api)

	errs, err := store.DeleteBatch(context.Background(), "moldock-results", []string{"ok", "bad"})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "bad", errs[0].ObjectKey)
}

func TestTags_RoundTrip(t *testing.T) {
	var stored *tags.Tags
	api := &fakeMinIOAPI{
		putTaggingFunc: func(ctx context.Context, bucket, object string, ot *tags.Tags, opts minio.PutObjectTaggingOptions) error {
			stored = ot
			return nil
		},
		getTaggingFunc: func(ctx context.Context, bucket, object string, opts minio.GetObjectTaggingOptions) (*tags.Tags, error) {
			return stored, nil
		},
	}
	store := newTestStore(api)

	err := store.SetTags(context.Background(), "moldock-ligands", "libraries/zinc.pdbqt", map[string]string{"source": "zinc"})
	require.NoError(t, err)

	got, err := store.GetTags(context.Background(), "moldock-ligands", "libraries/zinc.pdbqt")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"source": "zinc"}, got)
}

func TestResultDownloadURL(t *testing.T) {
	store := newTestStore(&fakeMinIOAPI{})
	u, err := store.ResultDownloadURL(context.Background(), "jobs/job-1/log.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/moldock-results/jobs/job-1/log.csv", u)
}

func TestLibraryUploadURL(t *testing.T) {
	store := newTestStore(&fakeMinIOAPI{})
	u, err := store.LibraryUploadURL(context.Background(), "libraries/zinc.pdbqt", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/moldock-ligands/libraries/zinc.pdbqt", u)
}
