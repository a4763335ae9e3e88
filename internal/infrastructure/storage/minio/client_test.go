package minio

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/minio/minio-go/v7/pkg/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolDock-Screen/internal/config"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
)

// fakeMinIOAPI implements MinIOAPI with overridable funcs.
type fakeMinIOAPI struct {
	listBucketsFunc   func(ctx context.Context) ([]minio.BucketInfo, error)
	bucketExistsFunc  func(ctx context.Context, bucket string) (bool, error)
	makeBucketFunc    func(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	setLifecycleFunc  func(ctx context.Context, bucket string, cfg *lifecycle.Configuration) error
	listObjectsFunc   func(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	presignedGetFunc  func(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
	presignedPutFunc  func(ctx context.Context, bucket, object string, expiry time.Duration) (*url.URL, error)
	putObjectFunc     func(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	getObjectFunc     func(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
	removeObjectFunc  func(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	removeObjectsFunc func(ctx context.Context, bucket string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
	statObjectFunc    func(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	copyObjectFunc    func(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
	putTaggingFunc    func(ctx context.Context, bucket, object string, ot *tags.Tags, opts minio.PutObjectTaggingOptions) error
	getTaggingFunc    func(ctx context.Context, bucket, object string, opts minio.GetObjectTaggingOptions) (*tags.Tags, error)
}

func (f *fakeMinIOAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	if f.listBucketsFunc != nil {
		return f.listBucketsFunc(ctx)
	}
	return nil, nil
}

func (f *fakeMinIOAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if f.bucketExistsFunc != nil {
		return f.bucketExistsFunc(ctx, bucket)
	}
	return true, nil
}

func (f *fakeMinIOAPI) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	if f.makeBucketFunc != nil {
		return f.makeBucketFunc(ctx, bucket, opts)
	}
	return nil
}

func (f *fakeMinIOAPI) SetBucketLifecycle(ctx context.Context, bucket string, cfg *lifecycle.Configuration) error {
	if f.setLifecycleFunc != nil {
		return f.setLifecycleFunc(ctx, bucket, cfg)
	}
	return nil
}

func (f *fakeMinIOAPI) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	if f.listObjectsFunc != nil {
		return f.listObjectsFunc(ctx, bucket, opts)
	}
	ch := make(chan minio.ObjectInfo)
	close(ch)
	return ch
}

func (f *fakeMinIOAPI) PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error) {
	if f.presignedGetFunc != nil {
		return f.presignedGetFunc(ctx, bucket, object, expiry, params)
	}
	return url.Parse("https://minio.local/" + bucket + "/" + object)
}

func (f *fakeMinIOAPI) PresignedPutObject(ctx context.Context, bucket, object string, expiry time.Duration) (*url.URL, error) {
	if f.presignedPutFunc != nil {
		return f.presignedPutFunc(ctx, bucket, object, expiry)
	}
	return url.Parse("https://minio.local/" + bucket + "/" + object)
}

func (f *fakeMinIOAPI) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putObjectFunc != nil {
		return f.putObjectFunc(ctx, bucket, object, reader, size, opts)
	}
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func (f *fakeMinIOAPI) GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error) {
	if f.getObjectFunc != nil {
		return f.getObjectFunc(ctx, bucket, object, opts)
	}
	return nil, errors.New("not implemented")
}

func (f *fakeMinIOAPI) RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error {
	if f.removeObjectFunc != nil {
		return f.removeObjectFunc(ctx, bucket, object, opts)
	}
	return nil
}

func (f *fakeMinIOAPI) RemoveObjects(ctx context.Context, bucket string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError {
	if f.removeObjectsFunc != nil {
		return f.removeObjectsFunc(ctx, bucket, objectsCh, opts)
	}
	// Drain and report no failures.
	out := make(chan minio.RemoveObjectError)
	go func() {
		defer close(out)
		for range objectsCh {
		}
	}()
	return out
}

func (f *fakeMinIOAPI) StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if f.statObjectFunc != nil {
		return f.statObjectFunc(ctx, bucket, object, opts)
	}
	return minio.ObjectInfo{Key: object}, nil
}

func (f *fakeMinIOAPI) CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error) {
	if f.copyObjectFunc != nil {
		return f.copyObjectFunc(ctx, dst, src)
	}
	return minio.UploadInfo{}, nil
}

func (f *fakeMinIOAPI) PutObjectTagging(ctx context.Context, bucket, object string, ot *tags.Tags, opts minio.PutObjectTaggingOptions) error {
	if f.putTaggingFunc != nil {
		return f.putTaggingFunc(ctx, bucket, object, ot, opts)
	}
	return nil
}

func (f *fakeMinIOAPI) GetObjectTagging(ctx context.Context, bucket, object string, opts minio.GetObjectTaggingOptions) (*tags.Tags, error) {
	if f.getTaggingFunc != nil {
		return f.getTaggingFunc(ctx, bucket, object, opts)
	}
	return tags.NewTags(nil, false)
}

func testMinIOConfig() config.MinIOConfig {
	return config.MinIOConfig{
		Endpoint:     "localhost:9000",
		LigandBucket: "moldock-ligands",
		ResultBucket: "moldock-results",
	}
}

func newTestClient(api MinIOAPI) *Client {
	return NewClientWithAPI(api, testMinIOConfig(), logging.NewNopLogger())
}

func TestApplyDefaults(t *testing.T) {
	cfg := config.MinIOConfig{}
	applyDefaults(&cfg)

	assert.Equal(t, "moldock-ligands", cfg.LigandBucket)
	assert.Equal(t, "moldock-results", cfg.ResultBucket)
	assert.Equal(t, 1*time.Hour, cfg.PresignExpiry)
}

func TestEnsureBuckets_CreatesMissing(t *testing.T) {
	var created []string
	api := &fakeMinIOAPI{
		bucketExistsFunc: func(ctx context.Context, bucket string) (bool, error) {
			return bucket == "moldock-ligands", nil
		},
		makeBucketFunc: func(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
			created = append(created, bucket)
			return nil
		},
	}
	c := newTestClient(api)
	err := c.EnsureBuckets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"moldock-results"}, created)
}

func TestEnsureBuckets_ExistsError(t *testing.T) {
	api := &fakeMinIOAPI{
		bucketExistsFunc: func(ctx context.Context, bucket string) (bool, error) {
			return false, errors.New("access denied")
		},
	}
	c := newTestClient(api)
	err := c.EnsureBuckets(context.Background())
	assert.Error(t, err)
}

func TestSetupLifecycleRules_OnlyResultBucket(t *testing.T) {
	var configured []string
	api := &fakeMinIOAPI{
		setLifecycleFunc: func(ctx context.Context, bucket string, cfg *lifecycle.Configuration) error {
			configured = append(configured, bucket)
			require.Len(t, cfg.Rules, 1)
			assert.Equal(t, "results-cleanup", cfg.Rules[0].ID)
			return nil
		},
	}
	c := newTestClient(api)
	err := c.SetupLifecycleRules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"moldock-results"}, configured)
}

func TestHealthCheck_Healthy(t *testing.T) {
	c := newTestClient(&fakeMinIOAPI{})
	status, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.True(t, status.BucketStatuses["moldock-ligands"])
	assert.True(t, status.BucketStatuses["moldock-results"])
}

func TestHealthCheck_MissingBucket(t *testing.T) {
	api := &fakeMinIOAPI{
		bucketExistsFunc: func(ctx context.Context, bucket string) (bool, error) {
			return bucket != "moldock-results", nil
		},
	}
	c := newTestClient(api)
	status, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Error, "moldock-results")
}

func TestHealthCheck_Unreachable(t *testing.T) {
	api := &fakeMinIOAPI{
		listBucketsFunc: func(ctx context.Context) ([]minio.BucketInfo, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := newTestClient(api)
	status, err := c.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.False(t, status.Healthy)
}

func TestGetBucketStats(t *testing.T) {
	now := time.Now()
	api := &fakeMinIOAPI{
		listObjectsFunc: func(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
			ch := make(chan minio.ObjectInfo, 2)
			ch <- minio.ObjectInfo{Key: "a", Size: 100, LastModified: now.Add(-time.Hour)}
			ch <- minio.ObjectInfo{Key: "b", Size: 250, LastModified: now}
			close(ch)
			return ch
		},
	}
	c := newTestClient(api)
	stats, err := c.GetBucketStats(context.Background(), "moldock-ligands")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ObjectCount)
	assert.Equal(t, int64(350), stats.TotalSize)
	assert.Equal(t, now, stats.LastModified)
}

func TestGetBucketStats_BucketNotFound(t *testing.T) {
	api := &fakeMinIOAPI{
		bucketExistsFunc: func(ctx context.Context, bucket string) (bool, error) {
			return false, nil
		},
	}
	c := newTestClient(api)
	_, err := c.GetBucketStats(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrBucketNotFound)
}

func TestGeneratePresignedGetURL_DefaultExpiry(t *testing.T) {
	var gotExpiry time.Duration
	api := &fakeMinIOAPI{
		presignedGetFunc: func(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error) {
			gotExpiry = expiry
			return url.Parse("https://minio.local/" + bucket + "/" + object)
		},
	}
	c := newTestClient(api)
	u, err := c.GeneratePresignedGetURL(context.Background(), "moldock-results", "jobs/j1/log.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, 1*time.Hour, gotExpiry)
	assert.Equal(t, "https://minio.local/moldock-results/jobs/j1/log.csv", u)
}
