package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/tags"

	"github.com/turtacn/MolDock-Screen/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolDock-Screen/pkg/errors"
)

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid request")
)

// ScreeningStore is the object-storage surface the screening pipeline uses.
// Receptors and ligand libraries live in the ligand bucket under their
// object keys; each finished job writes one CSV archive to the result
// bucket.
type ScreeningStore interface {
	// Domain operations.
	DownloadReceptor(ctx context.Context, key string) ([]byte, error)
	OpenLibrary(ctx context.Context, key string) (io.ReadCloser, int64, error)
	InputExists(ctx context.Context, key string) (bool, error)
	UploadSliceResult(ctx context.Context, jobID string, sliceIndex int, data []byte) (string, error)
	ListSliceResults(ctx context.Context, jobID string) ([]string, error)
	DownloadSliceResult(ctx context.Context, key string) ([]byte, error)
	UploadResult(ctx context.Context, jobID string, data []byte) (string, error)
	ResultDownloadURL(ctx context.Context, resultKey string, expiry time.Duration) (string, error)
	LibraryUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Generic operations.
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	UploadStream(ctx context.Context, req *StreamUploadRequest) (*UploadResult, error)
	Download(ctx context.Context, bucket, objectKey string) (*DownloadResult, error)
	DownloadToWriter(ctx context.Context, bucket, objectKey string, writer io.Writer) error
	Delete(ctx context.Context, bucket, objectKey string) error
	DeleteBatch(ctx context.Context, bucket string, objectKeys []string) ([]DeleteError, error)
	Exists(ctx context.Context, bucket, objectKey string) (bool, error)
	GetMetadata(ctx context.Context, bucket, objectKey string) (*ObjectMetadata, error)
	List(ctx context.Context, bucket, prefix string, opts *ListOptions) (*ListResult, error)
	SetTags(ctx context.Context, bucket, objectKey string, tags map[string]string) error
	GetTags(ctx context.Context, bucket, objectKey string) (map[string]string, error)
}

type UploadRequest struct {
	Bucket      string
	ObjectKey   string
	Data        []byte
	ContentType string
	Metadata    map[string]string
	Tags        map[string]string
}

type StreamUploadRequest struct {
	Bucket      string
	ObjectKey   string
	Reader      io.Reader
	Size        int64
	ContentType string
	Metadata    map[string]string
}

type UploadResult struct {
	Bucket     string
	ObjectKey  string
	ETag       string
	Size       int64
	UploadedAt time.Time
}

type DownloadResult struct {
	Data         []byte
	ContentType  string
	Size         int64
	ETag         string
	Metadata     map[string]string
	LastModified time.Time
}

type ObjectMetadata struct {
	Bucket       string
	ObjectKey    string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}

type ListOptions struct {
	MaxKeys   int
	Recursive bool
}

type ListResult struct {
	Objects    []*ObjectMetadata
	TotalCount int
}

type DeleteError struct {
	ObjectKey string
	Error     error
}

type screeningStore struct {
	client *Client
	logger logging.Logger
}

func NewScreeningStore(client *Client, log logging.Logger) ScreeningStore {
	return &screeningStore{
		client: client,
		logger: log,
	}
}

// DownloadReceptor reads a receptor PDBQT into memory. Receptors are a few
// hundred kilobytes; libraries are the objects that need streaming.
func (r *screeningStore) DownloadReceptor(ctx context.Context, key string) ([]byte, error) {
	res, err := r.Download(ctx, r.client.LigandBucket(), key)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// OpenLibrary streams a compound library. The caller owns the reader and
// must close it; the returned size is the object length in bytes.
func (r *screeningStore) OpenLibrary(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	stat, err := r.client.GetClient().StatObject(ctx, r.client.LigandBucket(), key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, err
	}

	obj, err := r.client.GetClient().GetObject(ctx, r.client.LigandBucket(), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, err
	}
	return obj, stat.Size, nil
}

// InputExists reports whether a receptor or library object is present in
// the ligand bucket.
func (r *screeningStore) InputExists(ctx context.Context, key string) (bool, error) {
	return r.Exists(ctx, r.client.LigandBucket(), key)
}

// DownloadSliceResult reads one per-slice CSV from the result bucket.
func (r *screeningStore) DownloadSliceResult(ctx context.Context, key string) ([]byte, error) {
	res, err := r.Download(ctx, r.client.ResultBucket(), key)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func sliceResultKey(jobID string, sliceIndex int) string {
	return fmt.Sprintf("jobs/%s/slices/%04d.csv", jobID, sliceIndex)
}

func resultKey(jobID string) string {
	return fmt.Sprintf("jobs/%s/log.csv", jobID)
}

// UploadSliceResult stores one slice's CSV rows under the job's prefix and
// returns the object key.
func (r *screeningStore) UploadSliceResult(ctx context.Context, jobID string, sliceIndex int, data []byte) (string, error) {
	key := sliceResultKey(jobID, sliceIndex)
	_, err := r.Upload(ctx, &UploadRequest{
		Bucket:      r.client.ResultBucket(),
		ObjectKey:   key,
		Data:        data,
		ContentType: "text/csv",
		Metadata:    map[string]string{"job-id": jobID},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// ListSliceResults returns the slice CSV keys for a job in lexical order,
// which matches slice order thanks to the zero-padded index.
func (r *screeningStore) ListSliceResults(ctx context.Context, jobID string) ([]string, error) {
	res, err := r.List(ctx, r.client.ResultBucket(), fmt.Sprintf("jobs/%s/slices/", jobID), &ListOptions{Recursive: true, MaxKeys: 100000})
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(res.Objects))
	for _, obj := range res.Objects {
		keys = append(keys, obj.ObjectKey)
	}
	return keys, nil
}

// UploadResult stores a job's merged CSV and returns the object key.
func (r *screeningStore) UploadResult(ctx context.Context, jobID string, data []byte) (string, error) {
	key := resultKey(jobID)
	_, err := r.Upload(ctx, &UploadRequest{
		Bucket:      r.client.ResultBucket(),
		ObjectKey:   key,
		Data:        data,
		ContentType: "text/csv",
		Metadata:    map[string]string{"job-id": jobID},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (r *screeningStore) ResultDownloadURL(ctx context.Context, resultKey string, expiry time.Duration) (string, error) {
	return r.client.GeneratePresignedGetURL(ctx, r.client.ResultBucket(), resultKey, expiry)
}

func (r *screeningStore) LibraryUploadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return r.client.GeneratePresignedPutURL(ctx, r.client.LigandBucket(), key, expiry)
}

func (r *screeningStore) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req.Bucket == "" || req.ObjectKey == "" {
		return nil, ErrInvalidRequest
	}
	if req.ContentType == "" && len(req.Data) > 0 {
		req.ContentType = http.DetectContentType(req.Data[:min(512, len(req.Data))])
	}

	opts := minio.PutObjectOptions{
		ContentType:  req.ContentType,
		UserMetadata: req.Metadata,
		UserTags:     req.Tags,
	}

	info, err := r.client.GetClient().PutObject(ctx, req.Bucket, req.ObjectKey, bytes.NewReader(req.Data), int64(len(req.Data)), opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "upload failed")
	}

	return &UploadResult{
		Bucket:     info.Bucket,
		ObjectKey:  info.Key,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: time.Now(),
	}, nil
}

func (r *screeningStore) UploadStream(ctx context.Context, req *StreamUploadRequest) (*UploadResult, error) {
	if req.Bucket == "" || req.ObjectKey == "" {
		return nil, ErrInvalidRequest
	}
	opts := minio.PutObjectOptions{
		ContentType:  req.ContentType,
		UserMetadata: req.Metadata,
	}

	info, err := r.client.GetClient().PutObject(ctx, req.Bucket, req.ObjectKey, req.Reader, req.Size, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "stream upload failed")
	}
	return &UploadResult{
		Bucket:     info.Bucket,
		ObjectKey:  info.Key,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: time.Now(),
	}, nil
}

func (r *screeningStore) Download(ctx context.Context, bucket, objectKey string) (*DownloadResult, error) {
	obj, err := r.client.GetClient().GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}

	return &DownloadResult{
		Data:         data,
		ContentType:  stat.ContentType,
		Size:         stat.Size,
		ETag:         stat.ETag,
		Metadata:     stat.UserMetadata,
		LastModified: stat.LastModified,
	}, nil
}

func (r *screeningStore) DownloadToWriter(ctx context.Context, bucket, objectKey string, writer io.Writer) error {
	obj, err := r.client.GetClient().GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	if _, err := io.Copy(writer, obj); err != nil {
		return err
	}
	return nil
}

func (r *screeningStore) Delete(ctx context.Context, bucket, objectKey string) error {
	return r.client.GetClient().RemoveObject(ctx, bucket, objectKey, minio.RemoveObjectOptions{})
}

func (r *screeningStore) DeleteBatch(ctx context.Context, bucket string, objectKeys []string) ([]DeleteError, error) {
	objectsCh := make(chan minio.ObjectInfo)
	go func() {
		defer close(objectsCh)
		for _, key := range objectKeys {
			objectsCh <- minio.ObjectInfo{Key: key}
		}
	}()

	var errs []DeleteError
	for err := range r.client.GetClient().RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		errs = append(errs, DeleteError{ObjectKey: err.ObjectName, Error: err.Err})
	}
	return errs, nil
}

func (r *screeningStore) Exists(ctx context.Context, bucket, objectKey string) (bool, error) {
	_, err := r.client.GetClient().StatObject(ctx, bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *screeningStore) GetMetadata(ctx context.Context, bucket, objectKey string) (*ObjectMetadata, error) {
	info, err := r.client.GetClient().StatObject(ctx, bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return &ObjectMetadata{
		Bucket:       bucket,
		ObjectKey:    objectKey,
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		Metadata:     info.UserMetadata,
	}, nil
}

func (r *screeningStore) List(ctx context.Context, bucket, prefix string, opts *ListOptions) (*ListResult, error) {
	if opts == nil {
		opts = &ListOptions{MaxKeys: 1000, Recursive: true}
	}

	options := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: opts.Recursive,
		MaxKeys:   opts.MaxKeys,
	}

	ch := r.client.GetClient().ListObjects(ctx, bucket, options)
	var objects []*ObjectMetadata
	count := 0
	for obj := range ch {
		if obj.Err != nil {
			return nil, obj.Err
		}
		objects = append(objects, &ObjectMetadata{
			ObjectKey:    obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
		count++
		if count >= opts.MaxKeys {
			break
		}
	}

	return &ListResult{Objects: objects, TotalCount: count}, nil
}

func (r *screeningStore) SetTags(ctx context.Context, bucket, objectKey string, t map[string]string) error {
	ot, err := tags.NewTags(t, false)
	if err != nil {
		return err
	}
	return r.client.GetClient().PutObjectTagging(ctx, bucket, objectKey, ot, minio.PutObjectTaggingOptions{})
}

func (r *screeningStore) GetTags(ctx context.Context, bucket, objectKey string) (map[string]string, error) {
	ot, err := r.client.GetClient().GetObjectTagging(ctx, bucket, objectKey, minio.GetObjectTaggingOptions{})
	if err != nil {
		return nil, err
	}
	return ot.ToMap(), nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
