package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/chartmuseum/storage"
)

const (
	defaultS3Region  = "us-east-1"
	defaultLocalRoot = "./data/objects"
)

// S3Config holds the connection info for an S3-compatible bucket. Root, when
// set, is a folder inside the bucket that every key is relative to.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Root      string
	UseSSL    bool
}

// S3Client implements ObjectStorage on a chartmuseum backend.
//
// chartmuseum lists a single folder level and reports names relative to it,
// so ListObjects treats everything up to the last "/" of the prefix as a
// folder, filters that folder's files by the remaining name part and returns
// full keys. Objects in nested folders are not listed.
type S3Client struct {
	backend storage.Backend
}

// NewS3Client builds an S3Client backed by chartmuseum's Amazon S3 backend
// with static credentials.
func NewS3Client(cfg S3Config) (*S3Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultS3Region
	}

	backend := storage.NewAmazonS3BackendWithCredentials(
		cfg.Bucket,
		cfg.Root,
		region,
		s3Endpoint(cfg.Endpoint, cfg.UseSSL),
		"",
		credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	)
	return NewBackendClient(backend), nil
}

// NewBackendClient wraps any chartmuseum backend, e.g. a local filesystem
// folder used in place of a bucket.
func NewBackendClient(backend storage.Backend) *S3Client {
	return &S3Client{backend: backend}
}

// NewLocalClient stores objects as files under root.
func NewLocalClient(root string) *S3Client {
	return NewBackendClient(storage.NewLocalFilesystemBackend(root))
}

func s3Endpoint(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	return scheme + "://" + strings.TrimPrefix(endpoint, "//")
}

// splitPrefix separates a listing prefix into its folder and the start of
// the file name: "snapshots/rules/" is ("snapshots/rules", ""),
// "cotacoes/loja" is ("cotacoes", "loja").
func splitPrefix(prefix string) (folder, name string) {
	prefix = strings.TrimLeft(prefix, "/")
	i := strings.LastIndex(prefix, "/")
	if i < 0 {
		return "", prefix
	}
	return strings.TrimRight(prefix[:i], "/"), prefix[i+1:]
}

// ListObjects lists the files of prefix's folder whose names start with the
// rest of prefix, sorted by key.
func (c *S3Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	folder, name := splitPrefix(prefix)
	objects, err := c.backend.ListObjects(folder)
	if err != nil {
		return nil, fmt.Errorf("s3 list %s failed: %w", prefix, err)
	}

	results := make([]ObjectInfo, 0, len(objects))
	for _, object := range objects {
		if !strings.HasPrefix(object.Path, name) {
			continue
		}
		results = append(results, ObjectInfo{
			Key:          path.Join(folder, object.Path),
			LastModified: object.LastModified,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

func (c *S3Client) ReadObject(ctx context.Context, key string) ([]byte, error) {
	object, err := c.backend.GetObject(key)
	if err != nil {
		if isMissing(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("s3 get %s failed: %w", key, err)
	}
	return object.Content, nil
}

// isMissing recognises the not-found errors of the S3 and filesystem
// backends.
func isMissing(err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

// DownloadObject downloads an object to the provided destination path.
func (c *S3Client) DownloadObject(ctx context.Context, key, destPath string) error {
	content, err := c.ReadObject(ctx, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, content, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

func (c *S3Client) UploadObject(ctx context.Context, key string, data []byte) error {
	if err := c.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("s3 upload %s failed: %w", key, err)
	}
	return nil
}

var _ ObjectStorage = (*S3Client)(nil)
