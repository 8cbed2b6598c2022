package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shopdesk/shopdesk-core/internal/infrastructure/config"
)

// Default timeouts and expiries for storage operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// DefaultPresignExpiry is how long generated download URLs stay valid.
	DefaultPresignExpiry = 1 * time.Hour
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Client wraps the MinIO client with Shopdesk-specific functionality.
//
// It provides connection management, object operations scoped to the
// configured bucket, and health monitoring.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   *minio.Client
	bucket   string
	basePath string
}

// Connect establishes a connection to the object storage server.
//
// It performs the following setup:
//  1. Parses and normalises the configured endpoint
//  2. Creates the client with static credentials
//  3. Verifies the configured bucket exists
//
// Parameters:
//   - ctx: Context for the bucket existence check
//   - cfg: Storage configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the endpoint is invalid or the bucket check fails
func Connect(ctx context.Context, cfg config.StorageConfig) (*Client, error) {
	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if cfg.UseSSL {
		secure = true
	}

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	exists, err := mc.BucketExists(checkCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: checking bucket: %w", ErrConnectionFailed, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, cfg.Bucket)
	}

	basePath := cfg.BasePath
	if basePath != "" && !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}

	return &Client{
		client:   mc,
		bucket:   cfg.Bucket,
		basePath: basePath,
	}, nil
}

// normaliseEndpoint accepts either "minio:9000" or a full URL form
// ("http://minio:9000" / "https://minio:9000") and returns the host
// plus whether TLS should be used.
func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("empty endpoint")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, errors.New("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, errors.New("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// ObjectKey builds the canonical object key for a submission file.
//
// Layout: {basePath}{submissionID}/{category}/{filename}
func (c *Client) ObjectKey(submissionID, category, filename string) string {
	return fmt.Sprintf("%s%s/%s/%s", c.basePath, submissionID, category, filename)
}

// BasePath returns the configured key prefix, always "/"-terminated
// when non-empty.
func (c *Client) BasePath() string {
	return c.basePath
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// Upload stores an object under the given key.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - key: Full object key (use ObjectKey to build it)
//   - r: Object content
//   - size: Content length in bytes, or -1 if unknown
//   - contentType: MIME type recorded on the object
func (c *Client) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if c.client == nil {
		return ErrNotConnected
	}

	_, err := c.client.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("uploading object %s: %w", key, err)
	}
	return nil
}

// Get opens the object for reading and returns its metadata.
//
// The caller must close the returned reader.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if c.client == nil {
		return nil, ObjectInfo{}, ErrNotConnected
	}

	info, err := c.Stat(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("getting object %s: %w", key, err)
	}

	return obj, info, nil
}

// Stat returns metadata for the object without reading its content.
func (c *Client) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if c.client == nil {
		return ObjectInfo{}, ErrNotConnected
	}

	stat, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return ObjectInfo{}, fmt.Errorf("stat object %s: %w", key, err)
	}

	return ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
	}, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c.client == nil {
		return ErrNotConnected
	}

	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// PresignedGet generates a time-limited download URL for the object.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - key: Full object key
//   - expiry: URL validity window; DefaultPresignExpiry if zero
func (c *Client) PresignedGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if c.client == nil {
		return "", ErrNotConnected
	}

	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigning object %s: %w", key, err)
	}
	return u.String(), nil
}

// List returns metadata for every object under the given key prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}

	var objects []ObjectInfo
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing objects under %s: %w", prefix, obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}

	return objects, nil
}

// HealthCheck verifies the bucket is still reachable.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.client == nil {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	exists, err := c.client.BucketExists(checkCtx, c.bucket)
	if err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("storage health check failed: %w: %s", ErrBucketNotFound, c.bucket)
	}
	return nil
}

// isNotFound reports whether err is a MinIO "key does not exist" response.
func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
