// Package storage fetches remote disk images from S3 into a local image
// cache so the write stage always works from a local file.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/webbboot/companion/pkg/errors"
)

const s3Scheme = "s3://"

// Options configure the S3 client. Without an access key the client uses
// anonymous credentials, which is enough for public image buckets.
type Options struct {
	Region    string
	AccessKey string
	SecretKey string
	CacheDir  string
}

// Client provides S3 image downloads
type Client struct {
	s3Client *s3.Client
	cacheDir string
}

// NewClient creates a new S3 client
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	slog.Info("s3_client_init", "region", opts.Region, "cache_dir", opts.CacheDir, "anonymous", opts.AccessKey == "")

	var provider aws.CredentialsProvider = aws.AnonymousCredentials{}
	if opts.AccessKey != "" {
		provider = credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(provider),
	)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return &Client{
		s3Client: s3.NewFromConfig(cfg),
		cacheDir: opts.CacheDir,
	}, nil
}

// DownloadResult contains download metadata
type DownloadResult struct {
	LocalPath string
	SHA256    string
	Size      int64
}

// IsS3URI reports whether image names a remote S3 object.
func IsS3URI(image string) bool {
	return strings.HasPrefix(strings.TrimSpace(image), s3Scheme)
}

// ParseS3URI splits s3://bucket/key into its bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || bucket == "." || bucket == ".." || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 uri must name a bucket and an object key: %q", uri)
	}
	return bucket, key, nil
}

// CachePath is where the object named by uri is stored locally.
func (c *Client) CachePath(uri string) (string, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.cacheDir, bucket, filepath.FromSlash(filepath.Clean("/"+key))), nil
}

// Fetch downloads the image named by uri into the cache, replacing any
// previous copy.
func (c *Client) Fetch(ctx context.Context, uri string) (*DownloadResult, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	localPath, err := c.CachePath(uri)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		slog.Error("cache_dir_creation_failed", "path", filepath.Dir(localPath), "error", err)
		return nil, errors.Wrapf(err, "failed to create cache dir %s", filepath.Dir(localPath))
	}
	return c.Download(ctx, bucket, key, localPath)
}

// Download downloads an object from S3 and computes SHA256. The object is
// written to a temporary file and renamed into place once complete.
func (c *Client) Download(ctx context.Context, bucket, key, localPath string) (*DownloadResult, error) {
	slog.Info("s3_download_start", "bucket", bucket, "s3_key", key)

	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Error("s3_get_object_failed", "bucket", bucket, "s3_key", key, "error", err)
		return nil, errors.Wrapf(err, "failed to get s3://%s/%s", bucket, key)
	}
	defer result.Body.Close()

	tmpPath := localPath + ".part"
	f, err := os.Create(tmpPath)
	if err != nil {
		slog.Error("local_file_creation_failed", "path", tmpPath, "error", err)
		return nil, errors.Wrap(err, "failed to create local file")
	}

	checksum, size, err := copyWithHash(f, result.Body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		slog.Error("s3_download_failed", "s3_key", key, "error", err)
		return nil, errors.Wrap(err, "failed to download file")
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return nil, errors.Wrap(err, "failed to move download into cache")
	}

	slog.Info("s3_download_complete",
		"s3_key", key,
		"size_mb", size/1024/1024,
		"local_path", localPath,
		"sha256", checksum[:16]+"...",
	)

	return &DownloadResult{
		LocalPath: localPath,
		SHA256:    checksum,
		Size:      size,
	}, nil
}

func copyWithHash(dst io.Writer, src io.Reader) (string, int64, error) {
	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(dst, hash), src)
	if err != nil {
		return "", size, err
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
