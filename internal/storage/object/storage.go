// Package object keeps storage areas in an S3-compatible bucket through MinIO.
package object

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage"
)

// Client is a connection to one bucket. Areas are carved out of it with Area.
type Client struct {
	client     *minio.Client
	bucketName string
}

// Storage is one area: every object lives under the area's key prefix.
type Storage struct {
	client     *minio.Client
	bucketName string
	prefix     string
}

// NewClient connects to the MinIO server. If the bucket does not exist, it
// will be created; the bootstrap calls are retried with the given strategy.
func NewClient(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, strategy retry.Strategy) (*Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	err = retry.Do(func() error {
		exists, err := client.BucketExists(ctx, bucketName)
		if err != nil {
			return fmt.Errorf("failed to check if bucket exists: %w", err)
		}

		if !exists {
			if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("failed to create bucket: %w", err)
			}
		}

		return nil
	}, strategy)
	if err != nil {
		return nil, err
	}

	return &Client{client: client, bucketName: bucketName}, nil
}

// Area returns the storage area kept under prefix.
func (c *Client) Area(prefix string) *Storage {
	return &Storage{
		client:     c.client,
		bucketName: c.bucketName,
		prefix:     strings.Trim(prefix, "/"),
	}
}

// Save uploads src under name, replacing any existing object.
func (s *Storage) Save(ctx context.Context, name string, src io.Reader) (int64, error) {
	if err := storage.ValidateName(name); err != nil {
		return 0, err
	}

	info, err := s.client.PutObject(ctx, s.bucketName, s.key(name), src, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save file: %w", err)
	}

	return info.Size, nil
}

// Load returns a reader over the named object.
func (s *Storage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, wrapNotFound(err, "failed to load file")
	}

	// GetObject is lazy; Stat surfaces a missing key before the caller starts streaming.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, wrapNotFound(err, "failed to load file")
	}

	return obj, nil
}

// Stat returns metadata of the named object.
func (s *Storage) Stat(ctx context.Context, name string) (storage.Info, error) {
	if err := storage.ValidateName(name); err != nil {
		return storage.Info{}, err
	}

	info, err := s.client.StatObject(ctx, s.bucketName, s.key(name), minio.StatObjectOptions{})
	if err != nil {
		return storage.Info{}, wrapNotFound(err, "failed to stat file")
	}

	return storage.Info{Name: name, Size: info.Size, ModTime: info.LastModified}, nil
}

// Delete removes the named object. S3 deletes are idempotent, so the object is
// checked first to report a missing key the way the local backend does.
func (s *Storage) Delete(ctx context.Context, name string) error {
	if _, err := s.Stat(ctx, name); err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucketName, s.key(name), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// List returns every object directly under the area prefix.
func (s *Storage) List(ctx context.Context) ([]storage.Info, error) {
	var files []storage.Info

	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: s.prefix + "/"}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list files: %w", obj.Err)
		}

		name := strings.TrimPrefix(obj.Key, s.prefix+"/")
		if storage.ValidateName(name) != nil {
			continue
		}

		files = append(files, storage.Info{Name: name, Size: obj.Size, ModTime: obj.LastModified})
	}

	return files, nil
}

func (s *Storage) key(name string) string {
	return path.Join(s.prefix, name)
}

func wrapNotFound(err error, msg string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}

	return fmt.Errorf("%s: %w", msg, err)
}
