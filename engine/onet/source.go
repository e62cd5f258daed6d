package onet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/upi-karir/karir/engine/domain"
)

// Source opens named tabular files.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// DirSource reads files from a local O*NET release directory.
type DirSource struct {
	Dir string
}

// Open implements Source.
func (d DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.Dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("onet: %s: %w", name, domain.ErrMissingSource)
		}
		return nil, fmt.Errorf("onet: open %s: %w", name, err)
	}
	return f, nil
}

// BucketConfig holds MinIO/S3 connection settings.
type BucketConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// objectStore is the subset of *minio.Client used by BucketSource.
type objectStore interface {
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// BucketSource reads an O*NET release stored under a bucket prefix.
type BucketSource struct {
	mc     objectStore
	bucket string
	prefix string
}

// NewBucketSource connects to the object store described by cfg.
func NewBucketSource(cfg BucketConfig) (*BucketSource, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("onet: minio client: %w", err)
	}
	return &BucketSource{mc: mc, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (b *BucketSource) key(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

// Open implements Source. A missing object maps to domain.ErrMissingSource.
func (b *BucketSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := b.key(name)
	if _, err := b.mc.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("onet: %s/%s: %w", b.bucket, key, domain.ErrMissingSource)
		}
		return nil, fmt.Errorf("onet: stat %s/%s: %w", b.bucket, key, err)
	}
	obj, err := b.mc.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("onet: get %s/%s: %w", b.bucket, key, err)
	}
	return obj, nil
}

// LoadTable opens name from src and reads it fully.
func LoadTable(ctx context.Context, src Source, name string) (*Table, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadTable(name, rc)
}
