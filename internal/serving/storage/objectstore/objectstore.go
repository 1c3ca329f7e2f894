// Package objectstore is the MinIO-backed implementation of storage.Adapter,
// used when a model repository root lives in object storage rather than on
// local disk. Versions are derived from the common-prefixes one level below
// "<bucket>/<modelRoot>/" the same way fs.Adapter derives them from directory
// names.
package objectstore

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// Config carries the connection parameters for the object-store backend.
type Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
}

// api is the subset of the minio client this adapter calls, mirroring the
// platform's established pattern of wrapping third-party SDK clients behind
// a narrow interface so tests can substitute a fake.
type api interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// Adapter implements storage.Adapter against a MinIO (or any S3-compatible) bucket.
type Adapter struct {
	client api
	bucket string
	logger logging.Logger
}

// New connects to the configured endpoint and returns an Adapter.
func New(cfg Config, logger logging.Logger) (*Adapter, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to create object store client")
	}
	return &Adapter{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func prefix(modelRoot string) string {
	return strings.TrimSuffix(modelRoot, "/") + "/"
}

// ListVersions implements storage.Adapter.
func (a *Adapter) ListVersions(ctx context.Context, modelRoot string) (map[int64]struct{}, error) {
	versions := make(map[int64]struct{})
	p := prefix(modelRoot)

	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: p, Recursive: false}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.CodeStorageError, "list versions failed").WithDetail(modelRoot)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, p), "/")
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		v, err := strconv.ParseInt(name, 10, 64)
		if err != nil || v <= 0 {
			continue
		}
		versions[v] = struct{}{}
	}
	return versions, nil
}

// OpenArtifact implements storage.Adapter.
func (a *Adapter) OpenArtifact(ctx context.Context, modelRoot string, version int64, relPath string) ([]byte, error) {
	key := prefix(modelRoot) + strconv.FormatInt(version, 10) + "/" + relPath
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "open artifact failed").WithDetail(key)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj); err != nil {
		minioErr := minio.ToErrorResponse(err)
		if minioErr.Code == "NoSuchKey" {
			return nil, errors.NotFound("artifact not found").WithDetail(key)
		}
		return nil, errors.Wrap(err, errors.CodeStorageError, "read artifact failed").WithDetail(key)
	}
	return buf.Bytes(), nil
}

// Exists implements storage.Adapter.
func (a *Adapter) Exists(ctx context.Context, modelRoot string) (bool, error) {
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix(modelRoot), Recursive: false, MaxKeys: 1}) {
		if obj.Err != nil {
			return false, errors.Wrap(obj.Err, errors.CodeStorageError, "exists check failed").WithDetail(modelRoot)
		}
		return true, nil
	}
	return false, nil
}
