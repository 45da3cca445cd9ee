package ingest

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// MinioConfig addresses a bucket on an S3-compatible object store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// bucketClient is the subset of *minio.Client the enumerator uses.
type bucketClient interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// MinioEnumerator emits every object under a bucket prefix with a known media type.
type MinioEnumerator struct {
	client bucketClient
	bucket string
	prefix string
	logger *zap.Logger
}

var _ operator.Operator[Asset] = (*MinioEnumerator)(nil)

// NewMinioEnumerator connects to the object store described by cfg.
func NewMinioEnumerator(cfg MinioConfig, logger *zap.Logger) (*MinioEnumerator, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newMinioEnumerator(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newMinioEnumerator(client bucketClient, bucket, prefix string, logger *zap.Logger) *MinioEnumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MinioEnumerator{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

func (e *MinioEnumerator) Emit(ctx context.Context, out chan<- Asset) error {
	// cancelling ctx closes the listing channel
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := e.client.ListObjects(ctx, e.bucket, minio.ListObjectsOptions{Prefix: e.prefix, Recursive: true})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("list %s/%s: %w", e.bucket, e.prefix, obj.Err)
		}
		mt, ok := MediaTypeOf(obj.Key)
		if !ok {
			e.logger.Debug("Skipping object of unknown media type", zap.String("key", obj.Key))
			continue
		}
		key := obj.Key
		asset := Asset{
			Source: retrievable.Source{
				Name:      path.Base(key),
				URI:       "s3://" + e.bucket + "/" + key,
				Size:      obj.Size,
				MediaType: mt,
			},
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				obj, err := e.client.GetObject(ctx, e.bucket, key, minio.GetObjectOptions{})
				if err != nil {
					return nil, fmt.Errorf("get %s/%s: %w", e.bucket, key, err)
				}
				return obj, nil
			},
		}
		if err := operator.Send(ctx, out, asset); err != nil {
			return err
		}
	}
	return ctx.Err()
}
