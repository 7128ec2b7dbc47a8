package export

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"simflow/internal/logger"
)

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// Prefix is prepended to every object folder.
	Prefix string
}

func (c ObjectStoreConfig) Configured() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

func (c ObjectStoreConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("objectstore endpoint is required")
	}
	if c.Bucket == "" {
		return errors.New("objectstore bucket is required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return errors.New("objectstore access and secret keys must be set together")
	}
	return nil
}

// ObjectStore uploads into an S3 compatible bucket.
type ObjectStore struct {
	cfg    ObjectStoreConfig
	client *minio.Client
	logger logger.Logger
}

func NewObjectStore(cfg ObjectStoreConfig, log logger.Logger) (*ObjectStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create objectstore client: %w", err)
	}

	return &ObjectStore{
		cfg:    cfg,
		client: client,
		logger: log.With(logger.String("destination", DestinationObjectStore)),
	}, nil
}

func (o *ObjectStore) Name() string { return DestinationObjectStore }

func (o *ObjectStore) Export(ctx context.Context, src *Source, destinationFolder string) (*Result, error) {
	folder := strings.Trim(destinationFolder, "/")
	if folder == "" {
		folder = src.Name
	}
	prefix := folder
	if o.cfg.Prefix != "" {
		prefix = path.Join(strings.Trim(o.cfg.Prefix, "/"), folder)
	}

	if err := o.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", o.cfg.Bucket, err)
	}

	res := &Result{
		Location: fmt.Sprintf("s3://%s/%s", o.cfg.Bucket, prefix),
		Bucket:   o.cfg.Bucket,
		Prefix:   prefix,
	}
	for _, f := range src.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := prefix + "/" + f.Name
		_, err := o.client.FPutObject(ctx, o.cfg.Bucket, key, f.Path, minio.PutObjectOptions{ContentType: f.ContentType})
		if err != nil {
			o.logger.Warn("upload failed", logger.String("key", key), logger.Error(err))
			res.failed(f, err)
			continue
		}
		res.uploaded(f)
	}
	return res, nil
}

func (o *ObjectStore) ensureBucket(ctx context.Context) error {
	exists, err := o.client.BucketExists(ctx, o.cfg.Bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	o.logger.Info("creating bucket", logger.String("bucket", o.cfg.Bucket))
	return o.client.MakeBucket(ctx, o.cfg.Bucket, minio.MakeBucketOptions{Region: o.cfg.Region})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
