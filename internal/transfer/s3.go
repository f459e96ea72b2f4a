// Package transfer copies catalog products out of the CDSE object store.
// The search engine only hands it a resolved storage path and an output
// directory; it contributes no query logic.
package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rkm/cdse-search/internal/auth"
)

// Executor downloads one product prefix to a local directory.
type Executor interface {
	Download(ctx context.Context, storagePath, outputDir string) error
}

// S3Config holds connection settings for the eodata S3-compatible endpoint.
type S3Config struct {
	Endpoint string
	Region   string
	Keys     auth.S3Keys
}

// S3Executor implements Executor against an S3-compatible object store.
type S3Executor struct {
	client *s3.Client
	logger *slog.Logger
}

// NewS3Executor creates an executor for the configured endpoint.
func NewS3Executor(ctx context.Context, cfg S3Config) (*S3Executor, error) {
	if cfg.Keys.AccessKey == "" || cfg.Keys.SecretKey == "" {
		return nil, fmt.Errorf("object-store credentials are not configured")
	}

	// Custom resolver for the S3-compatible eodata endpoint.
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Keys.AccessKey, cfg.Keys.SecretKey, ""),
		),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load object-store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &S3Executor{
		client: client,
		logger: slog.Default(),
	}, nil
}

// WithLogger sets a custom logger for the executor.
func (e *S3Executor) WithLogger(logger *slog.Logger) *S3Executor {
	e.logger = logger
	return e
}

// SplitStoragePath splits a catalog storage path such as
// "/eodata/Sentinel-1/SAR/IW_SLC__1S/2024/.../X.SAFE" into its bucket and
// object prefix.
func SplitStoragePath(storagePath string) (bucket, prefix string, err error) {
	trimmed := strings.TrimPrefix(storagePath, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid storage path %q: expected /<bucket>/<prefix>", storagePath)
	}
	return parts[0], parts[1], nil
}

// Download copies every object under the storage path into outputDir,
// preserving the product directory name and internal layout. Progress is
// reported line by line through the logger.
func (e *S3Executor) Download(ctx context.Context, storagePath, outputDir string) error {
	bucket, prefix, err := SplitStoragePath(storagePath)
	if err != nil {
		return err
	}

	productName := path.Base(prefix)
	targetDir := filepath.Join(outputDir, productName)

	e.logger.InfoContext(ctx, "starting download",
		slog.String("bucket", bucket),
		slog.String("prefix", prefix),
		slog.String("target", targetDir),
	)

	paginator := s3.NewListObjectsV2Paginator(e.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	downloaded := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects for %q: %w", storagePath, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue // directory marker
			}

			if err := e.downloadObject(ctx, bucket, key, prefix, targetDir); err != nil {
				return err
			}
			downloaded++

			e.logger.InfoContext(ctx, "downloaded object",
				slog.String("key", key),
				slog.Int64("bytes", aws.ToInt64(obj.Size)),
			)
		}
	}

	if downloaded == 0 {
		return fmt.Errorf("no objects found under %q", storagePath)
	}

	e.logger.InfoContext(ctx, "download complete",
		slog.Int("objects", downloaded),
		slog.String("target", targetDir),
	)
	return nil
}

func (e *S3Executor) downloadObject(ctx context.Context, bucket, key, prefix, targetDir string) error {
	rel := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
	localPath := filepath.Join(targetDir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", localPath, err)
	}

	out, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object %q: %w", key, err)
	}
	defer out.Body.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create file %q: %w", localPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, out.Body); err != nil {
		return fmt.Errorf("failed to write %q: %w", localPath, err)
	}
	return nil
}
