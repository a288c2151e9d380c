// Package objectstore implements the object-store fetcher stage (spec
// §4.2), adapted from the teacher's AWS S3 CloudStorage implementation into
// a download-only, custom-endpoint S3v4 client.
package objectstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/pipelineerr"
)

// Config holds the settings needed to reach an S3v4-compatible endpoint.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	SkipTLSVerify   bool
}

// Fetcher downloads objects by key into local files.
type Fetcher struct {
	cfg        Config
	client     *s3.Client
	downloader *manager.Downloader
	logger     *zap.Logger
}

// Fetched describes a downloaded object (spec §4.2).
type Fetched struct {
	LocalPath   string
	Size        int64
	ContentType string
	ETag        string
}

// New builds a Fetcher against cfg.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Fetcher, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	httpClient := &http.Client{}
	if cfg.SkipTLSVerify {
		httpClient.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec // dev-only escape hatch for self-signed endpoints, spec §4.2
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Fetcher{
		cfg:        cfg,
		client:     client,
		downloader: manager.NewDownloader(client),
		logger:     logger.Named("objectstore"),
	}, nil
}

// Fetch downloads key into a file under workDir, streaming the body so
// payloads over 10 MiB are never buffered whole in memory (spec §4.2).
func (f *Fetcher) Fetch(ctx context.Context, key, workDir string) (Fetched, *pipelineerr.Error) {
	const operation = "Fetcher.Fetch"

	headOut, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			f.logger.Warn("object not found", zap.String("operation", operation), zap.String("key", key))
			return Fetched{}, pipelineerr.Client(pipelineerr.CodeResourceNotFound, err)
		}
		f.logger.Error("head object failed", zap.String("operation", operation), zap.String("key", key), zap.Error(err))
		return Fetched{}, pipelineerr.Server(pipelineerr.CodeS3Error, !isPermissionDenied(err), err)
	}

	destPath := filepath.Join(workDir, filepath.Base(key))
	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return Fetched{}, pipelineerr.Server(pipelineerr.CodeFileSaveFailed, true, err)
	}
	defer dest.Close()

	w := &fileWriterAt{f: dest}
	_, err = f.downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(f.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		f.logger.Error("download failed", zap.String("operation", operation), zap.String("key", key), zap.Error(err))
		if isNotFound(err) {
			return Fetched{}, pipelineerr.Client(pipelineerr.CodeResourceNotFound, err)
		}
		return Fetched{}, pipelineerr.Server(pipelineerr.CodeS3Error, !isPermissionDenied(err), err)
	}

	contentType := ""
	if headOut.ContentType != nil {
		contentType = *headOut.ContentType
	}
	etag := ""
	if headOut.ETag != nil {
		etag = *headOut.ETag
	}
	size := int64(0)
	if headOut.ContentLength != nil {
		size = *headOut.ContentLength
	}

	f.logger.Info("object fetched", zap.String("operation", operation), zap.String("key", key), zap.Int64("size", size))
	return Fetched{LocalPath: destPath, Size: size, ContentType: contentType, ETag: etag}, nil
}

// fileWriterAt adapts *os.File to io.WriterAt for manager.Downloader.
type fileWriterAt struct {
	f *os.File
}

func (w *fileWriterAt) WriteAt(p []byte, off int64) (int, error) {
	return w.f.WriteAt(p, off)
}

func isNotFound(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusNotFound
	}
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// isPermissionDenied reports whether err represents an AWS credential or
// authorization failure rather than a transient transport/server error.
// These never succeed on retry, unlike timeouts or 5xx responses, so the
// pipeline must not mark them retryable (spec §4.2 S3_ERROR classification).
func isPermissionDenied(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusForbidden, http.StatusUnauthorized:
			return true
		}
	}
	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "UnauthorizedAccess":
			return true
		}
	}
	return false
}

var _ io.WriterAt = (*fileWriterAt)(nil)
