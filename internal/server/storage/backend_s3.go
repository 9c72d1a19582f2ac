package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/openmined/photodrop/internal/utils"
)

const uploadPartSize = 16 * 1024 * 1024

// Uploader is the subset of manager.Uploader used by S3Backend
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Backend struct {
	uploader Uploader
	config   *S3Config
	logger   *slog.Logger
}

func NewS3Backend(uploader Uploader, cfg *S3Config, logger *slog.Logger) *S3Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Backend{
		uploader: uploader,
		config:   cfg,
		logger:   logger.With("backend", "s3"),
	}
}

func NewS3BackendWithConfig(ctx context.Context, cfg *S3Config, logger *slog.Logger) (*S3Backend, error) {
	// a buildable client keeps AWS_CA_BUNDLE and other transport options working
	httpClient := awshttp.NewBuildableClient().
		WithTransportOptions(func(tr *http.Transport) {
			tr.Proxy = http.ProxyFromEnvironment
			tr.MaxIdleConns = 100
			tr.MaxIdleConnsPerHost = 50
			tr.IdleConnTimeout = 90 * time.Second
			tr.TLSHandshakeTimeout = 10 * time.Second
			tr.ExpectContinueTimeout = 1 * time.Second
			tr.ForceAttemptHTTP2 = true
		}).
		WithTimeout(cfg.RequestTimeout())

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// a failed attempt goes to the fallback backend instead
		o.Retryer = aws.NopRetryer{}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
	})

	return NewS3Backend(uploader, cfg, logger), nil
}

func (s *S3Backend) Name() string {
	return "s3"
}

// Put uploads the file under photos/<name>.
// The object is not read back: a missing or empty acknowledgment is the only success check.
func (s *S3Backend) Put(ctx context.Context, params *PutParams) (*PutResult, error) {
	if !ValidateName(params.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, params.Name)
	}

	file, err := os.Open(params.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", params.Path, err)
	}
	defer file.Close()

	key := objectKey(params.Name)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.BucketName),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(params.Size),
	}
	if params.ContentType != "" {
		input.ContentType = aws.String(params.ContentType)
	}
	if s.config.PublicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			s.logger.Error("s3 upload rejected", "key", key, "code", apiErr.ErrorCode(), "message", apiErr.ErrorMessage())
		} else {
			s.logger.Error("s3 upload failed", "key", key, "error", err)
		}
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	if out == nil {
		return nil, fmt.Errorf("upload %s: %w", key, ErrEmptyAck)
	}
	etag := strings.ReplaceAll(aws.ToString(out.ETag), "\"", "")
	if etag == "" {
		return nil, fmt.Errorf("upload %s: %w", key, ErrEmptyAck)
	}

	return &PutResult{
		Key:  key,
		URL:  s.ObjectURL(key),
		ETag: etag,
	}, nil
}

// ObjectURL resolves the public URL of key.
// A configured public URL wins, then a custom endpoint (path style), then the AWS virtual hosted style.
func (s *S3Backend) ObjectURL(key string) string {
	switch {
	case s.config.PublicURL != "":
		return utils.JoinURL(s.config.PublicURL, key)
	case s.config.Endpoint != "":
		return utils.JoinURL(s.config.Endpoint, s.config.BucketName, key)
	case s.config.UseAccelerate:
		return utils.JoinURL(fmt.Sprintf("https://%s.s3-accelerate.amazonaws.com", s.config.BucketName), key)
	default:
		return utils.JoinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.config.BucketName, s.config.Region), key)
	}
}
