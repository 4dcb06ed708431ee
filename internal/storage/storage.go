package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bobarin/montage/internal/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Upload timeout per attempt, sized for a few hundred MB of video.
const uploadTimeout = 5 * time.Minute

// ObjectAPI is the part of the S3 client the uploader uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string // S3-compatible endpoint such as MinIO or R2; empty for AWS
}

type Storage struct {
	client ObjectAPI
	Bucket string
	prefix string
	policy retry.Policy
}

// New builds an uploader from the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewWithClient(client ObjectAPI, bucket, prefix string) *Storage {
	policy := retry.Upload
	policy.IsFatal = func(err error) bool { return !isRetryable(err) }
	return &Storage{
		client: client,
		Bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		policy: policy,
	}
}

// Key is the object key for a job's video: <prefix>/<jobID>.mp4.
func (s *Storage) Key(jobID uuid.UUID) string {
	return path.Join(s.prefix, jobID.String()+".mp4")
}

// Publish uploads the finished video and returns its s3:// URL.
func (s *Storage) Publish(ctx context.Context, jobID uuid.UUID, localPath string) (string, error) {
	key := s.Key(jobID)
	if err := s.UploadFile(ctx, key, localPath, "video/mp4"); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.Bucket, key), nil
}

// UploadFile uploads a local file with retries and exponential backoff.
// The file is reopened for every attempt.
func (s *Storage) UploadFile(ctx context.Context, key, localPath, contentType string) error {
	logger := log.With().Str("component", "storage").Str("key", key).Logger()

	var attempts int
	err := s.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		if attempt > 1 {
			logger.Warn().Int("attempt", attempt).Int("max", s.policy.MaxAttempts).Msg("retrying upload")
		}

		f, err := os.Open(localPath)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to open %s: %w", localPath, err))
		}
		defer f.Close()

		uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
		defer cancel()

		_, err = s.client.PutObject(uploadCtx, &s3.PutObjectInput{
			Bucket:      aws.String(s.Bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return fmt.Errorf("failed to upload: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload failed after %d attempts: %w", attempts, err)
	}

	logger.Info().Int("attempts", attempts).Msg("upload complete")
	return nil
}

// isRetryable reports whether a failed PutObject is worth repeating.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return isRetryableStatus(re.HTTPStatusCode())
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status == http.StatusInternalServerError ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}
