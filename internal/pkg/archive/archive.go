// Package archive keeps a copy of every verified webhook payload in S3
// compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/config"
)

// Archiver stores raw webhook payloads.
type Archiver interface {
	Archive(ctx context.Context, eventID string, receivedAt time.Time, payload []byte) error
}

// NopArchiver is used when archiving is disabled.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, string, time.Time, []byte) error { return nil }

// objectAPI is the part of *s3.Client the archiver needs.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

type S3Archiver struct {
	client objectAPI
	cfg    config.ArchiveConfig
	log    *zap.Logger
}

// New returns a NopArchiver when archiving is disabled, otherwise a connected
// S3Archiver.
func New(ctx context.Context, cfg config.ArchiveConfig, appEnv string, log *zap.Logger) (Archiver, error) {
	if !cfg.Enabled {
		return NopArchiver{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3 compatible providers (B2, MinIO) need path-style URLs
			o.UsePathStyle = true
		}
	})

	a := newS3Archiver(client, cfg, log)
	if err := a.ensureBucket(ctx, appEnv); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}
	log.Info("webhook archive enabled", zap.String("bucket", cfg.BucketName))
	return a, nil
}

func newS3Archiver(client objectAPI, cfg config.ArchiveConfig, log *zap.Logger) *S3Archiver {
	return &S3Archiver{client: client, cfg: cfg, log: log}
}

// ensureBucket checks the bucket and creates it outside production.
func (a *S3Archiver) ensureBucket(ctx context.Context, appEnv string) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.cfg.BucketName)})
	if err == nil {
		return nil
	}
	if appEnv == "prod" {
		return fmt.Errorf("bucket %s not accessible: %w", a.cfg.BucketName, err)
	}

	a.log.Warn("archive bucket not found, attempting to create it", zap.String("bucket", a.cfg.BucketName))
	input := &s3.CreateBucketInput{Bucket: aws.String(a.cfg.BucketName)}
	// us-east-1 and non-AWS endpoints reject a location constraint
	if a.cfg.EndpointURL == "" && a.cfg.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(a.cfg.Region),
		}
	}
	if _, err := a.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", a.cfg.BucketName, err)
	}
	return nil
}

func (a *S3Archiver) Archive(ctx context.Context, eventID string, receivedAt time.Time, payload []byte) error {
	key := ObjectKey(eventID, receivedAt)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.cfg.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
		Metadata: map[string]string{
			"event-id": eventID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// ObjectKey is webhooks/YYYY/MM/DD/<event id>.json in UTC.
func ObjectKey(eventID string, receivedAt time.Time) string {
	t := receivedAt.UTC()
	id := strings.NewReplacer("/", "_", "..", "_").Replace(strings.TrimSpace(eventID))
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("webhooks/%04d/%02d/%02d/%s.json", t.Year(), int(t.Month()), t.Day(), id)
}
