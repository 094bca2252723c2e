// Package storage 提供 R2 对象存储实现
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-credit-gateway/internal/config"
)

var tracer = otel.Tracer("storage.r2")

// ArtifactStore 任务结果的对象存储接口
type ArtifactStore interface {
	// Put 上传对象，返回对象引用
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get 按引用下载对象
	Get(ctx context.Context, ref string) ([]byte, error)
}

// R2Store 基于 S3 兼容 API 的 Cloudflare R2 存储
type R2Store struct {
	client *s3.Client
	bucket string
}

// NewR2Store 创建 R2 存储客户端
func NewR2Store(ctx context.Context, cfg *config.R2Config) (*R2Store, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Store{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Put 上传对象，返回对象引用
func (s *R2Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "storage.R2Store.Put",
		trace.WithAttributes(
			attribute.String("storage.key", key),
			attribute.Int("storage.size_bytes", len(data)),
		))
	defer span.End()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return fmt.Sprintf("r2://%s/%s", s.bucket, key), nil
}

// Get 按引用下载对象
func (s *R2Store) Get(ctx context.Context, ref string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "storage.R2Store.Get",
		trace.WithAttributes(attribute.String("storage.ref", ref)))
	defer span.End()

	key, err := ParseRef(ref, s.bucket)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// ParseRef 解析 r2://bucket/key 形式的对象引用
func ParseRef(ref, bucket string) (string, error) {
	prefix := fmt.Sprintf("r2://%s/", bucket)
	if len(ref) <= len(prefix) || ref[:len(prefix)] != prefix {
		return "", fmt.Errorf("invalid object ref: %s", ref)
	}
	return ref[len(prefix):], nil
}
