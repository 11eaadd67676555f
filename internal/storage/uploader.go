package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// PhotoUploader 照片上传接口
// 上传失败是硬失败：证据照片丢了完成记录就不完整
type PhotoUploader interface {
	UploadPhoto(ctx context.Context, objectName string, data []byte, contentType string) error
}

// MinioUploader 基于 MinIO 的照片上传器
type MinioUploader struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewMinioUploader 创建 MinIO 上传器
// endpoint 为空时返回禁用态的上传器（client 为 nil），上传调用直接报错
func NewMinioUploader(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*MinioUploader, error) {
	if endpoint == "" {
		logger.Info("Photo storage disabled: no endpoint configured")
		return &MinioUploader{bucket: bucket, logger: logger}, nil
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	logger.Info("Photo storage initialized",
		zap.String("endpoint", endpoint),
		zap.String("bucket", bucket))

	return &MinioUploader{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

// UploadPhoto 上传一张照片
func (u *MinioUploader) UploadPhoto(ctx context.Context, objectName string, data []byte, contentType string) error {
	if u.client == nil {
		return fmt.Errorf("photo storage is not configured")
	}
	if objectName == "" {
		return fmt.Errorf("object_name is required")
	}
	if len(data) == 0 {
		return fmt.Errorf("photo data is empty")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	start := time.Now()
	_, err := u.client.PutObject(ctx, u.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload photo %s: %w", objectName, err)
	}

	u.logger.Debug("Photo uploaded",
		zap.String("object_name", objectName),
		zap.Int("size", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	return nil
}
