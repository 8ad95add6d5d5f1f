// minio реализует storage.SignedURLStorage на базе MinIO/S3.
// Плеер никогда не обращается к объекту по пути напрямую:
// доступ только через presigned GET с ограниченным сроком.
package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pribylovaa/module-mind/internal/config"
	"github.com/pribylovaa/module-mind/internal/storage"
)

// ErrInvalidPath — пустой путь объекта или путь вне бакета.
var ErrInvalidPath = errors.New("invalid object path")

// Signer выдаёт подписанные ссылки на объекты одного бакета.
type Signer struct {
	bucket string
	client *mclient.Client
}

// New создает клиент MinIO, нормализует endpoint (убирает схему, выбирает Secure)
// и выполняет fail-fast-проверку наличия бакета.
func New(ctx context.Context, s3 config.S3Config, bucket string) (*Signer, error) {
	const op = "storage.minio.New"

	endpoint := s3.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(s3.AccessKey, s3.SecretKey, ""),
		Secure: secure,
		Region: s3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, bucket)
	}

	return &Signer{bucket: bucket, client: client}, nil
}

// SignedURL возвращает presigned GET URL на objectPath со сроком ttl.
//
// objectPath может включать имя бакета первым сегментом
// ("course-videos/w1/l1.mp4"): оно отрезается. Отсутствующий объект — storage.ErrNotFound.
func (s *Signer) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	const op = "storage.minio.SignedURL"

	key, err := s.objectKey(objectPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.client.StatObject(ctx, s.bucket, key, mclient.StatObjectOptions{}); err != nil {
		errResp := mclient.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return u.String(), nil
}

func (s *Signer) objectKey(objectPath string) (string, error) {
	key := strings.TrimPrefix(strings.TrimSpace(objectPath), "/")
	key = strings.TrimPrefix(key, s.bucket+"/")

	if key == "" || strings.Contains(key, "..") {
		return "", ErrInvalidPath
	}

	return key, nil
}

var _ storage.SignedURLStorage = (*Signer)(nil)
