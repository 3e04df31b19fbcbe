// Package objectstorage хранит файлы (обложки курсов) в S3-совместимом бакете.
package objectstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage S3-клиент для одного бакета.
type Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// Options параметры подключения.
type Options struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// New создаёт клиент. Пустой Endpoint означает AWS S3, иначе используется
// указанный адрес (MinIO, Ceph и т.п.).
func New(ctx context.Context, opts Options) (*Storage, error) {
	const op = "objectstorage.New"
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket is empty", op)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return &Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
	}, nil
}

// Put загружает объект. size нужен S3 для Content-Length; -1 если неизвестен.
func (s *Storage) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	const op = "objectstorage.Put"
	if key == "" {
		return fmt.Errorf("%s: empty key", op)
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PresignGet возвращает временную ссылку на скачивание объекта.
func (s *Storage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	const op = "objectstorage.PresignGet"
	if key == "" {
		return "", errors.New(op + ": empty key")
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return req.URL, nil
}

// Delete удаляет объект. Отсутствие объекта ошибкой не считается.
func (s *Storage) Delete(ctx context.Context, key string) error {
	const op = "objectstorage.Delete"
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
