package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AudioStorage stores generated audio files and returns their public URL
type AudioStorage interface {
	SaveAudio(ctx context.Context, key string, data []byte, contentType string) (string, error)
	DeleteAudio(ctx context.Context, key string) error
}

// LocalAudioStorage writes audio under basePath. Files are served by the HTTP layer
// below publicURL.
type LocalAudioStorage struct {
	basePath  string
	publicURL string
}

func NewLocalAudioStorage(basePath, publicURL string) (*LocalAudioStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}
	return &LocalAudioStorage{basePath: basePath, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *LocalAudioStorage) SaveAudio(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", err
	}
	return s.publicURL + "/" + key, nil
}

func (s *LocalAudioStorage) DeleteAudio(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// S3AudioStorage keeps audio in an S3 bucket
type S3AudioStorage struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3AudioStorage(bucket, publicURL string) (*S3AudioStorage, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}

	// trace S3 calls as X-Ray subsegments
	awsv2.AWSV2Instrumentor(&cfg.APIOptions)

	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, cfg.Region)
	}
	return &S3AudioStorage{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

func (s *S3AudioStorage) SaveAudio(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "put s3://%s/%s", s.bucket, key)
	}
	return s.publicURL + "/" + key, nil
}

func (s *S3AudioStorage) DeleteAudio(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// NewAudioStorage creates the storage backend for storageType ("local" or "s3")
func NewAudioStorage(storageType, pathOrBucket, publicURL string) (AudioStorage, error) {
	switch storageType {
	case "s3":
		return NewS3AudioStorage(pathOrBucket, publicURL)
	case "local":
		return NewLocalAudioStorage(pathOrBucket, publicURL)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageType)
	}
}

// GenerateAudioKey returns a unique object key for a generated audio file
func GenerateAudioKey(contentType string) string {
	var ext string
	switch contentType {
	case "audio/mpeg", "audio/mp3":
		ext = ".mp3"
	case "audio/ogg":
		ext = ".ogg"
	default:
		ext = ".wav"
	}
	return "audio/generated/" + uuid.NewString() + ext
}
