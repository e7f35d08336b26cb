package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/vibast-solutions/ms-go-inventory/config"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrUnsupportedType = errors.New("only image uploads are accepted")
)

const keyPrefix = "inventory"

// File is an uploaded file that has not been read yet.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

func FromFileHeader(fh *multipart.FileHeader) File {
	return File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Asset is a stored object. PublicID is the object key and is what Delete expects.
type Asset struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Store struct {
	client        s3API
	bucket        string
	publicBaseURL string
	maxBytes      int64
	now           func() time.Time
}

func NewStore(ctx context.Context, cfg config.MediaConfig) (*Store, error) {
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
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return newStore(client, cfg.Bucket, baseURL, cfg.MaxUploadBytes), nil
}

func newStore(client s3API, bucket, publicBaseURL string, maxBytes int64) *Store {
	return &Store{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxBytes:      maxBytes,
		now:           time.Now,
	}
}

// Upload stores file under inventory/<yyyy>/<mm>/<uuid><ext>.
func (s *Store) Upload(ctx context.Context, file File) (Asset, error) {
	if s.maxBytes > 0 && file.Size > s.maxBytes {
		return Asset{}, ErrFileTooLarge
	}

	rc, err := file.Open()
	if err != nil {
		return Asset{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer rc.Close()

	var reader io.Reader = rc
	if s.maxBytes > 0 {
		reader = io.LimitReader(rc, s.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return Asset{}, ErrEmptyFile
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return Asset{}, ErrFileTooLarge
	}

	contentType := file.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return Asset{}, ErrUnsupportedType
	}

	key := s.objectKey(file.Name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return Asset{}, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return Asset{URL: s.publicBaseURL + "/" + key, PublicID: key}, nil
}

// Delete removes the object. An empty publicID is a no-op.
func (s *Store) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", publicID, err)
	}
	return nil
}

func (s *Store) objectKey(filename string) string {
	now := s.now().UTC()
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%04d/%02d/%s%s", keyPrefix, now.Year(), int(now.Month()), uuid.NewString(), ext)
}
