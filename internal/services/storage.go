package services

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/chachabrian/shupool-backend/internal/config"
	"github.com/chachabrian/shupool-backend/internal/models"
)

// Storage keeps uploaded images in S3 when credentials are configured and
// on the local disk otherwise.
type Storage struct {
	s3Client  *s3.S3
	uploader  *s3manager.Uploader
	bucket    string
	region    string
	uploadDir string
	baseURL   string
}

// NewStorage initializes either S3 or local storage based on configuration.
func NewStorage(cfg config.Config) (*Storage, error) {
	if cfg.S3Enabled() {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(cfg.AWSRegion),
			Credentials: credentials.NewStaticCredentials(
				cfg.AWSAccessKey,
				cfg.AWSSecretKey,
				"", // Token (optional)
			),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %v", err)
		}
		log.Println("[storage] AWS S3 storage initialized")
		return &Storage{
			s3Client: s3.New(sess),
			uploader: s3manager.NewUploader(sess),
			bucket:   cfg.AWSS3Bucket,
			region:   cfg.AWSRegion,
		}, nil
	}

	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %v", err)
	}
	log.Printf("[storage] AWS S3 not configured, storing uploads in %s", cfg.UploadDir)
	return &Storage{
		uploadDir: cfg.UploadDir,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// UsingS3 returns true if S3 storage is being used.
func (s *Storage) UsingS3() bool {
	return s.uploader != nil
}

// UploadDir is the local directory served under /uploads. It is empty when
// S3 is used.
func (s *Storage) UploadDir() string {
	return s.uploadDir
}

// UploadImage stores file under folder and returns its public URL.
func (s *Storage) UploadImage(file *multipart.FileHeader, folder string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %v", err)
	}
	defer src.Close()

	buffer := bytes.NewBuffer(nil)
	if _, err := io.Copy(buffer, src); err != nil {
		return "", fmt.Errorf("failed to read file: %v", err)
	}
	contentType := http.DetectContentType(buffer.Bytes())
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: expected an image, got %s", models.ErrInvalidInput, contentType)
	}

	fileName := fmt.Sprintf("%d%s", time.Now().UnixNano(), strings.ToLower(filepath.Ext(file.Filename)))
	if s.UsingS3() {
		return s.uploadToS3(buffer.Bytes(), contentType, path.Join(folder, fileName))
	}
	return s.uploadLocally(buffer.Bytes(), folder, fileName)
}

func (s *Storage) uploadToS3(data []byte, contentType, key string) (string, error) {
	_, err := s.uploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		// bucket policy grants public read, no ACL
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %v", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

func (s *Storage) uploadLocally(data []byte, folder, fileName string) (string, error) {
	folderPath := filepath.Join(s.uploadDir, folder)
	if err := os.MkdirAll(folderPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create folder directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(folderPath, fileName), data, 0644); err != nil {
		return "", fmt.Errorf("failed to save file: %v", err)
	}
	return fmt.Sprintf("%s/uploads/%s/%s", s.baseURL, filepath.ToSlash(folder), fileName), nil
}

// DeleteImage removes an image previously returned by UploadImage. URLs
// that do not belong to this storage are ignored.
func (s *Storage) DeleteImage(imageURL string) error {
	key, ok := s.keyFromURL(imageURL)
	if !ok {
		return nil
	}
	if s.UsingS3() {
		_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	}
	err := os.Remove(filepath.Join(s.uploadDir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Storage) keyFromURL(imageURL string) (string, bool) {
	u, err := url.Parse(imageURL)
	if err != nil || imageURL == "" {
		return "", false
	}
	p := path.Clean(u.Path)
	if s.UsingS3() {
		if !strings.HasPrefix(u.Host, s.bucket+".") {
			return "", false
		}
		return strings.TrimPrefix(p, "/"), true
	}
	if !strings.HasPrefix(p, "/uploads/") {
		return "", false
	}
	return strings.TrimPrefix(p, "/uploads/"), true
}
