package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJSON = "application/json"
)

// ObjectMetadata is what the web endpoint reports about a stored report.
type ObjectMetadata struct {
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	SizeFormatted string    `json:"size_formatted"`
	ContentType   string    `json:"content_type"`
	Updated       time.Time `json:"updated"`
}

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// GetGCSClient exposes the shared Google Cloud Storage client.
func GetGCSClient(ctx context.Context) (*storage.Client, error) {
	return getGoogleClient(ctx)
}

// DetectReportContentType maps generated report files to their MIME type.
func DetectReportContentType(objectName string, data []byte) string {
	switch strings.ToLower(filepath.Ext(objectName)) {
	case ".xlsx":
		return ContentTypeXLSX
	case ".json":
		return ContentTypeJSON
	}
	return http.DetectContentType(data)
}

// UploadFileToGCS uploads a local file as bucket/objectName.
func UploadFileToGCS(ctx context.Context, bucketName, objectName, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	return UploadBytesToGCS(ctx, bucketName, objectName, data, DetectReportContentType(objectName, data))
}

func UploadBytesToGCS(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	if bucketName == "" {
		return errors.New("STORAGE_BUCKET_NAME is required")
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// ObjectExistsInGCS checks if an object exists in Google Cloud Storage
func ObjectExistsInGCS(ctx context.Context, bucketName, objectName string) (bool, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return false, err
	}
	defer client.Close()

	// Attrs is used to check the existence of an object without downloading its content
	_, err = client.Bucket(bucketName).Object(objectName).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func GetObjectMetadata(ctx context.Context, bucketName, objectName string) (*ObjectMetadata, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	attrs, err := client.Bucket(bucketName).Object(objectName).Attrs(ctx)
	if err != nil {
		return nil, err
	}
	return objectMetadataFromAttrs(attrs), nil
}

// ListObjects lists the objects under prefix in lexical order.
func ListObjects(ctx context.Context, bucketName, prefix string) ([]ObjectMetadata, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var out []ObjectMetadata
	it := client.Bucket(bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *objectMetadataFromAttrs(attrs))
	}
	return out, nil
}

func objectMetadataFromAttrs(attrs *storage.ObjectAttrs) *ObjectMetadata {
	return &ObjectMetadata{
		Name:          attrs.Name,
		Size:          attrs.Size,
		SizeFormatted: FormatFileSize(attrs.Size),
		ContentType:   attrs.ContentType,
		Updated:       attrs.Updated,
	}
}

// FormatFileSize renders a byte count as 0B, 512.00B, 1.50KB and so on.
func FormatFileSize(size int64) string {
	if size == 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.2f%s", value, units[i])
}
