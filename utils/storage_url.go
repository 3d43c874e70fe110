package utils

import (
	"net/url"
	"os"
	"strings"
)

// BuildObjectAccessURL returns the browser URL of an uploaded report.
// STORAGE_ACCESS_BASE_URL overrides the public GCS endpoint, either with an
// {objectKey} placeholder or as a prefix.
func BuildObjectAccessURL(bucket, objectKey string) string {
	base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL"))
	if base != "" {
		if strings.Contains(base, "{objectKey}") {
			escaped := objectKey
			if strings.Contains(base, "?") {
				escaped = url.QueryEscape(objectKey)
			}
			return strings.ReplaceAll(base, "{objectKey}", escaped)
		}
		if strings.Contains(base, "?") {
			return base + url.QueryEscape(objectKey)
		}
		return strings.TrimRight(base, "/") + "/" + objectKey
	}
	return "https://storage.googleapis.com/" + bucket + "/" + objectKey
}
