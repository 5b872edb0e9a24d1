package storage

import (
	"fmt"
	"strings"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AllowedContentTypes defines the MIME types the export bucket accepts.
var AllowedContentTypes = map[string]bool{
	ContentTypeCSV:  true,
	ContentTypeXLSX: true,
}

// ValidateContentType checks if the content type is allowed.
func ValidateContentType(contentType string) error {
	base := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if !AllowedContentTypes[strings.ToLower(base)] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks the size against max. Unknown sizes (-1) and a
// non-positive max skip the check.
func ValidateFileSize(sizeBytes, max int64) error {
	if sizeBytes == 0 {
		return fmt.Errorf("file is empty")
	}
	if sizeBytes > 0 && max > 0 && sizeBytes > max {
		return fmt.Errorf("file size %d exceeds maximum of %d bytes", sizeBytes, max)
	}
	return nil
}
