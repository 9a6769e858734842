package domain

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// AttachmentType is the "type" of an attachment on the Send and Attachment Upload APIs.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
	AttachmentFile  AttachmentType = "file"
)

// Upload size limits per attachment type.
const (
	ImageMaxSize int64 = 5 * 1024 * 1024
	VideoMaxSize int64 = 16 * 1024 * 1024
	AudioMaxSize int64 = 16 * 1024 * 1024
	FileMaxSize  int64 = 100 * 1024 * 1024
)

// AttachmentTypeFor classifies a MIME content type by prefix. Anything that is not
// image/*, video/* or audio/* is sent as a generic file.
func AttachmentTypeFor(contentType string) AttachmentType {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return AttachmentImage
	case strings.HasPrefix(ct, "video/"):
		return AttachmentVideo
	case strings.HasPrefix(ct, "audio/"):
		return AttachmentAudio
	default:
		return AttachmentFile
	}
}

// MaxSize returns the upload limit for t.
func (t AttachmentType) MaxSize() int64 {
	switch t {
	case AttachmentImage:
		return ImageMaxSize
	case AttachmentVideo:
		return VideoMaxSize
	case AttachmentAudio:
		return AudioMaxSize
	default:
		return FileMaxSize
	}
}

// ValidateUploadSize rejects empty payloads and payloads over the limit for t.
func ValidateUploadSize(t AttachmentType, size int64) error {
	if size <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if limit := t.MaxSize(); size > limit {
		return fmt.Errorf("file size %s exceeds the %s limit of %s", FormatFileSize(size), t, FormatFileSize(limit))
	}
	return nil
}

var supportedContentTypes = toSet(
	"image/jpeg", "image/jpg", "image/png",
	"video/mp4", "video/3gpp",
	"audio/aac", "audio/mp4", "audio/mpeg", "audio/amr", "audio/ogg", "audio/opus",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"text/plain",
)

func toSet(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// IsContentTypeSupported reports whether the platform documents contentType as accepted.
// Parameters such as "; charset=utf-8" are ignored.
func IsContentTypeSupported(contentType string) bool {
	ct, _, _ := strings.Cut(contentType, ";")
	return supportedContentTypes[strings.ToLower(strings.TrimSpace(ct))]
}

// FormatFileSize renders bytes as B, KB, MB or GB.
func FormatFileSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	case bytes < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(bytes)/(1024*1024*1024))
	}
}

// SniffContentType detects a MIME type from the payload's magic bytes, for callers that did not
// supply one. Unknown content yields application/octet-stream.
func SniffContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
