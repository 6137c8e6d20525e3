package mediatype

import (
	"mime"
	"strings"
)

// Allowed reports whether contentType matches one of patterns. A pattern may
// end in "/*" to accept a whole family. An empty pattern list allows anything.
func Allowed(patterns []string, contentType string) bool {
	if len(patterns) == 0 {
		return true
	}
	contentType = Normalize(contentType)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "*" || p == "*/*":
			return true
		case strings.HasSuffix(p, "/*"):
			if strings.HasPrefix(contentType, strings.TrimSuffix(p, "*")) {
				return true
			}
		case p == contentType:
			return true
		}
	}
	return false
}

// Normalize lower-cases a media type and drops its parameters.
func Normalize(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(ct)
}

// IsImage reports whether ct is in the image family.
func IsImage(ct string) bool {
	return strings.HasPrefix(Normalize(ct), "image/")
}

// FromName guesses a media type from the file extension.
func FromName(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".heic"):
		return "image/heic"
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
