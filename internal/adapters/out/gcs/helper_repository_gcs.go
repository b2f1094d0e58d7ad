// internal/adapters/out/gcs/helper_repository_gcs.go
package gcs

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// sanitizePathSegment normalizes a path segment for GCS object paths.
// - removes separators
// - trims dots/spaces
func sanitizePathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// prohibit separators
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "/", "_")
	// trim dots/spaces to avoid weird paths
	s = strings.Trim(s, ". ")
	return s
}

// newObjectID generates a random-ish id for object paths.
func newObjectID() string {
	// 8 bytes random => 16 hex chars
	b := make([]byte, 8)
	if _, err := rand.Read(b); err == nil {
		return hex.EncodeToString(b)
	}
	// fallback
	return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}

// ParseGSURL splits "gs://bucket/prefix" into bucket and prefix.
// A bare bucket name is accepted too.
func ParseGSURL(u string) (bucket string, prefix string, ok bool) {
	u = strings.TrimSpace(u)
	if u == "" {
		return "", "", false
	}
	if !strings.Contains(u, "://") {
		b, p, _ := strings.Cut(u, "/")
		return b, strings.Trim(p, "/"), b != ""
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme != "gs" || parsed.Host == "" {
		return "", "", false
	}
	return parsed.Host, strings.Trim(parsed.Path, "/"), true
}
