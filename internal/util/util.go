// Package util provides common utility functions used across the companion.
package util

import (
	"mime"
	"strings"
)

// invalidFileChars are the characters Windows refuses in file names.
// The game runs there, so downloaded map names must avoid all of them.
const invalidFileChars = `<>:"/\|?*`

// SanitizeFileName replaces every character that is not valid in a file
// name with an underscore and trims surrounding whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(invalidFileChars, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FileNameFromDisposition extracts the filename parameter from a
// Content-Disposition header value. Returns "" when the header is
// absent, malformed, or carries no filename.
func FileNameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// LastPathSegment returns the final non-empty segment of a URL path.
func LastPathSegment(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
