package utils

import (
	"path/filepath"
	"strings"
)

// SanitizeFilename reduces an uploaded filename to a safe base name: path
// components are stripped and characters outside [A-Za-z0-9._-] replaced
// with underscores. Empty or fully-stripped names become "sample".
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		name = ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "sample"
	}
	return out
}

// ContentTypeByExt maps an image filename extension to its MIME type.
func ContentTypeByExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
