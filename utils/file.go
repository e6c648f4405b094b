package utils

import (
	"path/filepath"
	"strings"
)

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// FileExtension returns the lowercased extension of an uploaded filename,
// including the dot. Unknown image types fall back to .jpg so object keys
// stay predictable.
func FileExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedImageExtensions[ext] {
		return ".jpg"
	}
	return ext
}

// IsAllowedImage reports whether the filename looks like an image we accept
// for artwork and poster uploads.
func IsAllowedImage(filename string) bool {
	return allowedImageExtensions[strings.ToLower(filepath.Ext(filename))]
}
