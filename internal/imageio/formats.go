package imageio

import (
	"mime"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the upload formats accepted at the boundary.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".tiff", ".tif", ".bmp"}

var supportedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/tiff": true,
	"image/bmp":  true,
}

// IsSupportedFile reports whether name has an accepted image extension.
func IsSupportedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// IsSupportedContentType reports whether a MIME type is accepted. Parameters
// such as charset are ignored. An empty type is not accepted.
func IsSupportedContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return supportedContentTypes[strings.ToLower(mt)]
}
