package media

import (
	"net/url"
	"path"
	"strings"
)

// Outgoing image MIME types accepted by the destination media endpoint.
// Anything else is normalized to JPEG.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

const defaultImageType = "image/jpeg"

// normalizeImageType maps a downloaded Content-Type onto the allow-list,
// returning the outgoing MIME type and matching file extension.
func normalizeImageType(contentType string) (string, string) {
	mime := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "image/jpg" {
		mime = "image/jpeg"
	}

	ext, ok := allowedImageTypes[mime]
	if !ok {
		return defaultImageType, allowedImageTypes[defaultImageType]
	}
	return mime, ext
}

// fileNameFor derives the upload filename from the source URL, rewriting
// the extension to match the normalized MIME type.
func fileNameFor(sourceURL, ext string) string {
	var name string
	if u, err := url.Parse(sourceURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = "image"
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name + ext
}
