package request

import (
	"fmt"
	"net/http"
	"strings"
)

// MaxImageSize is the largest accepted upload in bytes.
const MaxImageSize = 10 << 20 // 10MB

// Image is a validated image search upload.
type Image struct {
	data        []byte
	filename    string
	contentType string
}

// NewImage validates an uploaded image. When contentType is empty it is sniffed.
func NewImage(data []byte, filename, contentType string) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("image is required")
	}
	if len(data) > MaxImageSize {
		return Image{}, fmt.Errorf("image too large (max %d bytes)", MaxImageSize)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return Image{}, fmt.Errorf("unsupported content type %q", contentType)
	}
	return Image{data: data, filename: filename, contentType: contentType}, nil
}

// Data returns the raw image bytes.
func (i *Image) Data() []byte { return i.data }

// Filename returns the client-supplied file name (may be empty).
func (i *Image) Filename() string { return i.filename }

// ContentType returns the image MIME type.
func (i *Image) ContentType() string { return i.contentType }
