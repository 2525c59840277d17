package board

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// mediaTypes maps supported extensions to the media subtype declared to the
// remote API. The extension check is case-insensitive.
var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// SupportedExtensions returns the allowed extensions in stable order.
func SupportedExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".webp"}
}

// UnsupportedFormatError reports an extension outside the supported set.
// It is detected locally, before any network call.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf(
		"unsupported image format %q (allowed: %s)",
		e.Ext, strings.Join(SupportedExtensions(), ", "),
	)
}

// MediaType resolves the declared media subtype for path.
func MediaType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mt, ok := mediaTypes[ext]
	if !ok {
		return "", &UnsupportedFormatError{Ext: filepath.Ext(path)}
	}
	return mt, nil
}

// Supported reports whether path has a supported image extension.
func Supported(path string) bool {
	_, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Image is an immutable board photograph held in memory for the two vision
// stages.
type Image struct {
	Path      string
	Stem      string
	MediaType string
	Data      []byte
}

// Load reads the image at path once. When maxDim > 0 and the photo's longest
// side exceeds it, the image is downscaled before encoding to keep the
// request payload within budget. Downscaling applies to jpeg/png only; webp
// passes through unchanged.
func Load(path string, maxDim int) (*Image, error) {
	mt, err := MediaType(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	if maxDim > 0 && mt != "image/webp" {
		data, err = downscale(data, mt, maxDim)
		if err != nil {
			return nil, fmt.Errorf("downscale %s: %w", filepath.Base(path), err)
		}
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Image{
		Path:      path,
		Stem:      stem,
		MediaType: mt,
		Data:      data,
	}, nil
}

// DataURI returns the inline base64 form sent to the remote API.
func (i *Image) DataURI() string {
	return "data:" + i.MediaType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

func downscale(data []byte, mediaType string, maxDim int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxDim && bounds.Dy() <= maxDim {
		return data, nil
	}

	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	switch mediaType {
	case "image/jpeg":
		err = imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(90))
	case "image/png":
		err = imaging.Encode(&buf, resized, imaging.PNG)
	default:
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
