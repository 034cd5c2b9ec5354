// Package detector runs YOLO object detection over images and videos, either
// through an ultralytics python subprocess or in-process with onnxruntime.
package detector

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/skyhookml/yolokit/skyhook"
)

var (
	ErrFileNotFound         = errors.New("file does not exist")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
)

var (
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".webp"}
	VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm"}
)

func SupportedExtensions() []string {
	var exts []string
	exts = append(exts, ImageExtensions...)
	exts = append(exts, VideoExtensions...)
	return exts
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// ValidateFile checks that path exists and looks like an image or video.
func ValidateFile(path string) error {
	if !skyhook.FileExists(path) {
		return errors.Wrapf(ErrFileNotFound, "file %s", path)
	}
	if !hasExt(path, ImageExtensions) && !hasExt(path, VideoExtensions) {
		return errors.Wrapf(
			ErrUnsupportedExtension, "%q (supported extensions: %s)",
			strings.ToLower(filepath.Ext(path)), strings.Join(SupportedExtensions(), ", "),
		)
	}
	return nil
}

func IsVideo(path string) bool {
	return hasExt(path, VideoExtensions)
}

func IsImage(path string) bool {
	return hasExt(path, ImageExtensions)
}
