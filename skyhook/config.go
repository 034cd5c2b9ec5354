package skyhook

import (
	"fmt"
	"os"
	"strconv"
)

// Source frames of the dataset are 4K; every label in a run shares this canvas.
const (
	DefaultImageWidth  = 3840
	DefaultImageHeight = 2160

	EnvImageWidth  = "YOLOKIT_IMAGE_WIDTH"
	EnvImageHeight = "YOLOKIT_IMAGE_HEIGHT"
)

// Resolution is the fixed canvas size that absolute pixel boxes refer to.
type Resolution struct {
	Width  int
	Height int
}

var DefaultResolution = Resolution{Width: DefaultImageWidth, Height: DefaultImageHeight}

func (r Resolution) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d", r.Width, r.Height)
	}
	return nil
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ResolutionFromEnv starts from DefaultResolution and applies any
// YOLOKIT_IMAGE_WIDTH / YOLOKIT_IMAGE_HEIGHT overrides.
func ResolutionFromEnv() (Resolution, error) {
	res := DefaultResolution
	if s := os.Getenv(EnvImageWidth); s != "" {
		w, err := strconv.Atoi(s)
		if err != nil {
			return res, fmt.Errorf("invalid %s %q: %v", EnvImageWidth, s, err)
		}
		res.Width = w
	}
	if s := os.Getenv(EnvImageHeight); s != "" {
		h, err := strconv.Atoi(s)
		if err != nil {
			return res, fmt.Errorf("invalid %s %q: %v", EnvImageHeight, s, err)
		}
		res.Height = h
	}
	return res, res.Validate()
}
