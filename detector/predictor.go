package detector

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/skyhookml/yolokit/skyhook"
)

// Box is one detection in source image pixels.
type Box struct {
	Class      int     `json:"class"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

func (b Box) Area() float64 {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return 0
	}
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// Result holds the detections for one image, or one frame of a video.
type Result struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Boxes  []Box  `json:"boxes"`
}

type Request struct {
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	// Square inference size; 0 leaves it to the backend.
	ImageSize int    `json:"imgsz,omitempty"`
	Save      bool   `json:"save"`
	Project   string `json:"project"`
	Name      string `json:"name"`
	ExistOK   bool   `json:"exist_ok"`
}

// SaveDir is where annotated outputs for this request are written.
func (r Request) SaveDir() string {
	return filepath.Join(r.Project, r.Name)
}

type Predictor interface {
	// Class id to name.
	Names() map[int]string
	Predict(ctx context.Context, req Request) ([]Result, error)
	Close() error
}

type LoadOptions struct {
	// Python interpreter for the ultralytics backend.
	Python string
	// Square input size the ONNX model was exported with.
	ImageSize int
	// Path to the onnxruntime shared library.
	SharedLibrary string
	Threads       int
}

type LoadFunc func(ctx context.Context, modelPath string, opts LoadOptions) (Predictor, error)

// Load picks the backend from the model file extension.
func Load(ctx context.Context, modelPath string, opts LoadOptions) (Predictor, error) {
	if strings.ToLower(filepath.Ext(modelPath)) == ".onnx" {
		p, err := LoadONNX(modelPath, opts)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	p, err := LoadUltralytics(ctx, modelPath, opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func ClassName(names map[int]string, class int) string {
	if name, ok := names[class]; ok {
		return name
	}
	return fmt.Sprintf("%d", class)
}

// Detections converts boxes to integer pixel detections labelled with class names.
func Detections(boxes []Box, names map[int]string) []skyhook.Detection {
	detections := make([]skyhook.Detection, len(boxes))
	for i, b := range boxes {
		detections[i] = skyhook.Detection{
			Left:     int(b.X1),
			Top:      int(b.Y1),
			Right:    int(b.X2),
			Bottom:   int(b.Y2),
			Category: ClassName(names, b.Class),
			Score:    b.Confidence,
		}
	}
	return detections
}
