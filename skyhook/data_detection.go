package skyhook

import (
	"fmt"

	"github.com/mitroadmaps/gomapinfer/common"
)

type DetectionMetadata struct {
	CanvasDims [2]int
	Categories []string `json:",omitempty"`
}

// Detection is an axis-aligned box in absolute pixel coordinates.
type Detection struct {
	Left   int
	Top    int
	Right  int
	Bottom int

	// Optional metadata
	Category string  `json:",omitempty"`
	Score    float64 `json:",omitempty"`
}

// DetectionData holds one list of detections per frame.
type DetectionData struct {
	Detections [][]Detection
	Metadata   DetectionMetadata
}

func (d Detection) Width() int {
	return d.Right - d.Left
}

func (d Detection) Height() int {
	return d.Bottom - d.Top
}

func (d Detection) Rectangle() common.Rectangle {
	return common.Rectangle{
		Min: common.Point{X: float64(d.Left), Y: float64(d.Top)},
		Max: common.Point{X: float64(d.Right), Y: float64(d.Bottom)},
	}
}

// Label is the caption drawn above a detection, e.g. "person: 0.87".
func (d Detection) Label() string {
	if d.Category == "" {
		return fmt.Sprintf("%.2f", d.Score)
	}
	return fmt.Sprintf("%s: %.2f", d.Category, d.Score)
}

// DetectionsExtent returns the smallest rectangle covering every detection,
// or common.EmptyRectangle if there are none.
func DetectionsExtent(detections []Detection) common.Rectangle {
	rect := common.EmptyRectangle
	for _, d := range detections {
		r := d.Rectangle()
		rect = rect.Extend(r.Min).Extend(r.Max)
	}
	return rect
}

func (d DetectionData) Length() int {
	return len(d.Detections)
}

// Count is the total number of detections over all frames.
func (d DetectionData) Count() int {
	var n int
	for _, frame := range d.Detections {
		n += len(frame)
	}
	return n
}
