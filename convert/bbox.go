package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/skyhookml/yolokit/skyhook"
)

// RawBox is a top-left corner plus size in absolute pixels.
type RawBox struct {
	X int
	Y int
	W int
	H int
}

// NormalizedBox is a YOLO box: center and size as fractions of the canvas.
type NormalizedBox struct {
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

// LabelClass is the only class in the dataset.
const LabelClass = 0

var errBoxFormat = errors.New("expected four comma-separated integers")

func ConvertBBox(box RawBox, res skyhook.Resolution) NormalizedBox {
	w := float64(res.Width)
	h := float64(res.Height)
	return NormalizedBox{
		XCenter: (float64(box.X) + float64(box.W)/2) / w,
		YCenter: (float64(box.Y) + float64(box.H)/2) / h,
		Width:   float64(box.W) / w,
		Height:  float64(box.H) / h,
	}
}

// Absolute maps the box back to a top-left corner and size in pixels.
func (b NormalizedBox) Absolute(res skyhook.Resolution) (x, y, w, h float64) {
	w = b.Width * float64(res.Width)
	h = b.Height * float64(res.Height)
	x = b.XCenter*float64(res.Width) - w/2
	y = b.YCenter*float64(res.Height) - h/2
	return
}

// Raw is Absolute rounded to the nearest pixel.
func (b NormalizedBox) Raw(res skyhook.Resolution) RawBox {
	x, y, w, h := b.Absolute(res)
	return RawBox{
		X: int(math.Round(x)),
		Y: int(math.Round(y)),
		W: int(math.Round(w)),
		H: int(math.Round(h)),
	}
}

func (b NormalizedBox) Detection(res skyhook.Resolution) skyhook.Detection {
	raw := b.Raw(res)
	return skyhook.Detection{
		Left:   raw.X,
		Top:    raw.Y,
		Right:  raw.X + raw.W,
		Bottom: raw.Y + raw.H,
	}
}

// FormatLabel renders one label record, including the trailing newline.
func FormatLabel(b NormalizedBox) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f\n", LabelClass, b.XCenter, b.YCenter, b.Width, b.Height)
}

// ParseRawBox parses "x,y,w,h". Whitespace around each field is ignored.
func ParseRawBox(line string) (RawBox, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return RawBox{}, errors.Wrapf(errBoxFormat, "got %d fields in %q", len(parts), line)
	}
	var vals [4]int
	for i, part := range parts {
		x, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return RawBox{}, errors.Wrapf(errBoxFormat, "bad field %q in %q", part, line)
		}
		vals[i] = x
	}
	return RawBox{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// Suffixes stripped from frame names before parsing the numeric id.
var frameSuffixes = []string{".png", ".jpg", ".jpeg"}

// FrameID turns a frame name such as "0042.png" into 42.
func FrameID(frameName string) (int, error) {
	name := strings.TrimSpace(frameName)
	lower := strings.ToLower(name)
	for _, suffix := range frameSuffixes {
		if strings.HasSuffix(lower, suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	id, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("frame name %q is not numeric", frameName)
	}
	return id, nil
}
