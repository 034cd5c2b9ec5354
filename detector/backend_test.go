package detector

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/skyhookml/yolokit/skyhook"
)

func TestNumAnchors(t *testing.T) {
	test.That(t, NumAnchors(640), test.ShouldEqual, 8400)
	test.That(t, NumAnchors(416), test.ShouldEqual, 3549)
}

func TestDecodeOutput(t *testing.T) {
	const anchors = 3
	const classes = 2
	out := make([]float32, (4+classes)*anchors)
	set := func(anchor int, cx, cy, w, h float32, scores ...float32) {
		for row, v := range append([]float32{cx, cy, w, h}, scores...) {
			out[row*anchors+anchor] = v
		}
	}
	set(0, 50, 50, 20, 40, 0.1, 0.9)
	// overlaps anchor 0 heavily, lower score
	set(1, 51, 50, 20, 40, 0.8, 0.2)
	set(2, 90, 10, 40, 40, 0.1, 0.2)

	boxes := decodeOutput(out, classes, anchors, 100, 200, 100, 0.25)
	test.That(t, boxes, test.ShouldHaveLength, 1)
	b := boxes[0]
	test.That(t, b.Class, test.ShouldEqual, 1)
	test.That(t, b.Confidence, test.ShouldAlmostEqual, 0.9, 1e-6)
	test.That(t, b.X1, test.ShouldAlmostEqual, 80.0)
	test.That(t, b.Y1, test.ShouldAlmostEqual, 30.0)
	test.That(t, b.X2, test.ShouldAlmostEqual, 120.0)
	test.That(t, b.Y2, test.ShouldAlmostEqual, 70.0)

	boxes = decodeOutput(out, classes, anchors, 100, 200, 100, 0.15)
	test.That(t, boxes, test.ShouldHaveLength, 2)
	// clamped to the image
	test.That(t, boxes[1].X2, test.ShouldAlmostEqual, 200.0)
	test.That(t, boxes[1].Y1, test.ShouldAlmostEqual, 0.0)
}

func TestFillInput(t *testing.T) {
	im := skyhook.NewImage(2, 2)
	im.SetRGB(1, 0, [3]uint8{255, 0, 51})
	data := make([]float32, 3*2*2)
	fillInput(data, im, 2)
	test.That(t, data[1], test.ShouldEqual, float32(1))
	test.That(t, data[4+1], test.ShouldEqual, float32(0))
	test.That(t, data[8+1], test.ShouldAlmostEqual, 0.2, 1e-6)
	test.That(t, data[0], test.ShouldEqual, float32(0))
}

func TestNamesFor(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "water.onnx")
	names := namesFor(model)
	test.That(t, names, test.ShouldHaveLength, 80)
	test.That(t, names[0], test.ShouldEqual, "person")

	test.That(t, os.WriteFile(filepath.Join(dir, "water.names"), []byte("swimmer\n\nboat\n"), 0644), test.ShouldBeNil)
	names = namesFor(model)
	test.That(t, names, test.ShouldResemble, map[int]string{0: "swimmer", 1: "boat"})
}

func TestUltralyticsProtocol(t *testing.T) {
	names := parseNames(`{"0": "person", "1": "boat", "x": "bad"}`)
	test.That(t, names, test.ShouldResemble, map[int]string{0: "person", 1: "boat"})

	done, result, err := parseResponse(`json {"path": "a.jpg", "width": 8, "height": 6, "boxes": [{"class": 1, "confidence": 0.5, "x1": 1, "y1": 2, "x2": 3, "y2": 4}]}`)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeFalse)
	test.That(t, *result, test.ShouldResemble, Result{
		Path: "a.jpg", Width: 8, Height: 6,
		Boxes: []Box{{Class: 1, Confidence: 0.5, X1: 1, Y1: 2, X2: 3, Y2: 4}},
	})

	done, result, err = parseResponse("done")
	test.That(t, done, test.ShouldBeTrue)
	test.That(t, result, test.ShouldBeNil)
	test.That(t, err, test.ShouldBeNil)

	_, _, err = parseResponse("error no such file")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no such file")

	done, result, err = parseResponse("Ultralytics 8.1.0 Python-3.10")
	test.That(t, done, test.ShouldBeFalse)
	test.That(t, result, test.ShouldBeNil)
	test.That(t, err, test.ShouldBeNil)
}
