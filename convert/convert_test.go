package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/skyhookml/yolokit/skyhook"
)

// dataset lays out an index, annotation files and empty images in a temp dir.
type dataset struct {
	t           *testing.T
	root        string
	index       string
	annotations string
	images      string
	output      string
}

func newDataset(t *testing.T, index string) *dataset {
	root := t.TempDir()
	ds := &dataset{
		t:           t,
		root:        root,
		index:       filepath.Join(root, "train.json"),
		annotations: filepath.Join(root, "annotations"),
		images:      filepath.Join(root, "images"),
		output:      filepath.Join(root, "labels", "train"),
	}
	test.That(t, os.MkdirAll(ds.annotations, 0755), test.ShouldBeNil)
	test.That(t, os.MkdirAll(ds.images, 0755), test.ShouldBeNil)
	test.That(t, os.WriteFile(ds.index, []byte(index), 0644), test.ShouldBeNil)
	return ds
}

func (ds *dataset) annotate(clip string, lines ...string) {
	content := strings.Join(lines, "\n") + "\n"
	test.That(ds.t, os.WriteFile(filepath.Join(ds.annotations, clip+".txt"), []byte(content), 0644), test.ShouldBeNil)
}

func (ds *dataset) addImages(ids ...int) {
	for _, id := range ids {
		fname := filepath.Join(ds.images, fmt.Sprintf("%d.jpg", id))
		test.That(ds.t, os.WriteFile(fname, nil, 0644), test.ShouldBeNil)
	}
}

func (ds *dataset) convert(workers int) Summary {
	summary, err := ConvertDataset(ds.index, ds.annotations, ds.output, ds.images, Options{
		Resolution: res4K,
		Workers:    workers,
	})
	test.That(ds.t, err, test.ShouldBeNil)
	return summary
}

func (ds *dataset) labelFiles() map[string]string {
	entries, err := os.ReadDir(ds.output)
	test.That(ds.t, err, test.ShouldBeNil)
	files := make(map[string]string)
	for _, entry := range entries {
		bytes, err := os.ReadFile(filepath.Join(ds.output, entry.Name()))
		test.That(ds.t, err, test.ShouldBeNil)
		files[entry.Name()] = string(bytes)
	}
	return files
}

func TestConvertDataset(t *testing.T) {
	ds := newDataset(t, `{"clip_01": {"0.png": {}, "1.png": {}, "2.png": {}}}`)
	ds.annotate("clip_01", "100,50,200,100", "0,0,3840,2160", "1920,1080,10,20")
	ds.addImages(0, 1, 2)

	summary := ds.convert(1)
	test.That(t, summary.Clean(), test.ShouldBeTrue)
	test.That(t, summary.ClipsProcessed, test.ShouldEqual, 1)
	test.That(t, summary.ClipsSkipped, test.ShouldEqual, 0)
	test.That(t, summary.FramesConverted, test.ShouldEqual, 3)
	test.That(t, summary.FramesSkipped, test.ShouldEqual, 0)

	files := ds.labelFiles()
	test.That(t, files, test.ShouldHaveLength, 3)
	test.That(t, files["0.txt"], test.ShouldEqual, "0 0.052083 0.046296 0.052083 0.046296\n")
	test.That(t, files["1.txt"], test.ShouldEqual, "0 0.500000 0.500000 1.000000 1.000000\n")
	test.That(t, files["2.txt"], test.ShouldEqual, "0 0.501302 0.504630 0.002604 0.009259\n")
}

func TestConvertFrameCountMismatch(t *testing.T) {
	ds := newDataset(t, `{
		"clip_01": {"0.png": {}, "1.png": {}},
		"clip_02": {"5.png": {}}
	}`)
	ds.annotate("clip_01", "1,1,1,1", "2,2,2,2", "3,3,3,3")
	ds.annotate("clip_02", "4,4,4,4")
	ds.addImages(0, 1, 5)

	summary := ds.convert(1)
	test.That(t, summary.Clean(), test.ShouldBeFalse)
	test.That(t, summary.ClipsSkipped, test.ShouldEqual, 1)
	test.That(t, summary.ClipsProcessed, test.ShouldEqual, 1)
	test.That(t, summary.FramesConverted, test.ShouldEqual, 1)
	test.That(t, summary.Warnings, test.ShouldHaveLength, 1)

	w := summary.Warnings[0]
	test.That(t, w.Kind, test.ShouldEqual, FrameCountMismatch)
	test.That(t, w.Kind.ClipScoped(), test.ShouldBeTrue)
	test.That(t, w.Clip, test.ShouldEqual, "clip_01")
	test.That(t, w.Frames, test.ShouldEqual, 2)
	test.That(t, w.BBoxes, test.ShouldEqual, 3)
	test.That(t, w.String(), test.ShouldContainSubstring, "(2 frames, 3 bboxes)")

	files := ds.labelFiles()
	test.That(t, files, test.ShouldHaveLength, 1)
	_, ok := files["0.txt"]
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = files["5.txt"]
	test.That(t, ok, test.ShouldBeTrue)
}

func TestConvertWriteFailure(t *testing.T) {
	ds := newDataset(t, `{"clip_01": {"0.png": {}, "1.png": {}}}`)
	ds.annotate("clip_01", "1,1,1,1", "2,2,2,2")
	ds.addImages(0, 1)
	// a directory where the first label should go
	test.That(t, os.MkdirAll(filepath.Join(ds.output, "0.txt"), 0755), test.ShouldBeNil)

	_, err := ConvertDataset(ds.index, ds.annotations, ds.output, ds.images, Options{Resolution: res4K, Workers: 1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "writing label for clip clip_01")
}

func TestConvertInvalidBox(t *testing.T) {
	ds := newDataset(t, `{"clip_01": {"0.png": {}, "1.png": {}, "2.png": {}}}`)
	ds.annotate("clip_01", "10,10,20,40", "10,10,oops,40", "30,30,20,20")
	ds.addImages(0, 1, 2)

	summary := ds.convert(1)
	test.That(t, summary.ClipsProcessed, test.ShouldEqual, 1)
	test.That(t, summary.FramesConverted, test.ShouldEqual, 2)
	test.That(t, summary.FramesSkipped, test.ShouldEqual, 1)
	test.That(t, summary.Warnings, test.ShouldHaveLength, 1)
	w := summary.Warnings[0]
	test.That(t, w.Kind, test.ShouldEqual, InvalidBoxFormat)
	test.That(t, w.Clip, test.ShouldEqual, "clip_01")
	test.That(t, w.Frame, test.ShouldEqual, "1.png")
	test.That(t, w.Line, test.ShouldEqual, "10,10,oops,40")
	test.That(t, w.String(), test.ShouldContainSubstring, "10,10,oops,40")

	files := ds.labelFiles()
	test.That(t, files, test.ShouldHaveLength, 2)
	_, ok := files["1.txt"]
	test.That(t, ok, test.ShouldBeFalse)
}

func TestConvertRecoverableFailures(t *testing.T) {
	ds := newDataset(t, `{
		"missing": {"9.png": {}},
		"clip": {"1.png": {}, "2.png": {}, "bad.png": {}, "0004.png": {}}
	}`)
	ds.annotate("clip", "1,1,1,1", "2,2,2,2", "3,3,3,3", "4,4,4,4")
	// no image for frame 2
	ds.addImages(1, 4, 9)

	summary := ds.convert(1)
	test.That(t, summary.ClipsSkipped, test.ShouldEqual, 1)
	test.That(t, summary.ClipsProcessed, test.ShouldEqual, 1)
	test.That(t, summary.FramesConverted, test.ShouldEqual, 2)
	test.That(t, summary.FramesSkipped, test.ShouldEqual, 2)
	test.That(t, summary.Warnings, test.ShouldHaveLength, 3)

	test.That(t, summary.Warnings[0].Kind, test.ShouldEqual, MissingAnnotationFile)
	test.That(t, summary.Warnings[0].Clip, test.ShouldEqual, "missing")
	test.That(t, summary.Warnings[0].Path, test.ShouldEqual, filepath.Join(ds.annotations, "missing.txt"))
	test.That(t, summary.Warnings[1].Kind, test.ShouldEqual, MissingImage)
	test.That(t, summary.Warnings[1].Path, test.ShouldEqual, filepath.Join(ds.images, "2.jpg"))
	test.That(t, summary.Warnings[2].Kind, test.ShouldEqual, InvalidFrameName)
	test.That(t, summary.Warnings[2].Frame, test.ShouldEqual, "bad.png")
	test.That(t, summary.Count(MissingImage), test.ShouldEqual, 1)

	files := ds.labelFiles()
	test.That(t, files, test.ShouldHaveLength, 2)
	_, ok := files["4.txt"]
	test.That(t, ok, test.ShouldBeTrue)
}

func TestConvertBlankLinesAndCRLF(t *testing.T) {
	ds := newDataset(t, `{"c": {"0.png": {}, "1.png": {}}}`)
	content := "\r\n  1,1,1,1  \r\n\r\n2,2,2,2\r\n\n"
	test.That(t, os.WriteFile(filepath.Join(ds.annotations, "c.txt"), []byte(content), 0644), test.ShouldBeNil)
	ds.addImages(0, 1)

	summary := ds.convert(1)
	test.That(t, summary.Clean(), test.ShouldBeTrue)
	test.That(t, summary.FramesConverted, test.ShouldEqual, 2)
}

func TestConvertIdempotent(t *testing.T) {
	ds := newDataset(t, `{"a": {"0.png": {}, "1.png": {}}, "b": {"2.png": {}}}`)
	ds.annotate("a", "5,6,7,8", "100,200,300,400")
	ds.annotate("b", "0,0,1,1")
	ds.addImages(0, 1, 2)

	first := ds.convert(1)
	before := ds.labelFiles()
	second := ds.convert(1)
	after := ds.labelFiles()
	test.That(t, second, test.ShouldResemble, first)
	test.That(t, after, test.ShouldResemble, before)
}

func TestConvertParallelMatchesSequential(t *testing.T) {
	var clips []string
	for c := 0; c < 12; c++ {
		clips = append(clips, fmt.Sprintf(`"clip_%02d": {"%d.png": {}, "%d.png": {}}`, c, 2*c, 2*c+1))
	}
	ds := newDataset(t, "{"+strings.Join(clips, ",")+"}")
	for c := 0; c < 12; c++ {
		switch c % 4 {
		case 0:
			ds.annotate(fmt.Sprintf("clip_%02d", c), "1,2,3,4", "5,6,7,8")
		case 1:
			ds.annotate(fmt.Sprintf("clip_%02d", c), "1,2,3,4")
		case 2:
			ds.annotate(fmt.Sprintf("clip_%02d", c), "1,2,x,4", "5,6,7,8")
		}
		ds.addImages(2*c, 2*c+1)
	}

	sequential := ds.convert(1)
	sequentialFiles := ds.labelFiles()
	test.That(t, os.RemoveAll(ds.output), test.ShouldBeNil)

	parallel := ds.convert(4)
	test.That(t, parallel, test.ShouldResemble, sequential)
	test.That(t, ds.labelFiles(), test.ShouldResemble, sequentialFiles)
	test.That(t, parallel.ClipsSkipped, test.ShouldEqual, 6)
	test.That(t, parallel.FramesConverted, test.ShouldEqual, 9)
}

func TestConvertFatalErrors(t *testing.T) {
	ds := newDataset(t, `["not", "a", "mapping"]`)
	_, err := ConvertDataset(ds.index, ds.annotations, ds.output, ds.images, Options{Resolution: res4K})
	test.That(t, errors.Is(err, ErrMalformedIndex), test.ShouldBeTrue)
	test.That(t, skyhook.FileExists(ds.output), test.ShouldBeFalse)

	ds = newDataset(t, `{}`)
	_, err = ConvertDataset(ds.index, ds.annotations, ds.output, ds.images, Options{})
	test.That(t, errors.Is(err, ErrInvalidResolution), test.ShouldBeTrue)

	summary, err := ConvertDataset(ds.index, ds.annotations, ds.output, ds.images, Options{Resolution: res4K})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Clean(), test.ShouldBeTrue)
	test.That(t, skyhook.FileExists(ds.output), test.ShouldBeTrue)
}
