package detector

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/skyhookml/yolokit/skyhook"
)

const (
	DefaultImageSize = 640
	NMSThreshold     = 0.7

	// Environment variable naming the onnxruntime shared library.
	SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY"
)

var (
	ortOnce sync.Once
	ortErr  error
)

func initONNXRuntime(lib string) error {
	ortOnce.Do(func() {
		if lib == "" {
			lib = os.Getenv(SharedLibraryEnv)
		}
		if lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ONNX runs an exported YOLOv8-style model in-process. The model takes a
// 1x3xSxS float input named "images" and produces "output0" shaped
// 1x(4+classes)xAnchors, with rows cx, cy, w, h followed by class scores.
type ONNX struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	size    int
	anchors int
	names   map[int]string
}

// NumAnchors is the number of predictions for a square input of the given
// size at strides 8, 16 and 32.
func NumAnchors(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		n += (size / stride) * (size / stride)
	}
	return n
}

// LoadNames reads one class name per line, skipping blank lines.
func LoadNames(fname string) (map[int]string, error) {
	bytes, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string)
	for _, line := range strings.Split(string(bytes), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		names[len(names)] = line
	}
	return names, nil
}

// namesFor looks for model.names next to model.onnx, falling back to COCO.
func namesFor(modelPath string) map[int]string {
	fname := strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".names"
	if names, err := LoadNames(fname); err == nil && len(names) > 0 {
		return names
	}
	names := make(map[int]string)
	for i, name := range COCONames {
		names[i] = name
	}
	return names
}

func LoadONNX(modelPath string, opts LoadOptions) (*ONNX, error) {
	if !skyhook.FileExists(modelPath) {
		return nil, errors.Wrapf(ErrFileNotFound, "model %s", modelPath)
	}
	if err := initONNXRuntime(opts.SharedLibrary); err != nil {
		return nil, errors.Wrap(err, "error initializing onnxruntime")
	}
	size := opts.ImageSize
	if size <= 0 {
		size = DefaultImageSize
	}
	names := namesFor(modelPath)
	anchors := NumAnchors(size)

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), make([]float32, 3*size*size))
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+len(names)), int64(anchors)))
	if err != nil {
		input.Destroy()
		return nil, err
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()
	if opts.Threads > 0 {
		options.SetIntraOpNumThreads(opts.Threads)
	}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"images"}, []string{"output0"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "error loading %s", modelPath)
	}
	log.Printf("[onnx] loaded %s (input %dx%d, %d classes)", modelPath, size, size, len(names))
	return &ONNX{
		session: session,
		input:   input,
		output:  output,
		size:    size,
		anchors: anchors,
		names:   names,
	}, nil
}

func (o *ONNX) Names() map[int]string {
	return o.names
}

// fillInput writes im, stretched to size x size, as planar RGB in [0, 1].
func fillInput(data []float32, im skyhook.Image, size int) {
	if im.Width != size || im.Height != size {
		im = im.Resize(size, size)
	}
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			rgb := im.GetRGB(x, y)
			idx := y*size + x
			data[idx] = float32(rgb[0]) / 255
			data[plane+idx] = float32(rgb[1]) / 255
			data[2*plane+idx] = float32(rgb[2]) / 255
		}
	}
}

// decodeOutput turns the raw model output into boxes in source image pixels.
func decodeOutput(out []float32, numClasses int, anchors int, size int, width int, height int, confidence float64) []Box {
	sx := float64(width) / float64(size)
	sy := float64(height) / float64(size)
	var boxes []Box
	for i := 0; i < anchors; i++ {
		class, score := 0, float32(-1)
		for c := 0; c < numClasses; c++ {
			if s := out[(4+c)*anchors+i]; s > score {
				class, score = c, s
			}
		}
		if float64(score) < confidence {
			continue
		}
		cx := float64(out[i])
		cy := float64(out[anchors+i])
		w := float64(out[2*anchors+i])
		h := float64(out[3*anchors+i])
		boxes = append(boxes, Box{
			Class:      class,
			Confidence: float64(score),
			X1:         math.Max(0, (cx-w/2)*sx),
			Y1:         math.Max(0, (cy-h/2)*sy),
			X2:         math.Min(float64(width), (cx+w/2)*sx),
			Y2:         math.Min(float64(height), (cy+h/2)*sy),
		})
	}
	return NMS(boxes, NMSThreshold)
}

func (o *ONNX) detect(im skyhook.Image, confidence float64) ([]Box, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil, fmt.Errorf("predictor is closed")
	}
	fillInput(o.input.GetData(), im, o.size)
	if err := o.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	return decodeOutput(o.output.GetData(), len(o.names), o.anchors, o.size, im.Width, im.Height, confidence), nil
}

func (o *ONNX) render(im skyhook.Image, boxes []Box) skyhook.Image {
	return skyhook.RenderDetections(im, Detections(boxes, o.names), skyhook.DefaultRenderOptions)
}

func (o *ONNX) Predict(ctx context.Context, req Request) ([]Result, error) {
	if req.ImageSize > 0 && req.ImageSize != o.size {
		log.Warnf("[onnx] model was exported at %d, ignoring requested size %d", o.size, req.ImageSize)
	}
	if req.Save {
		if err := prepareSaveDir(req); err != nil {
			return nil, err
		}
	}
	if IsVideo(req.Source) {
		return o.predictVideo(ctx, req)
	}

	im, err := skyhook.ImageFromFile(req.Source)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %s", req.Source)
	}
	boxes, err := o.detect(im, req.Confidence)
	if err != nil {
		return nil, err
	}
	if req.Save {
		outPath := filepath.Join(req.SaveDir(), filepath.Base(req.Source))
		if skyhook.FormatFromExt(outPath) == "" {
			outPath = filepath.Join(req.SaveDir(), skyhook.TrimExt(req.Source)+".jpg")
		}
		if err := o.render(im, boxes).WriteFile(outPath); err != nil {
			return nil, err
		}
	}
	return []Result{{
		Path:   req.Source,
		Width:  im.Width,
		Height: im.Height,
		Boxes:  boxes,
	}}, nil
}

func (o *ONNX) predictVideo(ctx context.Context, req Request) ([]Result, error) {
	info, err := skyhook.Ffprobe(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	dims := [2]int{info.Width, info.Height}
	rd, err := skyhook.ReadFfmpeg(ctx, req.Source, dims, info.Framerate)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	var frames chan skyhook.Image
	var encoder *skyhook.Cmd
	if req.Save {
		frames = make(chan skyhook.Image, 8)
		outPath := filepath.Join(req.SaveDir(), skyhook.TrimExt(req.Source)+".mp4")
		encoder, err = skyhook.MakeVideo(&skyhook.ChanReader{Ch: frames}, dims, info.Framerate, outPath)
		if err != nil {
			return nil, err
		}
	}
	finish := func() error {
		if encoder == nil {
			return nil
		}
		close(frames)
		err := encoder.Wait()
		encoder = nil
		return err
	}
	defer finish()

	var results []Result
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		im, err := rd.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		boxes, err := o.detect(im, req.Confidence)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{
			Path:   req.Source,
			Width:  im.Width,
			Height: im.Height,
			Boxes:  boxes,
		})
		if frames != nil {
			frames <- o.render(im, boxes)
		}
	}
	if err := finish(); err != nil {
		return nil, errors.Wrap(err, "error encoding annotated video")
	}
	log.Printf("[onnx] %s: %d frames", req.Source, len(results))
	return results, nil
}

func (o *ONNX) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	err := o.session.Destroy()
	o.input.Destroy()
	o.output.Destroy()
	o.session = nil
	return err
}

// prepareSaveDir creates the output directory, refusing to reuse an existing
// one unless ExistOK is set.
func prepareSaveDir(req Request) error {
	dir := req.SaveDir()
	if skyhook.FileExists(dir) && !req.ExistOK {
		return fmt.Errorf("output directory %s already exists", dir)
	}
	return os.MkdirAll(dir, 0755)
}
