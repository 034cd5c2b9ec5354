// Package verify draws converted YOLO labels back onto their source image so
// a conversion can be checked by eye.
package verify

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/skyhookml/yolokit/convert"
	"github.com/skyhookml/yolokit/skyhook"
)

type Options struct {
	// Canvas the labels were normalized against.
	Resolution skyhook.Resolution
	// Output size as a percentage of the (cropped) image. 0 means DefaultScalePercent.
	ScalePercent int
	// If positive, crop to the union of all boxes grown by this many pixels.
	CropPad int
	Color   [3]uint8
}

const DefaultScalePercent = 30

func DefaultOptions() Options {
	return Options{
		Resolution:   skyhook.DefaultResolution,
		ScalePercent: DefaultScalePercent,
		Color:        skyhook.Green,
	}
}

// LabelDetections converts label records to pixel boxes on the configured canvas.
func LabelDetections(labels []convert.Label, res skyhook.Resolution) []skyhook.Detection {
	detections := make([]skyhook.Detection, len(labels))
	for i, label := range labels {
		detections[i] = label.Box.Detection(res)
		detections[i].Category = fmt.Sprintf("%d", label.Class)
	}
	return detections
}

// Overlay returns the preview image for one image/label pair.
func Overlay(imagePath, labelPath string, opts Options) (skyhook.Image, error) {
	if err := opts.Resolution.Validate(); err != nil {
		return skyhook.Image{}, err
	}
	if !skyhook.FileExists(imagePath) {
		return skyhook.Image{}, fmt.Errorf("picture not found: %s", imagePath)
	}
	im, err := skyhook.ImageFromFile(imagePath)
	if err != nil {
		return skyhook.Image{}, errors.Wrap(err, "picture could not be read")
	}
	if im.Width != opts.Resolution.Width || im.Height != opts.Resolution.Height {
		log.Warnf("[verify] %s is %dx%d but labels are drawn for %v", imagePath, im.Width, im.Height, opts.Resolution)
	}
	labels, err := convert.ReadLabels(labelPath)
	if err != nil {
		return skyhook.Image{}, err
	}
	detections := LabelDetections(labels, opts.Resolution)
	log.Printf("[verify] %s: drawing %d boxes", imagePath, len(detections))

	color := opts.Color
	if color == ([3]uint8{}) {
		color = skyhook.Green
	}
	im = skyhook.RenderDetections(im, detections, skyhook.RenderOptions{
		Color:     color,
		Thickness: 1,
	})

	if opts.CropPad > 0 && len(detections) > 0 {
		rect := skyhook.DetectionsExtent(detections).AddTol(float64(opts.CropPad))
		im = im.Crop(int(rect.Min.X), int(rect.Min.Y), int(rect.Max.X), int(rect.Max.Y))
		if im.Width == 0 || im.Height == 0 {
			return skyhook.Image{}, fmt.Errorf("boxes in %s lie outside %s", labelPath, imagePath)
		}
	}

	scale := opts.ScalePercent
	if scale <= 0 {
		scale = DefaultScalePercent
	}
	return im.Scale(scale), nil
}

// Run writes the preview to outputPath; the format follows its extension.
func Run(imagePath, labelPath, outputPath string, opts Options) error {
	im, err := Overlay(imagePath, labelPath, opts)
	if err != nil {
		return err
	}
	if err := im.WriteFile(outputPath); err != nil {
		return err
	}
	log.Printf("[verify] wrote %dx%d preview to %s", im.Width, im.Height, outputPath)
	return nil
}
