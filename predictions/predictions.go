// Package predictions burns hosted-inference JSON results onto the images
// they were computed for.
package predictions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/skyhookml/yolokit/skyhook"
)

// ImageExtensions are tried in order when pairing a JSON file with its image.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff"}

// Prediction is one box of a result document, centred at (X, Y).
type Prediction struct {
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Confidence float64
	Class      string
}

// Corners truncates like the hosted tool's own renderer: centre and size
// first, then the half-size offsets.
func (p Prediction) Corners() (x1, y1, x2, y2 int) {
	x, y := int(p.X), int(p.Y)
	w, h := int(p.Width), int(p.Height)
	x1 = int(float64(x) - float64(w)/2)
	y1 = int(float64(y) - float64(h)/2)
	x2 = int(float64(x) + float64(w)/2)
	y2 = int(float64(y) + float64(h)/2)
	return
}

func (p Prediction) Label() string {
	return fmt.Sprintf("%s: %.2f", p.Class, p.Confidence)
}

func parsePrediction(r gjson.Result) (Prediction, error) {
	for _, key := range []string{"x", "y", "width", "height", "confidence", "class"} {
		if !r.Get(key).Exists() {
			return Prediction{}, fmt.Errorf("prediction is missing %q", key)
		}
	}
	return Prediction{
		X:          r.Get("x").Float(),
		Y:          r.Get("y").Float(),
		Width:      r.Get("width").Float(),
		Height:     r.Get("height").Float(),
		Confidence: r.Get("confidence").Float(),
		Class:      r.Get("class").String(),
	}, nil
}

// ParsePredictions extracts the boxes of the first result set in doc.
// ok is false if doc is not a non-empty JSON array.
func ParsePredictions(doc []byte) (preds []Prediction, ok bool, err error) {
	if !gjson.ValidBytes(doc) {
		return nil, false, nil
	}
	root := gjson.ParseBytes(doc)
	if !root.IsArray() || len(root.Array()) == 0 {
		return nil, false, nil
	}
	for _, r := range root.Get("0.predictions.predictions").Array() {
		pred, err := parsePrediction(r)
		if err != nil {
			return nil, true, err
		}
		preds = append(preds, pred)
	}
	return preds, true, nil
}

// DrawPredictions draws the predictions in jsonPath onto imagePath and saves
// the result to outputPath. It returns false when the pair should be counted
// as skipped, and true when it was handled, including the case of a result
// with no predictions where nothing is written.
func DrawPredictions(imagePath string, jsonPath string, outputPath string) (bool, error) {
	doc, err := os.ReadFile(jsonPath)
	if err != nil {
		return false, err
	}
	preds, ok, err := ParsePredictions(doc)
	if err != nil {
		return false, errors.Wrap(err, jsonPath)
	} else if !ok {
		log.Warnf("[predictions] %s is not a non-empty JSON array, skipping", jsonPath)
		return false, nil
	}

	im, err := skyhook.ImageFromFile(imagePath)
	if err != nil {
		log.Warnf("[predictions] could not read image at %s, skipping: %v", imagePath, err)
		return false, nil
	}

	if len(preds) == 0 {
		log.Warnf("[predictions] no predictions in %s for image %s", jsonPath, imagePath)
		return true, nil
	}

	for _, pred := range preds {
		x1, y1, x2, y2 := pred.Corners()
		im.DrawRectangle(x1, y1, x2, y2, 1, skyhook.Green)
		im.DrawText(skyhook.RichText{
			Text:  pred.Label(),
			X:     x1,
			Y:     y1 - 10,
			Color: skyhook.Green,
		})
	}
	if err := im.WriteFile(outputPath); err != nil {
		return false, errors.Wrapf(err, "error saving image %s", outputPath)
	}
	log.Printf("[predictions] saved predictions for %s to %s", filepath.Base(imagePath), outputPath)
	return true, nil
}

type Summary struct {
	Processed int
	Skipped   int
}

func (s Summary) String() string {
	return fmt.Sprintf("Processing complete. %d images saved with predictions. %d files skipped or had issues.", s.Processed, s.Skipped)
}

// FindImage returns the image next to jsonPath sharing its base name.
func FindImage(jsonPath string) (string, bool) {
	stem := strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath))
	for _, ext := range ImageExtensions {
		if fname := stem + ext; skyhook.FileExists(fname) {
			return fname, true
		}
	}
	return "", false
}

// ProcessDir pairs every *.json in baseDir with its image and writes the
// annotated images into outputDir under the image's own file name.
func ProcessDir(baseDir string, outputDir string) (Summary, error) {
	var summary Summary
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return summary, err
	}
	jsonFiles, err := filepath.Glob(filepath.Join(baseDir, "*.json"))
	if err != nil {
		return summary, err
	}
	if len(jsonFiles) == 0 {
		log.Printf("[predictions] no JSON files found in %s", baseDir)
		return summary, nil
	}

	for _, jsonPath := range jsonFiles {
		if fi, err := os.Stat(jsonPath); err != nil || fi.Size() == 0 {
			log.Printf("[predictions] skipping empty JSON file: %s", jsonPath)
			summary.Skipped++
			continue
		}
		imagePath, ok := FindImage(jsonPath)
		if !ok {
			log.Warnf("[predictions] no matching image for %s", jsonPath)
			summary.Skipped++
			continue
		}
		log.Printf("[predictions] processing %s with %s", filepath.Base(imagePath), filepath.Base(jsonPath))
		success, err := DrawPredictions(imagePath, jsonPath, filepath.Join(outputDir, filepath.Base(imagePath)))
		if err != nil {
			log.Printf("[predictions] error processing %s: %v", filepath.Base(imagePath), err)
		}
		if success {
			summary.Processed++
		} else {
			summary.Skipped++
		}
	}
	log.Printf("[predictions] %s", summary)
	return summary, nil
}
