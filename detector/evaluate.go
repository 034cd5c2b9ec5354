package detector

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/skyhookml/yolokit/skyhook"
)

// Settings for a one-off check of trained weights against a single image.
const (
	EvalImageSize  = 416
	EvalConfidence = 0.25
	EvalProject    = "personinwater_predictions"
	EvalName       = "simple_test_run"
)

// Evaluate loads weights with load (Load if nil) and saves an annotated
// prediction for testImage under EvalProject/EvalName.
func Evaluate(ctx context.Context, weights string, testImage string, out io.Writer, load LoadFunc) error {
	if !skyhook.FileExists(weights) {
		fmt.Fprintf(out, "ERROR: Model weights not found at '%s'\n", weights)
		return errors.Wrapf(ErrFileNotFound, "weights %s", weights)
	}
	if !skyhook.FileExists(testImage) {
		fmt.Fprintf(out, "ERROR: Test image not found at '%s'\n", testImage)
		return errors.Wrapf(ErrFileNotFound, "test image %s", testImage)
	}
	if load == nil {
		load = Load
	}

	fmt.Fprintf(out, "Loading model from: %s\n", weights)
	p, err := load(ctx, weights, LoadOptions{ImageSize: EvalImageSize})
	if err != nil {
		return errors.Wrap(err, "error loading model")
	}
	defer p.Close()
	fmt.Fprintln(out, "Model loaded successfully.")

	fmt.Fprintf(out, "Predicting on image: %s\n", testImage)
	req := Request{
		Source:     testImage,
		ImageSize:  EvalImageSize,
		Confidence: EvalConfidence,
		Save:       true,
		Project:    EvalProject,
		Name:       EvalName,
		ExistOK:    true,
	}
	if _, err := p.Predict(ctx, req); err != nil {
		return errors.Wrap(err, "error during prediction")
	}
	fmt.Fprintf(out, "Prediction complete. Results saved in '%s'\n", req.SaveDir())
	return nil
}
