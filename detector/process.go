package detector

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"github.com/skyhookml/yolokit/skyhook"
)

// RunName is the subdirectory of the output directory that ProcessFile saves into.
const RunName = "detection"

const SummaryFile = "detections.json"

type Report struct {
	Source  string
	SaveDir string
	Results []Result
	Total   int
}

// Data collects the boxes of every result, one frame per result. The canvas
// is the size of the first result.
func (r Report) Data(names map[int]string) skyhook.DetectionData {
	data := skyhook.DetectionData{
		Detections: make([][]skyhook.Detection, len(r.Results)),
	}
	for i, result := range r.Results {
		data.Detections[i] = Detections(result.Boxes, names)
	}
	if len(r.Results) > 0 {
		data.Metadata.CanvasDims = [2]int{r.Results[0].Width, r.Results[0].Height}
	}
	for i := 0; i < len(names); i++ {
		data.Metadata.Categories = append(data.Metadata.Categories, ClassName(names, i))
	}
	return data
}

// ProcessFile runs p over one image or video, prints what was found to out
// and saves annotated outputs plus a JSON summary under outputDir/detection.
func ProcessFile(ctx context.Context, p Predictor, path string, outputDir string, confidence float64, out io.Writer) (Report, error) {
	fmt.Fprintf(out, "Processing file: %s\n", path)
	req := Request{
		Source:     path,
		Confidence: confidence,
		Save:       true,
		Project:    outputDir,
		Name:       RunName,
		ExistOK:    true,
	}
	results, err := p.Predict(ctx, req)
	if err != nil {
		return Report{}, err
	}
	report := Report{
		Source:  path,
		SaveDir: req.SaveDir(),
		Results: results,
	}

	names := p.Names()
	for _, result := range results {
		n := len(result.Boxes)
		report.Total += n
		// only the first result with detections is listed
		if n == 0 || report.Total != n {
			continue
		}
		fmt.Fprintf(out, "Detected %d objects:\n", n)
		for _, box := range result.Boxes {
			fmt.Fprintf(out, "  - %s: %.2f\n", ClassName(names, box.Class), box.Confidence)
		}
	}
	if report.Total == 0 {
		fmt.Fprintln(out, "No objects detected")
	} else {
		fmt.Fprintf(out, "Total detections: %d objects\n", report.Total)
	}

	if err := writeSummary(report, names); err != nil {
		return report, err
	}
	fmt.Fprintf(out, "Results saved in directory: %s/%s/\n", outputDir, RunName)
	return report, nil
}

// SummaryJSON renders the report with class names resolved.
func SummaryJSON(report Report, names map[int]string) (string, error) {
	doc := `{}`
	var err error
	set := func(path string, value interface{}) {
		if err == nil {
			doc, err = sjson.Set(doc, path, value)
		}
	}
	data := report.Data(names)
	set("source", report.Source)
	set("total", data.Count())
	set("frames", data.Length())
	set("canvas", data.Metadata.CanvasDims)
	set("results", []interface{}{})
	for i, result := range report.Results {
		prefix := fmt.Sprintf("results.%d", i)
		set(prefix+".path", result.Path)
		set(prefix+".width", result.Width)
		set(prefix+".height", result.Height)
		set(prefix+".boxes", []interface{}{})
		for j, box := range result.Boxes {
			boxPrefix := fmt.Sprintf("%s.boxes.%d", prefix, j)
			set(boxPrefix+".class", box.Class)
			set(boxPrefix+".name", ClassName(names, box.Class))
			set(boxPrefix+".confidence", box.Confidence)
			set(boxPrefix+".xyxy", []float64{box.X1, box.Y1, box.X2, box.Y2})
		}
	}
	return doc, err
}

func writeSummary(report Report, names map[int]string) error {
	doc, err := SummaryJSON(report, names)
	if err != nil {
		return errors.Wrap(err, "error building detection summary")
	}
	if err := os.MkdirAll(report.SaveDir, 0755); err != nil {
		return err
	}
	fname := filepath.Join(report.SaveDir, SummaryFile)
	if err := os.WriteFile(fname, []byte(doc), 0644); err != nil {
		return err
	}
	log.Debugf("[detector] wrote %s", fname)
	return nil
}
