// Package convert turns per-clip pixel bounding-box annotations into YOLO
// label files.
//
// The input is a JSON index mapping each clip id to its ordered frame names,
// plus one text file per clip with one "x,y,w,h" line per frame in the same
// order. Each converted frame gets a {frame id}.txt file in the output
// directory holding a single class-0 label in normalized center/size form.
package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/skyhookml/yolokit/skyhook"
)

var ErrInvalidResolution = errors.New("invalid resolution")

type Options struct {
	// Canvas the raw pixel boxes refer to. Required.
	Resolution skyhook.Resolution
	// Number of clips converted concurrently. Values below 2 mean sequential.
	Workers int
}

type labelFile struct {
	name    string
	content string
}

// clipResult is everything one clip produces. Label files are only written
// by ConvertDataset after the clip has passed its line count check, so a
// skipped clip never leaves files behind.
type clipResult struct {
	skipped       bool
	labels        []labelFile
	warnings      []Warning
	framesSkipped int
}

func (r *clipResult) skipClip(w Warning) {
	r.skipped = true
	r.warnings = append(r.warnings, w)
}

func (r *clipResult) skipFrame(w Warning) {
	r.framesSkipped++
	r.warnings = append(r.warnings, w)
}

type converter struct {
	annotationsDir string
	imageDir       string
	res            skyhook.Resolution
}

// ConvertDataset converts every clip of the index at indexPath, writing label
// files to outputDir. Per-clip and per-frame problems are returned as
// warnings in the Summary; an error is returned only if the index cannot be
// loaded, the resolution is invalid, or the output directory cannot be
// created or written.
func ConvertDataset(indexPath, annotationsDir, outputDir, imageDir string, opts Options) (Summary, error) {
	if err := opts.Resolution.Validate(); err != nil {
		return Summary{}, errors.Wrap(ErrInvalidResolution, err.Error())
	}
	index, err := LoadIndex(indexPath)
	if err != nil {
		return Summary{}, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return Summary{}, errors.Wrap(err, "creating label directory")
	}
	log.Printf("[convert] %s: %d clips, %d frames, resolution %v", indexPath, len(index), index.NumFrames(), opts.Resolution)

	c := converter{
		annotationsDir: annotationsDir,
		imageDir:       imageDir,
		res:            opts.Resolution,
	}
	var summary Summary
	err = c.forEachClip(index, opts.Workers, func(clip Clip, result clipResult) error {
		for _, w := range result.warnings {
			log.Warnf("[convert] %s", w)
		}
		summary.Warnings = append(summary.Warnings, result.warnings...)
		if result.skipped {
			summary.ClipsSkipped++
			return nil
		}
		summary.ClipsProcessed++
		summary.FramesSkipped += result.framesSkipped
		for _, label := range result.labels {
			fname := filepath.Join(outputDir, label.name)
			if err := os.WriteFile(fname, []byte(label.content), 0644); err != nil {
				return errors.Wrapf(err, "writing label for clip %s", clip.ID)
			}
			summary.FramesConverted++
		}
		return nil
	})
	if err != nil {
		return summary, err
	}
	log.Printf("[convert] %s: %v", indexPath, summary)
	return summary, nil
}

// forEachClip converts the clips and hands each result to f in index order.
// With more than one worker, clips are converted concurrently but f still
// runs on the calling goroutine, one clip at a time.
func (c converter) forEachClip(index Index, workers int, f func(Clip, clipResult) error) error {
	if workers < 2 {
		for _, clip := range index {
			if err := f(clip, c.convertClip(clip)); err != nil {
				return err
			}
		}
		return nil
	}

	results := make([]clipResult, len(index))
	done := make([]chan struct{}, len(index))
	for i := range done {
		done[i] = make(chan struct{})
	}
	queue := make(chan int)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = c.convertClip(index[i])
				close(done[i])
			}
		}()
	}
	go func() {
		defer close(queue)
		for i := range index {
			select {
			case queue <- i:
			case <-stop:
				return
			}
		}
	}()
	defer wg.Wait()
	defer close(stop)

	for i, clip := range index {
		<-done[i]
		result := results[i]
		results[i] = clipResult{}
		if err := f(clip, result); err != nil {
			return err
		}
	}
	return nil
}

func (c converter) convertClip(clip Clip) clipResult {
	var result clipResult
	annotationPath := filepath.Join(c.annotationsDir, clip.ID+".txt")
	bytes, err := os.ReadFile(annotationPath)
	if err != nil {
		result.skipClip(Warning{Kind: MissingAnnotationFile, Clip: clip.ID, Path: annotationPath})
		return result
	}
	lines := annotationLines(string(bytes))
	if len(lines) != len(clip.Frames) {
		result.skipClip(Warning{
			Kind:   FrameCountMismatch,
			Clip:   clip.ID,
			Frames: len(clip.Frames),
			BBoxes: len(lines),
		})
		return result
	}

	for i, frame := range clip.Frames {
		line := lines[i]
		box, err := ParseRawBox(line)
		if err != nil {
			result.skipFrame(Warning{Kind: InvalidBoxFormat, Clip: clip.ID, Frame: frame, Line: line})
			continue
		}
		id, err := FrameID(frame)
		if err != nil {
			result.skipFrame(Warning{Kind: InvalidFrameName, Clip: clip.ID, Frame: frame})
			continue
		}
		imagePath := filepath.Join(c.imageDir, fmt.Sprintf("%d.jpg", id))
		if !skyhook.FileExists(imagePath) {
			result.skipFrame(Warning{Kind: MissingImage, Clip: clip.ID, Frame: frame, Path: imagePath})
			continue
		}
		result.labels = append(result.labels, labelFile{
			name:    fmt.Sprintf("%d.txt", id),
			content: FormatLabel(ConvertBBox(box, c.res)),
		})
	}
	return result
}

// annotationLines splits on any line ending and drops blank lines.
func annotationLines(s string) []string {
	var lines []string
	for _, line := range strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' }) {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
