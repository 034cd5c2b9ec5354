package convert

import (
	"fmt"
)

type WarningKind string

const (
	// Clip-scoped: the whole clip is skipped.
	MissingAnnotationFile WarningKind = "MissingAnnotationFile"
	FrameCountMismatch    WarningKind = "FrameCountMismatch"

	// Frame-scoped: only the frame is skipped.
	InvalidBoxFormat WarningKind = "InvalidBoxFormat"
	InvalidFrameName WarningKind = "InvalidFrameName"
	MissingImage     WarningKind = "MissingImage"
)

// ClipScoped reports whether a warning of this kind skips a whole clip.
func (k WarningKind) ClipScoped() bool {
	return k == MissingAnnotationFile || k == FrameCountMismatch
}

// Warning records one recoverable failure. Fields that do not apply to the
// kind are left empty.
type Warning struct {
	Kind  WarningKind
	Clip  string
	Frame string `json:",omitempty"`
	// Raw annotation line for InvalidBoxFormat.
	Line string `json:",omitempty"`
	// Missing annotation file or image.
	Path string `json:",omitempty"`
	// Counts for FrameCountMismatch.
	Frames int `json:",omitempty"`
	BBoxes int `json:",omitempty"`
}

func (w Warning) String() string {
	switch w.Kind {
	case MissingAnnotationFile:
		return fmt.Sprintf("no annotation file for clip %s: %s", w.Clip, w.Path)
	case FrameCountMismatch:
		return fmt.Sprintf("mismatched number of frames and bboxes in clip %s (%d frames, %d bboxes)", w.Clip, w.Frames, w.BBoxes)
	case InvalidBoxFormat:
		return fmt.Sprintf("invalid bbox in clip %s: %s", w.Clip, w.Line)
	case InvalidFrameName:
		return fmt.Sprintf("invalid frame name in clip %s: %s", w.Clip, w.Frame)
	case MissingImage:
		return fmt.Sprintf("image not found for clip %s frame %s: %s", w.Clip, w.Frame, w.Path)
	default:
		return fmt.Sprintf("%s in clip %s", w.Kind, w.Clip)
	}
}

// Summary is the result of one ConvertDataset run.
type Summary struct {
	ClipsProcessed  int
	ClipsSkipped    int
	FramesConverted int
	FramesSkipped   int
	Warnings        []Warning
}

// Clean is true when no clip or frame was skipped.
func (s Summary) Clean() bool {
	return len(s.Warnings) == 0
}

// Count returns how many warnings of the given kind were recorded.
func (s Summary) Count(kind WarningKind) int {
	var n int
	for _, w := range s.Warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"%d clips processed, %d clips skipped, %d frames converted, %d frames skipped, %d warnings",
		s.ClipsProcessed, s.ClipsSkipped, s.FramesConverted, s.FramesSkipped, len(s.Warnings),
	)
}
