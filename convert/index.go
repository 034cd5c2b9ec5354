package convert

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var ErrMalformedIndex = errors.New("malformed clip index")

// Clip is one entry of the index: its frames in annotation-file order.
type Clip struct {
	ID     string
	Frames []string
}

// Index maps clip ids to frame lists, in document order.
type Index []Clip

// ParseIndex reads a document of the form
//
//	{"clip_01": {"0.png": {...}, "1.png": {...}}, ...}
//
// Only the frame names and their order are kept. gjson walks the document in
// source order, which encoding/json maps would lose. A repeated key keeps the
// position of its first occurrence and the value of its last one.
func ParseIndex(data []byte) (Index, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.Wrap(ErrMalformedIndex, "invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.Wrapf(ErrMalformedIndex, "expected an object of clips, got %s", kind(root))
	}

	var index Index
	positions := make(map[string]int)
	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			err = errors.Wrapf(ErrMalformedIndex, "clip %q: expected an object of frames, got %s", key.String(), kind(value))
			return false
		}
		clip := Clip{ID: key.String(), Frames: frameNames(value)}
		if pos, ok := positions[clip.ID]; ok {
			index[pos] = clip
		} else {
			positions[clip.ID] = len(index)
			index = append(index, clip)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}

func frameNames(frames gjson.Result) []string {
	var names []string
	seen := make(map[string]bool)
	frames.ForEach(func(key, _ gjson.Result) bool {
		name := key.String()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return true
	})
	return names
}

func LoadIndex(path string) (Index, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading clip index")
	}
	index, err := ParseIndex(bytes)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return index, nil
}

func (index Index) NumFrames() int {
	var n int
	for _, clip := range index {
		n += len(clip.Frames)
	}
	return n
}

func kind(r gjson.Result) string {
	switch {
	case r.IsArray():
		return "array"
	case r.IsObject():
		return "object"
	default:
		return strings.ToLower(r.Type.String())
	}
}
