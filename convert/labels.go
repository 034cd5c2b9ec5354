package convert

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Label is one line of a YOLO label file.
type Label struct {
	Class int
	Box   NormalizedBox
}

// ParseLabel parses "class x_center y_center width height".
func ParseLabel(line string) (Label, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Label{}, fmt.Errorf("expected 5 fields, got %d in %q", len(fields), line)
	}
	var vals [5]float64
	for i, field := range fields {
		x, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Label{}, fmt.Errorf("bad field %q in %q", field, line)
		}
		vals[i] = x
	}
	return Label{
		Class: int(vals[0]),
		Box: NormalizedBox{
			XCenter: vals[1],
			YCenter: vals[2],
			Width:   vals[3],
			Height:  vals[4],
		},
	}, nil
}

// ReadLabels reads every non-blank line of a label file.
func ReadLabels(path string) ([]Label, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var labels []Label
	for i, line := range strings.Split(string(bytes), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, err := ParseLabel(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, i+1)
		}
		labels = append(labels, label)
	}
	return labels, nil
}
