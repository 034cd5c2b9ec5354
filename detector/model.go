package detector

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/skyhookml/yolokit/skyhook"
)

// DefaultModel is handed to the runtime when no usable custom model is given.
const DefaultModel = "yolov8n.pt"

// Prompter asks the user a question and returns the trimmed answer.
type Prompter interface {
	Prompt(question string) (string, error)
}

type LinePrompter struct {
	rd  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{
		rd:  bufio.NewReader(in),
		out: out,
	}
}

func (p *LinePrompter) Prompt(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.rd.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

const customModelQuestion = "Enter custom model path (or press Enter for default " + DefaultModel + "): "

// ResolveModel picks the model to load from the --model flag and, when that
// is absent or missing on disk, an interactive answer. A failed prompt is
// treated like an empty answer.
func ResolveModel(flagModel string, prompter Prompter, out io.Writer) string {
	if flagModel != "" && skyhook.FileExists(flagModel) {
		fmt.Fprintf(out, "Using custom model: %s\n", flagModel)
		return flagModel
	}

	if flagModel != "" {
		// after a bad --model the answer is taken without further messages
		fmt.Fprintf(out, "Custom model '%s' not found!\n", flagModel)
		answer, _ := prompter.Prompt(customModelQuestion)
		if answer != "" && skyhook.FileExists(answer) {
			return answer
		}
		return DefaultModel
	}
	answer, _ := prompter.Prompt(customModelQuestion)
	if answer != "" && skyhook.FileExists(answer) {
		fmt.Fprintf(out, "Using custom model: %s\n", answer)
		return answer
	}
	if answer != "" {
		fmt.Fprintf(out, "Custom model '%s' not found, using default: %s\n", answer, DefaultModel)
	}
	return DefaultModel
}
