package detector

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/skyhookml/yolokit/skyhook"
)

//go:embed predict.py
var predictScript string

// Ultralytics keeps one python process with the model loaded and feeds it
// one JSON request per line. The process answers with "json "-prefixed
// results and a terminating "done" or "error " line; anything else on stdout
// is runtime chatter and is ignored.
type Ultralytics struct {
	mu    sync.Mutex
	cmd   *skyhook.Cmd
	stdin io.WriteCloser
	rd    *bufio.Reader
	names map[int]string
}

func LoadUltralytics(ctx context.Context, modelPath string, opts LoadOptions) (*Ultralytics, error) {
	python := opts.Python
	if python == "" {
		python = "python3"
	}
	cmd, err := skyhook.CommandContext(
		ctx, "ultralytics", skyhook.CommandOptions{AllStderrLines: true},
		python, "-u", "-c", predictScript, modelPath,
	)
	if err != nil {
		return nil, err
	}
	u := &Ultralytics{
		cmd:   cmd,
		stdin: cmd.Stdin(),
		rd:    bufio.NewReader(cmd.Stdout()),
	}
	for {
		line, err := u.readLine()
		if err != nil {
			u.Close()
			return nil, errors.Wrap(err, "error loading model (is ultralytics installed? pip install ultralytics)")
		}
		if strings.HasPrefix(line, "names ") {
			u.names = parseNames(line[len("names "):])
			break
		}
	}
	log.Printf("[ultralytics] loaded %s with %d classes", modelPath, len(u.names))
	return u, nil
}

func parseNames(s string) map[int]string {
	names := make(map[int]string)
	gjson.Parse(s).ForEach(func(key, value gjson.Result) bool {
		id, err := strconv.Atoi(key.String())
		if err == nil {
			names[id] = value.String()
		}
		return true
	})
	return names
}

// readLine returns the next stdout line, or the process exit error once
// stdout is closed.
func (u *Ultralytics) readLine() (string, error) {
	line, err := u.rd.ReadString('\n')
	if err != nil {
		if line != "" && err == io.EOF {
			return strings.TrimSpace(line), nil
		}
		if waitErr := u.cmd.Wait(); waitErr != nil {
			return "", waitErr
		}
		return "", fmt.Errorf("ultralytics process exited: %v", err)
	}
	return strings.TrimSpace(line), nil
}

func (u *Ultralytics) Names() map[int]string {
	return u.names
}

func (u *Ultralytics) Predict(ctx context.Context, req Request) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cmd == nil {
		return nil, fmt.Errorf("predictor is closed")
	}

	if _, err := u.stdin.Write(append(skyhook.JsonMarshal(req), '\n')); err != nil {
		return nil, errors.Wrap(err, "error writing to ultralytics process")
	}
	var results []Result
	for {
		line, err := u.readLine()
		if err != nil {
			return nil, err
		}
		done, result, err := parseResponse(line)
		if err != nil {
			return nil, err
		} else if done {
			return results, nil
		} else if result != nil {
			results = append(results, *result)
		}
	}
}

// parseResponse interprets one protocol line.
func parseResponse(line string) (done bool, result *Result, err error) {
	switch {
	case line == "done":
		return true, nil, nil
	case strings.HasPrefix(line, "error "):
		return false, nil, fmt.Errorf("prediction failed: %s", strings.TrimPrefix(line, "error "))
	case strings.HasPrefix(line, "json "):
		var r Result
		if err := json.Unmarshal([]byte(line[len("json "):]), &r); err != nil {
			return false, nil, errors.Wrap(err, "bad result line")
		}
		return false, &r, nil
	default:
		if line != "" {
			log.Debugf("[ultralytics] %s", line)
		}
		return false, nil, nil
	}
}

func (u *Ultralytics) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cmd == nil {
		return nil
	}
	u.stdin.Close()
	err := u.cmd.Wait()
	u.cmd = nil
	return err
}
