package skyhook

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rubenfonseca/fastimage"
	log "github.com/sirupsen/logrus"
)

// SetupLogging configures the process-wide logger used by every tool.
func SetupLogging(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006/01/02 15:04:05.000"})
	log.SetOutput(os.Stderr)
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

func JsonMarshal(x interface{}) []byte {
	bytes, err := json.Marshal(x)
	if err != nil {
		panic(err)
	}
	return bytes
}

func JsonResponse(w http.ResponseWriter, x interface{}) {
	bytes := JsonMarshal(x)
	w.Header().Set("Content-Type", "application/json")
	w.Write(bytes)
}

type Cmd struct {
	prefix string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	// if not nil, means printStderr will send last line(s) it got before exiting
	stderrCh chan []string
	closed   bool
}

func (cmd *Cmd) Stdin() io.WriteCloser {
	return cmd.stdin
}

func (cmd *Cmd) Stdout() io.ReadCloser {
	return cmd.stdout
}

type CmdError struct {
	ExitError error
	Lines     []string
}

func (e CmdError) Error() string {
	var linesPart string
	if len(e.Lines) > 0 {
		linesPart = fmt.Sprintf(" (%s)", e.Lines[len(e.Lines)-1])
	}
	return fmt.Sprintf("exit error: %v", e.ExitError) + linesPart
}

func (e CmdError) Unwrap() error {
	return e.ExitError
}

// Wait closes the pipes and waits for the process to exit.
// Calling Wait more than once returns nil.
func (cmd *Cmd) Wait() error {
	if cmd.closed {
		return nil
	}
	cmd.closed = true
	if cmd.stdin != nil {
		cmd.stdin.Close()
	}
	if cmd.stdout != nil {
		cmd.stdout.Close()
	}
	var lastLines []string
	if cmd.stderrCh != nil {
		lastLines = <-cmd.stderrCh
	}
	err := cmd.cmd.Wait()
	if err != nil {
		myerr := CmdError{
			ExitError: err,
			Lines:     lastLines,
		}
		log.Printf("[%s] %v", cmd.prefix, myerr.Error())
		return myerr
	}
	return nil
}

func (cmd *Cmd) printStderr(opts CommandOptions) {
	rd := bufio.NewReader(cmd.stderr)
	var lastLines []string
	for {
		line, err := rd.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if line != "" {
			if opts.AllStderrLines {
				lastLines = append(lastLines, line)
			} else {
				lastLines = []string{line}
			}
			if opts.OnlyDebug {
				log.Debugf("[%s] %s", cmd.prefix, line)
			} else {
				log.Printf("[%s] %s", cmd.prefix, line)
			}
		}
		if err != nil {
			break
		}
	}
	cmd.stderrCh <- lastLines
}

type CommandOptions struct {
	NoStdin       bool
	NoStdout      bool
	NoStderr      bool
	NoPrintStderr bool
	// Function to arbitrary modify the exec.Cmd, e.g., set working directory.
	// This is called just before starting the process.
	F func(*exec.Cmd)
	// Whether to only print stderr at debug level.
	OnlyDebug bool
	// Whether to keep not just the last stderr line, but all lines, in case of error.
	AllStderrLines bool
}

func Command(prefix string, opts CommandOptions, command string, args ...string) (*Cmd, error) {
	return CommandContext(context.Background(), prefix, opts, command, args...)
}

// CommandContext starts the process; it is killed if ctx is cancelled first.
func CommandContext(ctx context.Context, prefix string, opts CommandOptions, command string, args ...string) (*Cmd, error) {
	log.Debugf("[util] %s %v", command, args)
	cmd := exec.CommandContext(ctx, command, args...)
	var stdin io.WriteCloser
	if !opts.NoStdin {
		var err error
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
	}
	var stdout io.ReadCloser
	if !opts.NoStdout {
		var err error
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
	}
	var stderr io.ReadCloser
	if !opts.NoStderr {
		var err error
		stderr, err = cmd.StderrPipe()
		if err != nil {
			return nil, err
		}
	}
	if opts.F != nil {
		opts.F(cmd)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting %s", command)
	}
	mycmd := &Cmd{
		prefix: prefix,
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	if stderr != nil && !opts.NoPrintStderr {
		mycmd.stderrCh = make(chan []string)
		go mycmd.printStderr(opts)
	}
	return mycmd, nil
}

func Clip(x, lo, hi int) int {
	if x < lo {
		return lo
	} else if x > hi {
		return hi
	} else {
		return x
	}
}

// GetImageDimsFromFile reads only the image header to get [width, height].
func GetImageDimsFromFile(fname string) ([2]int, error) {
	var dims [2]int
	file, err := os.Open(fname)
	if err != nil {
		return dims, err
	}
	defer file.Close()
	_, size, err := fastimage.DetectImageTypeFromReader(file)
	if err != nil {
		return dims, err
	} else if size == nil {
		return dims, fmt.Errorf("unknown image format")
	}
	dims = [2]int{int(size.Width), int(size.Height)}
	return dims, nil
}

// Like filepath.Ext but doesn't include the ".".
func Ext(fname string) string {
	ext := filepath.Ext(fname)
	if len(ext) == 0 || ext[0] != '.' {
		return ext
	} else {
		return ext[1:]
	}
}

// TrimExt strips the last extension from the base name of fname.
func TrimExt(fname string) string {
	base := filepath.Base(fname)
	return base[:len(base)-len(filepath.Ext(base))]
}

func FileExists(fname string) bool {
	_, err := os.Stat(fname)
	return err == nil
}
