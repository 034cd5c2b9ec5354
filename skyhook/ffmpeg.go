package skyhook

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

type VideoReader interface {
	// Error should be io.EOF if there are no more images.
	// If an image is returned, error must NOT be io.EOF.
	// (So no error should be returned on the last image, only after the last image.)
	Read() (Image, error)

	Close() error
}

type FfmpegReader struct {
	Cmd    *Cmd
	Stdout io.ReadCloser
	Width  int
	Height int
	Buf    []byte
}

// ReadFfmpeg decodes fname to raw rgb24 frames at the given dimensions and framerate.
func ReadFfmpeg(ctx context.Context, fname string, dims [2]int, rate [2]int) (*FfmpegReader, error) {
	log.Printf("[ffmpeg] from %s extract frames %dx%d", fname, dims[0], dims[1])
	cmd, err := CommandContext(
		ctx, "ffmpeg-read", CommandOptions{OnlyDebug: true, NoStdin: true},
		"ffmpeg",
		"-threads", "2",
		"-i", fname,
		"-c:v", "rawvideo", "-pix_fmt", "rgb24", "-f", "rawvideo",
		"-vf", fmt.Sprintf("scale=%dx%d,fps=fps=%d/%d:round=up", dims[0], dims[1], rate[0], rate[1]),
		"-",
	)
	if err != nil {
		return nil, err
	}
	return &FfmpegReader{
		Cmd:    cmd,
		Stdout: cmd.Stdout(),
		Width:  dims[0],
		Height: dims[1],
		Buf:    make([]byte, dims[0]*dims[1]*3),
	}, nil
}

func (rd *FfmpegReader) Read() (Image, error) {
	_, err := io.ReadFull(rd.Stdout, rd.Buf)
	if err == io.ErrUnexpectedEOF {
		return Image{}, io.EOF
	} else if err != nil {
		return Image{}, err
	}
	buf := make([]byte, len(rd.Buf))
	copy(buf, rd.Buf)
	return ImageFromBytes(rd.Width, rd.Height, buf), nil
}

func (rd *FfmpegReader) Close() error {
	rd.Stdout.Close()
	return rd.Cmd.Wait()
}

type ChanReader struct {
	Ch chan Image
}

func (rd *ChanReader) Read() (Image, error) {
	im, ok := <-rd.Ch
	if !ok {
		return Image{}, io.EOF
	}
	return im, nil
}

func (rd *ChanReader) Close() error {
	go func() {
		for range rd.Ch {
		}
	}()
	return nil
}

// MakeVideo encodes frames from rd into an H.264 mp4 at fname.
// The caller must Wait on the returned command after rd is exhausted.
func MakeVideo(rd VideoReader, dims [2]int, rate [2]int, fname string) (*Cmd, error) {
	log.Printf("[ffmpeg] make video %s (%dx%d)", fname, dims[0], dims[1])
	cmd, err := Command(
		"ffmpeg-mkvid", CommandOptions{OnlyDebug: true, NoStdout: true},
		"ffmpeg",
		"-y", "-threads", "2",
		"-f", "rawvideo",
		"-s", fmt.Sprintf("%dx%d", dims[0], dims[1]),
		"-r", fmt.Sprintf("%d/%d", rate[0], rate[1]),
		"-pix_fmt", "rgb24", "-i", "-",
		"-vcodec", "libx264", "-preset", "ultrafast", "-g", "30",
		"-pix_fmt", "yuv420p", "-movflags", "faststart",
		fname,
	)
	if err != nil {
		return nil, err
	}

	go func() {
		stdin := cmd.Stdin()
		for {
			im, err := rd.Read()
			if err == io.EOF {
				break
			} else if err != nil {
				log.Printf("[ffmpeg] error making video: %v", err)
				break
			}
			_, err = stdin.Write(im.ToBytes())
			if err != nil {
				log.Printf("[ffmpeg] error making video: %v", err)
				break
			}
		}
		stdin.Close()
		// unblock the producer if we stopped early
		rd.Close()
	}()

	return cmd, nil
}

type VideoInfo struct {
	Width     int
	Height    int
	Framerate [2]int
	Duration  float64
}

// ParseFramerate parses ffprobe rates such as "30000/1001" or "25".
func ParseFramerate(s string) ([2]int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return [2]int{}, fmt.Errorf("bad framerate %q", s)
	}
	den := 1
	if len(parts) == 2 {
		den, err = strconv.Atoi(parts[1])
		if err != nil || den == 0 {
			return [2]int{}, fmt.Errorf("bad framerate %q", s)
		}
	}
	if num <= 0 {
		return [2]int{}, fmt.Errorf("bad framerate %q", s)
	}
	return [2]int{num, den}, nil
}

func Ffprobe(ctx context.Context, fname string) (VideoInfo, error) {
	var info VideoInfo
	cmd, err := CommandContext(
		ctx, "ffprobe", CommandOptions{NoStdin: true},
		"ffprobe",
		"-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,duration",
		"-of", "csv=s=,:p=0",
		fname,
	)
	if err != nil {
		return info, err
	}
	rd := bufio.NewReader(cmd.Stdout())
	line, readErr := rd.ReadString('\n')
	if err := cmd.Wait(); err != nil {
		return info, err
	}
	if readErr != nil && line == "" {
		return info, fmt.Errorf("ffprobe %s: no video stream", fname)
	}
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 3 {
		return info, fmt.Errorf("ffprobe %s: unexpected output %q", fname, line)
	}
	info.Width, _ = strconv.Atoi(parts[0])
	info.Height, _ = strconv.Atoi(parts[1])
	info.Framerate, err = ParseFramerate(parts[2])
	if err != nil {
		return info, err
	}
	if len(parts) >= 4 {
		info.Duration, _ = strconv.ParseFloat(parts[3], 64)
	}
	return info, nil
}
