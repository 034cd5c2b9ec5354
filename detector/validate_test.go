package detector

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func touch(t *testing.T, fname string) string {
	test.That(t, os.WriteFile(fname, nil, 0644), test.ShouldBeNil)
	return fname
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.JPEG", "c.webp", "d.mp4", "e.MKV"} {
		test.That(t, ValidateFile(touch(t, filepath.Join(dir, name))), test.ShouldBeNil)
	}

	err := ValidateFile(filepath.Join(dir, "missing.jpg"))
	test.That(t, errors.Is(err, ErrFileNotFound), test.ShouldBeTrue)

	err = ValidateFile(touch(t, filepath.Join(dir, "notes.TXT")))
	test.That(t, errors.Is(err, ErrUnsupportedExtension), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `".txt"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, strings.Join(SupportedExtensions(), ", "))
}

func TestIsVideo(t *testing.T) {
	test.That(t, IsVideo("clip.MOV"), test.ShouldBeTrue)
	test.That(t, IsVideo("clip.webm"), test.ShouldBeTrue)
	test.That(t, IsVideo("frame.png"), test.ShouldBeFalse)
	test.That(t, IsImage("frame.png"), test.ShouldBeTrue)
	test.That(t, IsImage("clip.flv"), test.ShouldBeFalse)
}
