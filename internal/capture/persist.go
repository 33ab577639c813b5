package capture

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

const maxNameAttempts = 1000

// FileName composes the capture file name for the given instant.
func FileName(prefix string, millis int64) string {
	return fmt.Sprintf("%s-%d.png", prefix, millis)
}

// persist writes img as a PNG under dir, creating dir if needed, and returns
// the absolute path. Files are created exclusively; when the name for the
// current millisecond is taken, the millisecond is advanced.
func persist(dir, prefix string, now time.Time, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}

	millis := now.UnixMilli()
	for i := int64(0); i < maxNameAttempts; i++ {
		path := filepath.Join(absDir, FileName(prefix, millis+i))

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create screenshot file: %w", err)
		}

		if err := writePNG(f, img); err != nil {
			os.Remove(path)
			return "", err
		}
		return path, nil
	}

	return "", fmt.Errorf("no free file name after %s", FileName(prefix, millis))
}

func writePNG(f *os.File, img image.Image) error {
	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode screenshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}
