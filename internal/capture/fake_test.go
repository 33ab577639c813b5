package capture

import (
	"errors"
	"image"
	"image/color"
	"sync"
)

type fakeWindow struct {
	id             uint32
	title          string
	app            string
	width, height  int
	scale          int
	captureErr     error
	captureCounter *int
	mu             sync.Mutex
}

func (w *fakeWindow) ID() uint32      { return w.id }
func (w *fakeWindow) Title() string   { return w.title }
func (w *fakeWindow) AppName() string { return w.app }

func (w *fakeWindow) Size() (int, int, error) {
	return w.width, w.height, nil
}

func (w *fakeWindow) CaptureImage() (image.Image, error) {
	if w.captureCounter != nil {
		w.mu.Lock()
		*w.captureCounter++
		w.mu.Unlock()
	}
	if w.captureErr != nil {
		return nil, w.captureErr
	}
	scale := w.scale
	if scale == 0 {
		scale = 1
	}
	return createPatternImage(w.width*scale, w.height*scale), nil
}

type fakeSource struct {
	windows []Window
	err     error
}

func (s *fakeSource) Windows() ([]Window, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.windows, nil
}

var errEnumerate = errors.New("display unavailable")

func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return img
}
