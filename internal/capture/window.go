// Package capture locates the host application's top-level window, captures
// its pixels, reconciles high-DPI scaling and persists the result as a PNG.
package capture

import (
	"errors"
	"image"
)

var (
	ErrWindowNotFound      = errors.New("window not found")
	ErrUnsupportedPlatform = errors.New("window capture is not supported on this platform")
)

// Window is one OS top-level window.
type Window interface {
	ID() uint32
	Title() string
	// AppName is the name of the owning application as reported by the OS.
	AppName() string
	// Size reports the logical size, which on high-DPI displays is smaller
	// than the image returned by CaptureImage.
	Size() (width, height int, err error)
	CaptureImage() (image.Image, error)
}

// Source enumerates the OS top-level windows.
type Source interface {
	Windows() ([]Window, error)
}
