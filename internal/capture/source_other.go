//go:build !linux

package capture

import (
	"fmt"
	"runtime"
)

type unsupportedSource struct{}

func NewSystemSource() Source {
	return unsupportedSource{}
}

func (unsupportedSource) Windows() ([]Window, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, runtime.GOOS)
}
