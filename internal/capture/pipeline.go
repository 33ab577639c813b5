package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alucardeht/ghview-bridge/internal/logger"
)

// Shot describes one persisted capture.
type Shot struct {
	Path           string
	AppName        string
	Title          string
	Width          int
	Height         int
	CapturedWidth  int
	CapturedHeight int
	Scaled         bool
	CreatedAt      time.Time
}

// Recorder receives every successful capture. Recording failures are logged
// and never fail the capture.
type Recorder interface {
	Record(ctx context.Context, shot Shot) error
}

type Options struct {
	Prefix   string
	Recorder Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

type Pipeline struct {
	source   Source
	matcher  *Matcher
	prefix   string
	recorder Recorder
	now      func() time.Time
	log      *slog.Logger
}

func NewPipeline(source Source, matcher *Matcher, opts Options) *Pipeline {
	p := &Pipeline{
		source:   source,
		matcher:  matcher,
		prefix:   opts.Prefix,
		recorder: opts.Recorder,
		now:      opts.Now,
		log:      opts.Logger,
	}
	if p.prefix == "" {
		p.prefix = "screenshot"
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.log == nil {
		p.log = logger.ForComponent("capture")
	}
	return p
}

// FindWindow returns the first window whose owning application matches.
func (p *Pipeline) FindWindow() (Window, error) {
	windows, err := p.source.Windows()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate windows: %w", err)
	}

	w, ok := p.matcher.Find(windows)
	if !ok {
		return nil, fmt.Errorf("%w: no window owned by %s (is the application running?)", ErrWindowNotFound, p.matcher)
	}
	return w, nil
}

// Capture writes a PNG of the target window into outputDir and returns its
// absolute path. The image always has the window's logical dimensions.
func (p *Pipeline) Capture(ctx context.Context, outputDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w, err := p.FindWindow()
	if err != nil {
		return "", err
	}

	width, height, err := w.Size()
	if err != nil {
		return "", fmt.Errorf("failed to get window size: %w", err)
	}

	img, err := w.CaptureImage()
	if err != nil {
		return "", fmt.Errorf("failed to capture window image: %w", err)
	}
	captured := img.Bounds()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, scaled := Normalize(img, width, height)

	createdAt := p.now()
	path, err := persist(outputDir, p.prefix, createdAt, out)
	if err != nil {
		return "", err
	}

	p.log.Info("screenshot captured",
		"path", path,
		"window", w.ID(),
		"logical", fmt.Sprintf("%dx%d", width, height),
		"captured", fmt.Sprintf("%dx%d", captured.Dx(), captured.Dy()),
		"scaled", scaled)

	if p.recorder != nil {
		shot := Shot{
			Path:           path,
			AppName:        w.AppName(),
			Title:          w.Title(),
			Width:          out.Bounds().Dx(),
			Height:         out.Bounds().Dy(),
			CapturedWidth:  captured.Dx(),
			CapturedHeight: captured.Dy(),
			Scaled:         scaled,
			CreatedAt:      createdAt,
		}
		if err := p.recorder.Record(ctx, shot); err != nil {
			p.log.Warn("failed to record capture", "path", path, "error", err)
		}
	}

	return path, nil
}

// Close releases the window source when it holds OS resources.
func (p *Pipeline) Close() error {
	if c, ok := p.source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
