//go:build linux

package capture

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// x11Source enumerates client windows through the EWMH _NET_CLIENT_LIST on
// the default screen. The connection is opened lazily and dropped after any
// request error so the next call reconnects.
type x11Source struct {
	mu    sync.Mutex
	conn  *xgb.Conn
	atoms map[string]xproto.Atom
}

func NewSystemSource() Source {
	return &x11Source{}
}

func (s *x11Source) connect() (*xgb.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	s.conn = conn
	s.atoms = make(map[string]xproto.Atom)
	return conn, nil
}

func (s *x11Source) drop(conn *xgb.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == conn {
		conn.Close()
		s.conn = nil
	}
}

func (s *x11Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

func (s *x11Source) atom(conn *xgb.Conn, name string) (xproto.Atom, error) {
	s.mu.Lock()
	a, ok := s.atoms[name]
	s.mu.Unlock()
	if ok {
		return a, nil
	}

	reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern atom %s: %w", name, err)
	}

	s.mu.Lock()
	if s.atoms != nil {
		s.atoms[name] = reply.Atom
	}
	s.mu.Unlock()
	return reply.Atom, nil
}

func (s *x11Source) Windows() ([]Window, error) {
	conn, err := s.connect()
	if err != nil {
		return nil, err
	}

	clientList, err := s.atom(conn, "_NET_CLIENT_LIST")
	if err != nil {
		s.drop(conn)
		return nil, err
	}

	root := xproto.Setup(conn).DefaultScreen(conn).Root
	reply, err := xproto.GetProperty(conn, false, root, clientList, xproto.AtomWindow, 0, 1<<16).Reply()
	if err != nil {
		s.drop(conn)
		return nil, fmt.Errorf("failed to read _NET_CLIENT_LIST: %w", err)
	}

	var windows []Window
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		id := xproto.Window(xgb.Get32(reply.Value[i:]))
		windows = append(windows, &x11Window{
			conn:    conn,
			id:      id,
			appName: s.wmClass(conn, id),
			title:   s.title(conn, id),
		})
	}
	return windows, nil
}

// wmClass returns the class part of WM_CLASS ("instance\x00class\x00"),
// falling back to the instance name.
func (s *x11Source) wmClass(conn *xgb.Conn, id xproto.Window) string {
	reply, err := xproto.GetProperty(conn, false, id, xproto.AtomWmClass, xproto.AtomString, 0, 256).Reply()
	if err != nil || len(reply.Value) == 0 {
		return ""
	}

	parts := strings.Split(strings.TrimRight(string(reply.Value), "\x00"), "\x00")
	if len(parts) > 1 && parts[1] != "" {
		return parts[1]
	}
	return parts[0]
}

func (s *x11Source) title(conn *xgb.Conn, id xproto.Window) string {
	if netName, err := s.atom(conn, "_NET_WM_NAME"); err == nil {
		reply, err := xproto.GetProperty(conn, false, id, netName, xproto.GetPropertyTypeAny, 0, 1024).Reply()
		if err == nil && len(reply.Value) > 0 {
			return string(reply.Value)
		}
	}

	reply, err := xproto.GetProperty(conn, false, id, xproto.AtomWmName, xproto.GetPropertyTypeAny, 0, 1024).Reply()
	if err != nil {
		return ""
	}
	return string(reply.Value)
}

type x11Window struct {
	conn    *xgb.Conn
	id      xproto.Window
	appName string
	title   string
}

func (w *x11Window) ID() uint32      { return uint32(w.id) }
func (w *x11Window) Title() string   { return w.title }
func (w *x11Window) AppName() string { return w.appName }

// Size reports the window geometry. X11 has no per-window scale factor, so
// the logical and captured sizes coincide.
func (w *x11Window) Size() (int, int, error) {
	geom, err := xproto.GetGeometry(w.conn, xproto.Drawable(w.id)).Reply()
	if err != nil {
		return 0, 0, err
	}
	return int(geom.Width), int(geom.Height), nil
}

// CaptureImage reads the window contents as a ZPixmap. Only 32 bits per pixel
// BGRX layouts (depth 24 and 32 visuals) are supported.
func (w *x11Window) CaptureImage() (image.Image, error) {
	width, height, err := w.Size()
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("window %d has empty geometry", w.id)
	}

	reply, err := xproto.GetImage(w.conn, xproto.ImageFormatZPixmap, xproto.Drawable(w.id),
		0, 0, uint16(width), uint16(height), 0xffffffff).Reply()
	if err != nil {
		return nil, err
	}

	n := width * height
	if len(reply.Data) < n*4 {
		return nil, fmt.Errorf("unsupported pixel format: depth %d, %d bytes for %dx%d", reply.Depth, len(reply.Data), width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < n; i++ {
		src := reply.Data[i*4 : i*4+4]
		dst := img.Pix[i*4 : i*4+4]
		dst[0] = src[2]
		dst[1] = src[1]
		dst[2] = src[0]
		dst[3] = 0xff
	}
	return img, nil
}
