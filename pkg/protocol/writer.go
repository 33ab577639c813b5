package protocol

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// FlushWriter writes newline-terminated JSON values and flushes after each
// one, so the peer observes every message as soon as it is produced.
type FlushWriter struct {
	mu sync.Mutex
	bw *bufio.Writer
}

func NewFlushWriter(w io.Writer) *FlushWriter {
	return &FlushWriter{bw: bufio.NewWriter(w)}
}

func (w *FlushWriter) WriteLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return err
	}
	return w.bw.Flush()
}
