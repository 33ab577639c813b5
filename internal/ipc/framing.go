package ipc

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const (
	maxRequestSize  = 1 << 20
	maxResponseSize = 1 << 20
)

// readLine reads one newline-terminated line without the terminator. A final
// line without a newline is returned as is; io.EOF is only returned when the
// peer closed before sending any byte.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > limit+1 {
			return nil, ErrRequestTooLarge
		}

		switch {
		case err == nil:
			return bytes.TrimRight(line, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 {
				return nil, io.EOF
			}
			return bytes.TrimRight(line, "\r\n"), nil
		default:
			return nil, err
		}
	}
}
