package rpc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// maxFrameSize bounds a single message so a corrupt length header cannot
// allocate unbounded memory.
const maxFrameSize = 16 << 20

// framer reads and writes Content-Length framed payloads:
//
//	Content-Length: <n>\r\n
//	\r\n
//	<n bytes of UTF-8 JSON>
//
// Writes are mutually exclusive so concurrent requests cannot interleave
// frames.
type framer struct {
	r *bufio.Reader

	wmu sync.Mutex
	w   io.Writer
}

func newFramer(rw io.ReadWriter) *framer {
	return &framer{r: bufio.NewReader(rw), w: rw}
}

func (f *framer) WriteFrame(payload []byte) error {
	f.wmu.Lock()
	defer f.wmu.Unlock()
	if _, err := fmt.Fprintf(f.w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	_, err := f.w.Write(payload)
	return err
}

func (f *framer) ReadFrame() ([]byte, error) {
	length := -1
	for {
		line, err := f.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("rpc: malformed header %q", line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("rpc: bad Content-Length: %w", err)
			}
			length = n
		}
		// Other headers are ignored.
	}
	if length < 0 {
		return nil, fmt.Errorf("rpc: frame missing Content-Length")
	}
	if length > maxFrameSize {
		return nil, fmt.Errorf("rpc: frame of %d bytes exceeds limit", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
