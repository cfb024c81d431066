// Package sse decodes server-sent event streams.
//
// Both chat stream dialects ride on SSE: the Anthropic Messages stream
// tags every payload with an event name (message_start,
// content_block_delta, ...), while OpenAI-style streams carry bare
// data lines. The decoder surfaces both; callers that only care about
// payloads ignore the event name.
package sse

import (
	"bufio"
	"bytes"
	"io"
)

// Decoder reads one SSE event per Next call.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event's name (empty for unnamed events) and its
// data payload. Multiple data lines are concatenated with \n, per the
// SSE spec. A payload pending when the stream ends is still returned;
// io.EOF follows on the next call.
func (d *Decoder) Next() (event string, data []byte, err error) {
	var name []byte
	var dataLines [][]byte
	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil {
			// Flush a final line the server never terminated.
			if tail := bytes.TrimRight(line, "\r\n"); len(tail) > 0 {
				name, dataLines = accumulate(name, dataLines, tail)
			}
			if len(dataLines) > 0 {
				return string(name), bytes.Join(dataLines, []byte("\n")), nil
			}
			if err == io.EOF {
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if len(dataLines) == 0 {
				name = nil
				continue
			}
			return string(name), bytes.Join(dataLines, []byte("\n")), nil
		}
		if line[0] == ':' {
			continue
		}
		name, dataLines = accumulate(name, dataLines, line)
	}
}

func accumulate(name []byte, dataLines [][]byte, line []byte) ([]byte, [][]byte) {
	if v, ok := bytes.CutPrefix(line, []byte("event:")); ok {
		return bytes.TrimSpace(v), dataLines
	}
	if v, ok := bytes.CutPrefix(line, []byte("data:")); ok {
		if len(v) > 0 && v[0] == ' ' {
			v = v[1:]
		}
		return name, append(dataLines, append([]byte(nil), v...))
	}
	return name, dataLines
}
