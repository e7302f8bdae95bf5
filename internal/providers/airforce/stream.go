package airforce

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

const dataPrefix = "data: "

// Terminator and keepalive lines the provider interleaves with data frames.
var streamSentinels = map[string]struct{}{
	"data: [DONE]":      {},
	"data: : keepalive": {},
}

// streamFrame is one decoded JSON object from a data line. The provider uses
// two payload shapes: an OpenAI-style data list and a flat object.
type streamFrame struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	B64JSON string `json:"b64_json"`
}

// payload returns the base64 media data carried by the frame, preferring the
// list shape. List elements without b64_json (url-only entries) are skipped.
// An empty result means the frame carried no payload, which is not an error
// by itself.
func (f *streamFrame) payload() string {
	for _, item := range f.Data {
		if item.B64JSON != "" {
			return item.B64JSON
		}
	}
	return f.B64JSON
}

// frameScanner decodes a chunked generation response line by line while
// accumulating the raw body for the whole-document fallback parse.
type frameScanner struct {
	scanner *bufio.Scanner
	body    bytes.Buffer
}

func newFrameScanner(r io.Reader) *frameScanner {
	fs := &frameScanner{}
	fs.scanner = bufio.NewScanner(io.TeeReader(r, &fs.body))
	// Base64 payload frames for video can be large.
	fs.scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return fs
}

// next consumes exactly one line. It returns a nil frame for noise lines
// (blank, missing prefix, sentinels, malformed JSON); malformed frames are
// skipped, never fatal. more is false once the stream is exhausted.
func (fs *frameScanner) next() (frame *streamFrame, more bool, err error) {
	if !fs.scanner.Scan() {
		return nil, false, fs.scanner.Err()
	}
	line := strings.TrimSpace(fs.scanner.Text())
	if line == "" {
		return nil, true, nil
	}
	if _, skip := streamSentinels[line]; skip {
		return nil, true, nil
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return nil, true, nil
	}
	var f streamFrame
	if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &f); err != nil {
		return nil, true, nil
	}
	return &f, true, nil
}

// fallback parses the entire accumulated body as a single JSON document and
// applies the same payload extraction. Some providers answer a sse=true
// request with a plain JSON body; this keeps those responses usable.
func (fs *frameScanner) fallback() string {
	var f streamFrame
	if err := json.Unmarshal(fs.body.Bytes(), &f); err != nil {
		return ""
	}
	return f.payload()
}
