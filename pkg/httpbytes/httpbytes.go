// Package httpbytes implements the HTTP-over-bytes helpers (component
// C13) the endpoint-invocation action uses to carry a full HTTP/1.1
// request and response over the envelope wire format: the daemon sends
// a hex-encoded raw request, the plugin replies with a status/headers
// frame followed by zero or more hex-encoded body-chunk frames.
package httpbytes

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
)

// DecodeRequest hex-decodes raw and parses it as a full HTTP/1.1
// request, mirroring the wire shape `data.raw_http_request` carries for
// the endpoint-invocation action.
func DecodeRequest(raw string) (*http.Request, error) {
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("httpbytes: decode hex request: %w", err)
	}

	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(decoded)))
	if err != nil {
		return nil, fmt.Errorf("httpbytes: parse request: %w", err)
	}
	return req, nil
}

// StatusFrame is the first frame of an endpoint response: status and
// headers, with no body.
type StatusFrame struct {
	Status  int                 `json:"status"`
	Headers map[string][]string `json:"headers"`
}

// ChunkFrame is one body fragment of an endpoint response, hex-encoded
// per the wire convention.
type ChunkFrame struct {
	Result string `json:"result"`
}

// EncodeChunk hex-encodes a body fragment into the wire frame shape.
func EncodeChunk(data []byte) ChunkFrame {
	return ChunkFrame{Result: hex.EncodeToString(data)}
}

// StreamChunks reads body in bufSize pieces, calling emit with each
// encoded ChunkFrame in order. It stops at EOF or the first error emit
// returns.
func StreamChunks(body io.Reader, bufSize int, emit func(ChunkFrame) error) error {
	if bufSize <= 0 {
		bufSize = 32 * 1024
	}
	buf := make([]byte, bufSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if emitErr := emit(EncodeChunk(buf[:n])); emitErr != nil {
				return emitErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("httpbytes: read response body: %w", err)
		}
	}
}
