package httpbytes

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

func TestDecodeRequestParsesHexEncodedRequest(t *testing.T) {
	t.Parallel()

	raw := "GET /widgets/7 HTTP/1.1\r\nHost: example.com\r\n\r\n"
	encoded := hex.EncodeToString([]byte(raw))

	req, err := DecodeRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.Method != "GET" || req.URL.Path != "/widgets/7" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Host != "example.com" {
		t.Fatalf("unexpected host: %q", req.Host)
	}
}

func TestDecodeRequestRejectsInvalidHex(t *testing.T) {
	t.Parallel()

	if _, err := DecodeRequest("not-hex"); err == nil {
		t.Fatal("expected an error for invalid hex input")
	}
}

func TestStreamChunksEmitsOrderedEncodedFragments(t *testing.T) {
	t.Parallel()

	body := strings.NewReader("hello world")
	var got []ChunkFrame
	err := StreamChunks(body, 4, func(f ChunkFrame) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamChunks: %v", err)
	}

	var reconstructed []byte
	for _, f := range got {
		decoded, derr := hex.DecodeString(f.Result)
		if derr != nil {
			t.Fatalf("decode chunk: %v", derr)
		}
		reconstructed = append(reconstructed, decoded...)
	}
	if !bytes.Equal(reconstructed, []byte("hello world")) {
		t.Fatalf("expected reconstructed body to match, got %q", reconstructed)
	}
}
