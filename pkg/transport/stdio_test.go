package transport

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFlushingWriterFlushesEveryWrite(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bw := bufio.NewWriterSize(&buf, 4096)
	fw := &flushingWriter{bw}

	if _, err := fw.Write([]byte(`{"event":"log"}` + "\n\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if buf.Len() == 0 {
		t.Fatal("expected the write to be flushed through to the underlying buffer immediately")
	}
	if buf.String() != `{"event":"log"}`+"\n\n" {
		t.Fatalf("unexpected buffer contents: %q", buf.String())
	}
}
