package blob

import (
	"bytes"
	"testing"

	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
)

func TestSplitAndReassembleRoundTrip(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("x"), protocol.BlobChunkSize*3+17)
	chunks := Split(data)

	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks (4 data + empty terminator), got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.End != (i == len(chunks)-1) {
			t.Fatalf("chunk %d: unexpected End=%v", i, c.End)
		}
		if c.TotalLength != uint64(len(data)) {
			t.Fatalf("chunk %d: unexpected TotalLength=%d", i, c.TotalLength)
		}
	}

	r := NewReassembler()
	var out []byte
	var done bool
	for _, c := range chunks {
		var err error
		out, done, err = r.Add(c)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if !done {
		t.Fatal("expected reassembly to complete after the terminal fragment")
	}
	if !bytes.Equal(out, data) {
		t.Fatal("reassembled blob does not match original")
	}
}

func TestSplitEmptyDataYieldsSingleTerminalChunk(t *testing.T) {
	t.Parallel()

	chunks := Split(nil)
	if len(chunks) != 1 || !chunks[0].End {
		t.Fatalf("expected a single terminal chunk, got %+v", chunks)
	}
}

func TestReassemblerIncompleteUntilEnd(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("y"), protocol.BlobChunkSize+1)
	chunks := Split(data)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks (2 data + empty terminator), got %d", len(chunks))
	}

	r := NewReassembler()
	_, done, err := r.Add(chunks[0])
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if done {
		t.Fatal("expected reassembly to still be incomplete before the terminal fragment")
	}
}

func TestReassemblerRejectsMismatchedID(t *testing.T) {
	t.Parallel()

	r := NewReassembler()
	if _, _, err := r.Add(protocol.BlobChunk{ID: "a", Sequence: 0, End: false}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, _, err := r.Add(protocol.BlobChunk{ID: "b", Sequence: 1, End: true}); err == nil {
		t.Fatal("expected mismatched id error")
	}
}
