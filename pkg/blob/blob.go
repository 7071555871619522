// Package blob implements the blob-chunking protocol (component C12):
// splitting a large binary tool result into ordered, correlated
// fragments the daemon reassembles by id and sequence.
package blob

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/pluginrt/plugin-go-sdk/pkg/protocol"
)

// Split breaks data into protocol.BlobChunkSize fragments sharing a
// freshly generated correlation id, each carrying the full blob length
// and a strictly increasing sequence number. The final fragment (an
// empty blob, or the whole input if it is empty) carries End=true.
func Split(data []byte) []protocol.BlobChunk {
	id := uuid.NewString()
	total := uint64(len(data))

	if len(data) == 0 {
		return []protocol.BlobChunk{{ID: id, Sequence: 0, TotalLength: 0, End: true, Blob: nil}}
	}

	var chunks []protocol.BlobChunk
	seq := uint32(0)
	for offset := 0; offset < len(data); offset += protocol.BlobChunkSize {
		end := offset + protocol.BlobChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, protocol.BlobChunk{
			ID:          id,
			Sequence:    seq,
			TotalLength: total,
			End:         false,
			Blob:        data[offset:end],
		})
		seq++
	}
	chunks = append(chunks, protocol.BlobChunk{ID: id, Sequence: seq, TotalLength: total, End: true})
	return chunks
}

// Reassembler accumulates fragments for a single blob id in any arrival
// order, and yields the reconstructed blob, joined in sequence order,
// once the terminal fragment is seen.
type Reassembler struct {
	id      string
	total   uint64
	pieces  map[uint32][]byte
	maxSeq  uint32
	sawEnd  bool
	started bool
}

// NewReassembler creates an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{pieces: make(map[uint32][]byte)}
}

// Add ingests one fragment. It returns (blob, true, nil) once the
// terminal fragment has been seen and every sequence from 0..max is
// present with no gaps. Before the terminal fragment it returns
// (nil, false, nil); once the terminal fragment has been seen, a missing
// sequence is reported as an error. A fragment whose id does not match the id of a prior fragment in this
// Reassembler is an error — callers key one Reassembler per blob id.
func (r *Reassembler) Add(chunk protocol.BlobChunk) ([]byte, bool, error) {
	if !r.started {
		r.id = chunk.ID
		r.total = chunk.TotalLength
		r.started = true
	} else if chunk.ID != r.id {
		return nil, false, fmt.Errorf("blob: fragment id %q does not match reassembler id %q", chunk.ID, r.id)
	}

	r.pieces[chunk.Sequence] = chunk.Blob
	if chunk.Sequence > r.maxSeq {
		r.maxSeq = chunk.Sequence
	}
	if chunk.End {
		r.sawEnd = true
	}

	if !r.sawEnd {
		return nil, false, nil
	}

	out := make([]byte, 0, r.total)
	for seq := uint32(0); seq <= r.maxSeq; seq++ {
		piece, ok := r.pieces[seq]
		if !ok {
			return nil, false, fmt.Errorf("blob: missing fragment %d for id %q", seq, r.id)
		}
		out = append(out, piece...)
	}
	return out, true, nil
}
