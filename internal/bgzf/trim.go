package bgzf

import (
	"fmt"
	"io"

	"github.com/umccr/htsget-archive/internal/htserror"
)

// Edge is a boundary block cut down to part of its payload.
type Edge struct {
	// Addr is the block's file offset and Len its on-disk length.
	Addr int64
	Len  int
	// Data holds the trimmed payload recompressed into fresh blocks. It is
	// empty when nothing of the block is kept.
	Data []byte
}

// TrimBlock keeps the uncompressed bytes [from, to) of the block at addr and
// recompresses them. A negative to keeps the rest of the block.
func TrimBlock(r io.ReaderAt, addr int64, from, to int) (Edge, error) {
	raw, err := ReadBlock(r, addr)
	if err != nil {
		return Edge{}, err
	}
	payload, err := Decompress(raw)
	if err != nil {
		return Edge{}, err
	}
	if to < 0 || to > len(payload) {
		to = len(payload)
	}
	if from > to {
		return Edge{}, htserror.E(htserror.ServerError,
			fmt.Sprintf("bgzf block at %d: offset %d beyond payload of %d bytes", addr, from, len(payload)), nil)
	}
	data, err := Compress(payload[from:to])
	if err != nil {
		return Edge{}, err
	}
	return Edge{Addr: addr, Len: len(raw), Data: data}, nil
}
