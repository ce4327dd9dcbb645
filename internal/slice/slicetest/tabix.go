// Package slicetest builds index files for tests.
package slicetest

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/gzip"

	"github.com/umccr/htsget-archive/internal/bgzf"
)

// TabixRef is one reference of a tabix index and the chunks holding its
// records.
type TabixRef struct {
	Name   string
	Chunks []bgzf.Chunk
}

// binFirst16k is the bin of the first 16kb of a reference.
const binFirst16k = 4681

// TabixIndex encodes a VCF .tbi that files every chunk of a reference under
// the bin of its first 16kb, so records must lie below position 16384.
func TabixIndex(refs []TabixRef) ([]byte, error) {
	var b bytes.Buffer
	var err error
	put := func(v interface{}) {
		if err == nil {
			err = binary.Write(&b, binary.LittleEndian, v)
		}
	}
	b.WriteString("TBI\x01")
	put(int32(len(refs)))
	put(int32(2)) // VCF
	put(int32(1)) // sequence column
	put(int32(2)) // begin column
	put(int32(0)) // end column
	put(int32('#'))
	put(int32(0))
	var names []byte
	for _, r := range refs {
		names = append(append(names, r.Name...), 0)
	}
	put(int32(len(names)))
	b.Write(names)
	for _, r := range refs {
		put(int32(1))
		put(uint32(binFirst16k))
		put(int32(len(r.Chunks)))
		for _, c := range r.Chunks {
			put(bgzf.Virtual(c.Begin))
			put(bgzf.Virtual(c.End))
		}
		put(int32(1))
		if len(r.Chunks) > 0 {
			put(bgzf.Virtual(r.Chunks[0].Begin))
		} else {
			put(uint64(0))
		}
	}
	put(uint64(0))
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	gz := gzip.NewWriter(&out)
	if _, err := gz.Write(b.Bytes()); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
