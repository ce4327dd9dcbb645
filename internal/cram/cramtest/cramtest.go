// Package cramtest builds small CRAM files and indexes for tests. Data
// containers carry opaque payloads; only the structure readers rely on is
// real.
package cramtest

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/gzip"

	"github.com/umccr/htsget-archive/internal/cram"
)

// ITF8 encodes v as a CRAM itf8 integer.
func ITF8(v int32) []byte {
	u := uint32(v)
	switch {
	case v >= 0 && v < 0x80:
		return []byte{byte(u)}
	case v >= 0 && v < 0x4000:
		return []byte{0x80 | byte(u>>8), byte(u)}
	case v >= 0 && v < 0x200000:
		return []byte{0xc0 | byte(u>>16), byte(u >> 8), byte(u)}
	case v >= 0 && v < 0x10000000:
		return []byte{0xe0 | byte(u>>24), byte(u >> 16), byte(u >> 8), byte(u)}
	}
	return []byte{0xf0 | byte(u>>28)&0x0f, byte(u >> 20), byte(u >> 12), byte(u >> 4), byte(u) & 0x0f}
}

// LTF8 encodes v as a CRAM ltf8 integer.
func LTF8(v int64) []byte {
	if v >= 0 && v < 0x80 {
		return []byte{byte(v)}
	}
	b := make([]byte, 9)
	b[0] = 0xff
	binary.BigEndian.PutUint64(b[1:], uint64(v))
	return b
}

func le32(v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

// Container encodes a container whose blocks are the opaque payload.
func Container(major byte, refID, start, span, records int32, blocks int32, payload []byte) []byte {
	var h bytes.Buffer
	h.Write(le32(int32(len(payload))))
	h.Write(ITF8(refID))
	h.Write(ITF8(start))
	h.Write(ITF8(span))
	h.Write(ITF8(records))
	h.Write(LTF8(0))
	h.Write(LTF8(int64(records) * 100))
	h.Write(ITF8(blocks))
	h.Write(ITF8(0))
	if major >= 3 {
		h.Write(le32(0))
	}
	h.Write(payload)
	return h.Bytes()
}

// HeaderContainer encodes a header container carrying samText.
func HeaderContainer(major byte, samText string, compress bool) []byte {
	raw := append(le32(int32(len(samText))), samText...)
	data := raw
	method := byte(0)
	if compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write(raw)
		_ = gz.Close()
		data = buf.Bytes()
		method = 1
	}
	var block bytes.Buffer
	block.WriteByte(method)
	block.WriteByte(0) // FILE_HEADER
	block.Write(ITF8(0))
	block.Write(ITF8(int32(len(data))))
	block.Write(ITF8(int32(len(raw))))
	block.Write(data)
	if major >= 3 {
		block.Write(le32(0))
	}
	return Container(major, 0, 0, 0, 0, 1, block.Bytes())
}

// ContainerDef describes one data container of a test file.
type ContainerDef struct {
	RefID, Start, Span int32
	Payload            []byte
}

// File is an encoded CRAM file.
type File struct {
	Data []byte
	// HeaderEnd is the offset just past the header container.
	HeaderEnd int64
	// Offsets and Ends bound each data container.
	Offsets []int64
	Ends    []int64
}

// Build encodes a CRAM file with the given SAM header and containers.
func Build(major byte, samText string, compressHeader bool, containers []ContainerDef) *File {
	var buf bytes.Buffer
	buf.WriteString("CRAM")
	buf.WriteByte(major)
	buf.WriteByte(0)
	buf.Write(make([]byte, 20))
	buf.Write(HeaderContainer(major, samText, compressHeader))
	f := &File{HeaderEnd: int64(buf.Len())}
	for _, c := range containers {
		f.Offsets = append(f.Offsets, int64(buf.Len()))
		buf.Write(Container(major, c.RefID, c.Start, c.Span, 1, 1, c.Payload))
		f.Ends = append(f.Ends, int64(buf.Len()))
	}
	if major == 2 {
		buf.WriteString(cram.EOFv2)
	} else {
		buf.WriteString(cram.EOFv3)
	}
	f.Data = buf.Bytes()
	return f
}

// Index encodes a .crai index with one slice per container.
func Index(f *File, containers []ContainerDef) []byte {
	var text bytes.Buffer
	for i, c := range containers {
		fmt.Fprintf(&text, "%d\t%d\t%d\t%d\t%d\t%d\n", c.RefID, c.Start, c.Span, f.Offsets[i], 0, f.Ends[i]-f.Offsets[i])
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write(text.Bytes())
	_ = gz.Close()
	return buf.Bytes()
}
