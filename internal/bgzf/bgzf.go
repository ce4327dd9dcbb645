// Package bgzf provides block level access to BGZF files: reading a block's
// size from its header, decompressing a single block and packing payloads
// back into standalone blocks.
package bgzf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"

	"github.com/umccr/htsget-archive/internal/htserror"
)

// Chunk is a region of a BGZF file bounded by two virtual offsets.
type Chunk = bgzf.Chunk

// Offset is a virtual file offset.
type Offset = bgzf.Offset

const (
	// HeaderSize is the length of a BGZF block header, BSIZE included.
	HeaderSize = 18
	// MaxBlockSize bounds the on-disk size of a block.
	MaxBlockSize = 1 << 16
	// MaxPayload is the most uncompressed data packed into one block.
	MaxPayload = 0xff00

	bsizeOffset = 16
)

// EOFBlock is the empty block that terminates a BGZF file.
const EOFBlock = "\x1f\x8b\x08\x04\x00\x00\x00\x00\x00\xff\x06\x00\x42\x43\x02\x00\x1b\x00\x03\x00\x00\x00\x00\x00\x00\x00\x00\x00"

// extra is the BC subfield with a zero BSIZE that Compress patches.
var extra = []byte{'B', 'C', 2, 0, 0, 0}

// Virtual packs o as a 64-bit virtual file offset.
func Virtual(o Offset) uint64 {
	return uint64(o.File)<<16 | uint64(o.Block)
}

// ParseVirtual splits a virtual file offset.
func ParseVirtual(v uint64) Offset {
	return Offset{File: int64(v >> 16), Block: uint16(v)}
}

func malformed(addr int64, format string, args ...interface{}) error {
	return htserror.E(htserror.ServerError, fmt.Sprintf("bgzf block at %d: ", addr)+fmt.Sprintf(format, args...), nil)
}

// BlockSize reads the header of the block at addr and returns the block's
// total on-disk length.
func BlockSize(r io.ReaderAt, addr int64) (int, error) {
	var h [HeaderSize]byte
	if _, err := r.ReadAt(h[:], addr); err != nil {
		return 0, htserror.E(htserror.ServerError, fmt.Sprintf("reading bgzf header at %d", addr), err)
	}
	if h[0] != 0x1f || h[1] != 0x8b || h[2] != 8 || h[3]&4 == 0 {
		return 0, malformed(addr, "not a gzip member with extra field")
	}
	if binary.LittleEndian.Uint16(h[10:]) < 6 || h[12] != 'B' || h[13] != 'C' || binary.LittleEndian.Uint16(h[14:]) != 2 {
		return 0, malformed(addr, "missing BC subfield")
	}
	return int(binary.LittleEndian.Uint16(h[bsizeOffset:])) + 1, nil
}

// ReadBlock returns the raw bytes of the block at addr.
func ReadBlock(r io.ReaderAt, addr int64) ([]byte, error) {
	n, err := BlockSize(r, addr)
	if err != nil {
		return nil, err
	}
	block := make([]byte, n)
	if _, err := r.ReadAt(block, addr); err != nil {
		return nil, htserror.E(htserror.ServerError, fmt.Sprintf("reading bgzf block at %d", addr), err)
	}
	return block, nil
}

// Decompress inflates one raw block.
func Decompress(block []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(block))
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "opening bgzf block", err)
	}
	defer gz.Close()
	gz.Multistream(false)
	payload, err := io.ReadAll(gz)
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "inflating bgzf block", err)
	}
	return payload, nil
}

// Compress packs payload into standalone BGZF blocks, one per MaxPayload
// bytes. An empty payload yields no blocks.
func Compress(payload []byte) ([]byte, error) {
	var out bytes.Buffer
	for len(payload) > 0 {
		n := len(payload)
		if n > MaxPayload {
			n = MaxPayload
		}
		if err := compressBlock(&out, payload[:n]); err != nil {
			return nil, err
		}
		payload = payload[n:]
	}
	return out.Bytes(), nil
}

func compressBlock(out *bytes.Buffer, payload []byte) error {
	start := out.Len()
	gz, err := gzip.NewWriterLevel(out, gzip.DefaultCompression)
	if err != nil {
		return err
	}
	gz.Header.Extra = extra
	gz.Header.OS = 0xff
	if _, err := gz.Write(payload); err != nil {
		return htserror.E(htserror.ServerError, "deflating bgzf block", err)
	}
	if err := gz.Close(); err != nil {
		return htserror.E(htserror.ServerError, "deflating bgzf block", err)
	}
	block := out.Bytes()[start:]
	if len(block) > MaxBlockSize {
		return htserror.E(htserror.ServerError, fmt.Sprintf("bgzf block of %d bytes exceeds limit", len(block)), nil)
	}
	binary.LittleEndian.PutUint16(block[bsizeOffset:], uint16(len(block)-1))
	return nil
}

// HasEOF reports whether the size bytes readable from r end with EOFBlock.
func HasEOF(r io.ReaderAt, size int64) bool {
	if size < int64(len(EOFBlock)) {
		return false
	}
	tail := make([]byte, len(EOFBlock))
	if _, err := r.ReadAt(tail, size-int64(len(tail))); err != nil {
		return false
	}
	return string(tail) == EOFBlock
}

// PayloadSize returns the uncompressed length of the n byte block at addr,
// read from the ISIZE field of its gzip trailer.
func PayloadSize(r io.ReaderAt, addr int64, n int) (int, error) {
	if n < HeaderSize+8 {
		return 0, malformed(addr, "block of %d bytes is too short", n)
	}
	var isize [4]byte
	if _, err := r.ReadAt(isize[:], addr+int64(n)-4); err != nil {
		return 0, htserror.E(htserror.ServerError, fmt.Sprintf("reading bgzf trailer at %d", addr), err)
	}
	return int(binary.LittleEndian.Uint32(isize[:])), nil
}
