// Package cram reads the parts of a CRAM file needed to slice it: the file
// definition, container headers, the SAM header and the .crai index.
package cram

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/klauspost/compress/gzip"

	"github.com/umccr/htsget-archive/internal/htserror"
)

// DefinitionSize is the length of the file definition that opens a CRAM file.
const DefinitionSize = 26

// EOF containers by major version.
const (
	EOFv2 = "\x0b\x00\x00\x00\xff\xff\xff\xff\xff\xe0\x45\x4f\x46\x00\x00\x00\x00\x01\x00\x00\x01\x00\x06\x06\x01\x00\x01\x00\x01\x00"
	EOFv3 = "\x0f\x00\x00\x00\xff\xff\xff\xff\x0f\xe0\x45\x4f\x46\x00\x00\x00\x00\x01\x00\x05\xbd\xd9\x4f\x00\x01\x00\x06\x06\x01\x00\x01\x00\x01\x00\xee\x63\x01\x4b"
)

// block compression methods
const (
	methodRaw  = 0
	methodGzip = 1
)

// Definition is the CRAM file definition.
type Definition struct {
	Major, Minor byte
	FileID       [20]byte
}

// EOF returns the end-of-file container for the file's version.
func (d Definition) EOF() (string, error) {
	switch d.Major {
	case 2:
		return EOFv2, nil
	case 3:
		return EOFv3, nil
	}
	return "", htserror.E(htserror.UnsupportedFormat, fmt.Sprintf("CRAM version %d.%d", d.Major, d.Minor), nil)
}

// ReadDefinition reads the file definition at the start of r.
func ReadDefinition(r io.ReaderAt) (Definition, error) {
	var buf [DefinitionSize]byte
	if _, err := r.ReadAt(buf[:], 0); err != nil {
		return Definition{}, htserror.E(htserror.ServerError, "reading CRAM file definition", err)
	}
	if string(buf[:4]) != "CRAM" {
		return Definition{}, htserror.E(htserror.ServerError, "missing CRAM magic", nil)
	}
	d := Definition{Major: buf[4], Minor: buf[5]}
	copy(d.FileID[:], buf[6:])
	if _, err := d.EOF(); err != nil {
		return Definition{}, err
	}
	return d, nil
}

// ContainerHeader is the fixed part of a container.
type ContainerHeader struct {
	// Offset is the container's position in the file.
	Offset int64
	// HeaderSize is the encoded size of this header and Length the size of
	// the blocks that follow it.
	HeaderSize  int64
	Length      int32
	RefID       int32
	Start       int32
	Span        int32
	Records     int32
	RecordCount int64
	Bases       int64
	Blocks      int32
	Landmarks   []int32
}

// Size is the container's total on-disk size.
func (h *ContainerHeader) Size() int64 {
	return h.HeaderSize + int64(h.Length)
}

// End is the offset just past the container.
func (h *ContainerHeader) End() int64 {
	return h.Offset + h.Size()
}

// sectionReader reads forward from an offset of an io.ReaderAt.
func sectionReader(r io.ReaderAt, off int64) *byteReader {
	return &byteReader{r: bufio.NewReaderSize(io.NewSectionReader(r, off, 1<<62), 4096)}
}

// ReadContainerHeader parses the container header at off.
func ReadContainerHeader(r io.ReaderAt, off int64, d Definition) (*ContainerHeader, error) {
	h, err := readContainerHeader(sectionReader(r, off), off, d)
	if err != nil {
		return nil, htserror.E(htserror.ServerError, fmt.Sprintf("CRAM container at %d", off), err)
	}
	return h, nil
}

func readContainerHeader(b *byteReader, off int64, d Definition) (*ContainerHeader, error) {
	h := &ContainerHeader{Offset: off}
	var err error
	if h.Length, err = b.int32(); err != nil {
		return nil, err
	}
	if h.Length < 0 {
		return nil, fmt.Errorf("negative length %d", h.Length)
	}
	for _, dst := range []*int32{&h.RefID, &h.Start, &h.Span, &h.Records} {
		if *dst, err = b.itf8(); err != nil {
			return nil, err
		}
	}
	if h.RecordCount, err = b.ltf8(); err != nil {
		return nil, err
	}
	if h.Bases, err = b.ltf8(); err != nil {
		return nil, err
	}
	if h.Blocks, err = b.itf8(); err != nil {
		return nil, err
	}
	n, err := b.itf8()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative landmark count %d", n)
	}
	h.Landmarks = make([]int32, n)
	for i := range h.Landmarks {
		if h.Landmarks[i], err = b.itf8(); err != nil {
			return nil, err
		}
	}
	if d.Major >= 3 {
		if _, err := b.int32(); err != nil { // crc32
			return nil, err
		}
	}
	h.HeaderSize = b.n
	return h, nil
}

// ReadHeader reads the header container that follows the file definition and
// decodes the SAM header it carries.
func ReadHeader(r io.ReaderAt, d Definition) (*ContainerHeader, *sam.Header, error) {
	b := sectionReader(r, DefinitionSize)
	ch, err := readContainerHeader(b, DefinitionSize, d)
	if err != nil {
		return nil, nil, htserror.E(htserror.ServerError, "CRAM header container", err)
	}
	text, err := readHeaderBlock(b, d)
	if err != nil {
		return nil, nil, htserror.E(htserror.ServerError, "CRAM header block", err)
	}
	h, err := sam.NewHeader(text, nil)
	if err != nil {
		return nil, nil, htserror.E(htserror.ServerError, "parsing CRAM SAM header", err)
	}
	return ch, h, nil
}

func readHeaderBlock(b *byteReader, d Definition) ([]byte, error) {
	method, err := b.ReadByte()
	if err != nil {
		return nil, err
	}
	if _, err := b.ReadByte(); err != nil { // content type
		return nil, err
	}
	if _, err := b.itf8(); err != nil { // content id
		return nil, err
	}
	compressed, err := b.itf8()
	if err != nil {
		return nil, err
	}
	if _, err := b.itf8(); err != nil { // raw size
		return nil, err
	}
	if compressed < 0 {
		return nil, fmt.Errorf("negative block size %d", compressed)
	}
	data := make([]byte, compressed)
	for i := range data {
		if data[i], err = b.ReadByte(); err != nil {
			return nil, err
		}
	}
	switch method {
	case methodRaw:
	case methodGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		if data, err = io.ReadAll(gz); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported header block compression %d", method)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("header block of %d bytes", len(data))
	}
	n := int(binary.LittleEndian.Uint32(data))
	if n > len(data)-4 {
		return nil, fmt.Errorf("header text of %d bytes in block of %d", n, len(data))
	}
	return data[4 : 4+n], nil
}

// IndexEntry is one line of a .crai index: a slice of a container.
type IndexEntry struct {
	RefID           int32
	AlignmentStart  int64
	AlignmentSpan   int64
	ContainerOffset int64
	SliceOffset     int64
	SliceSize       int64
}

// Overlaps reports whether the slice holds alignments in the 0-based half-open
// interval [start, end).
func (e IndexEntry) Overlaps(start, end int64) bool {
	first := e.AlignmentStart - 1
	if first < 0 {
		first = 0
	}
	return first < end && first+e.AlignmentSpan > start
}

// ReadIndex parses a gzip compressed .crai index.
func ReadIndex(r io.Reader) ([]IndexEntry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "opening CRAM index", err)
	}
	defer gz.Close()
	var entries []IndexEntry
	sc := bufio.NewScanner(gz)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 6 {
			return nil, htserror.E(htserror.ServerError, fmt.Sprintf("CRAM index line %d has %d fields", line, len(fields)), nil)
		}
		var v [6]int64
		for i, f := range fields {
			if v[i], err = strconv.ParseInt(f, 10, 64); err != nil {
				return nil, htserror.E(htserror.ServerError, fmt.Sprintf("CRAM index line %d", line), err)
			}
		}
		entries = append(entries, IndexEntry{
			RefID:           int32(v[0]),
			AlignmentStart:  v[1],
			AlignmentSpan:   v[2],
			ContainerOffset: v[3],
			SliceOffset:     v[4],
			SliceSize:       v[5],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, htserror.E(htserror.ServerError, "reading CRAM index", err)
	}
	return entries, nil
}
