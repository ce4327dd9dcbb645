package slice

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/biogo/hts/bam"
	hbgzf "github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/sam"

	"github.com/umccr/htsget-archive/internal/bgzf"
	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
	"github.com/umccr/htsget-archive/internal/htsrequest"
)

type bamFormat struct{}

func (bamFormat) name() string {
	return htsconstants.FormatBAM
}

// readHeader decodes the BAM header and writes it back as standalone blocks.
func (bamFormat) readHeader(data Source) (*header, error) {
	if err := rewind(data); err != nil {
		return nil, err
	}
	br, err := bam.NewReader(data, 1)
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "reading BAM header", err)
	}
	defer br.Close()

	var buf bytes.Buffer
	bw, err := bam.NewWriter(&buf, br.Header(), 1)
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "encoding BAM header", err)
	}
	if err := bw.Close(); err != nil {
		return nil, htserror.E(htserror.ServerError, "encoding BAM header", err)
	}
	return &header{
		data:   bytes.TrimSuffix(buf.Bytes(), []byte(bgzf.EOFBlock)),
		footer: []byte(bgzf.EOFBlock),
		sam:    br.Header(),
	}, nil
}

func (bamFormat) body(_ context.Context, data Source, index io.Reader, h *header, r *htsrequest.Region) ([]Part, error) {
	idx, err := bam.ReadIndex(index)
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "reading BAM index", err)
	}
	if r.Unplaced() {
		return bamUnplaced(data, idx, h.sam)
	}

	id, length, err := referenceID(h.sam, r.ReferenceName)
	if err != nil {
		return nil, err
	}
	beg, end, ok := window(r, length)
	if !ok {
		return nil, nil
	}
	chunks, err := idx.Chunks(h.sam.Refs()[id], int(beg), int(end))
	if err != nil {
		// the index holds nothing for this reference or interval
		log.Debug("BAM index lookup %s: %v", r, err)
		return nil, nil
	}
	return planChunks(data, chunks)
}

// bamUnplaced selects the reads stored after every placed read: from the end
// of the last indexed chunk to the EOF block.
func bamUnplaced(data Source, idx *bam.Index, h *sam.Header) ([]Part, error) {
	start, err := bamHeaderEnd(data)
	if err != nil {
		return nil, err
	}
	for _, ref := range h.Refs() {
		end := ref.Len()
		if end > maxIndexPos {
			end = maxIndexPos
		}
		chunks, err := idx.Chunks(ref, 0, end)
		if err != nil {
			continue
		}
		for _, c := range chunks {
			if before(start, c.End) {
				start = c.End
			}
		}
	}
	end := dataEnd(data)
	if start.File >= end {
		return nil, nil
	}
	return planChunk(data, bgzf.Chunk{Begin: start, End: bgzf.Offset{File: end}})
}

// bamHeaderEnd walks the binary header and returns the virtual offset of the
// first record.
func bamHeaderEnd(data Source) (bgzf.Offset, error) {
	if err := rewind(data); err != nil {
		return bgzf.Offset{}, err
	}
	br, err := hbgzf.NewReader(data, 1)
	if err != nil {
		return bgzf.Offset{}, htserror.E(htserror.ServerError, "opening BAM stream", err)
	}
	defer br.Close()

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil || string(magic[:]) != "BAM\x01" {
		return bgzf.Offset{}, htserror.E(htserror.ServerError, "missing BAM magic", err)
	}
	skip := func(n int64) error {
		_, err := io.CopyN(io.Discard, br, n)
		return err
	}
	var n int32
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return bgzf.Offset{}, htserror.E(htserror.ServerError, "reading BAM header text length", err)
	}
	if err := skip(int64(n)); err != nil {
		return bgzf.Offset{}, htserror.E(htserror.ServerError, "skipping BAM header text", err)
	}
	var refs int32
	if err := binary.Read(br, binary.LittleEndian, &refs); err != nil {
		return bgzf.Offset{}, htserror.E(htserror.ServerError, "reading BAM reference count", err)
	}
	for i := int32(0); i < refs; i++ {
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return bgzf.Offset{}, htserror.E(htserror.ServerError, "reading BAM reference", err)
		}
		// name then l_ref
		if err := skip(int64(n) + 4); err != nil {
			return bgzf.Offset{}, htserror.E(htserror.ServerError, "reading BAM reference", err)
		}
	}
	return br.LastChunk().End, nil
}
