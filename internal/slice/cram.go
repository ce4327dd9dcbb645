package slice

import (
	"context"
	"io"
	"sort"

	"github.com/umccr/htsget-archive/internal/cram"
	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
	"github.com/umccr/htsget-archive/internal/htsrequest"
)

// unmappedRefID marks unplaced slices in a .crai index.
const unmappedRefID = -1

type cramFormat struct{}

func (cramFormat) name() string {
	return htsconstants.FormatCRAM
}

// readHeader copies the file definition and header container verbatim.
func (cramFormat) readHeader(data Source) (*header, error) {
	def, err := cram.ReadDefinition(data)
	if err != nil {
		return nil, err
	}
	ch, sh, err := cram.ReadHeader(data, def)
	if err != nil {
		return nil, err
	}
	eof, err := def.EOF()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, ch.End())
	if _, err := data.ReadAt(buf, 0); err != nil {
		return nil, htserror.E(htserror.ServerError, "reading CRAM header container", err)
	}
	return &header{data: buf, footer: []byte(eof), sam: sh, cram: def}, nil
}

func (cramFormat) body(_ context.Context, data Source, index io.Reader, h *header, r *htsrequest.Region) ([]Part, error) {
	entries, err := cram.ReadIndex(index)
	if err != nil {
		return nil, err
	}

	refID := int32(unmappedRefID)
	var beg, end int64
	if !r.Unplaced() {
		id, length, err := referenceID(h.sam, r.ReferenceName)
		if err != nil {
			return nil, err
		}
		var ok bool
		if beg, end, ok = window(r, length); !ok {
			return nil, nil
		}
		refID = int32(id)
	}

	seen := make(map[int64]bool)
	var offsets []int64
	for _, e := range entries {
		if e.RefID != refID || seen[e.ContainerOffset] {
			continue
		}
		if refID != unmappedRefID && !e.Overlaps(beg, end) {
			continue
		}
		seen[e.ContainerOffset] = true
		offsets = append(offsets, e.ContainerOffset)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	parts := make([]Part, 0, len(offsets))
	for _, off := range offsets {
		ch, err := cram.ReadContainerHeader(data, off, h.cram)
		if err != nil {
			return nil, err
		}
		parts = append(parts, bodyRange(off, ch.End()-1))
	}
	return parts, nil
}
