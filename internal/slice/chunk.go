package slice

import (
	"io"
	"sort"

	"github.com/umccr/htsget-archive/internal/bgzf"
)

// planChunk turns an index chunk into parts. The blocks holding the chunk's
// two ends are cut to the chunk and recompressed; whole blocks in between are
// passed through as one range. Chunk ends are exclusive.
func planChunk(data io.ReaderAt, c bgzf.Chunk) ([]Part, error) {
	startBlock, endBlock := c.Begin.File, c.End.File
	if startBlock == endBlock {
		edge, err := bgzf.TrimBlock(data, startBlock, int(c.Begin.Block), int(c.End.Block))
		if err != nil {
			return nil, err
		}
		return appendInline(nil, edge.Data), nil
	}

	first, err := bgzf.TrimBlock(data, startBlock, int(c.Begin.Block), -1)
	if err != nil {
		return nil, err
	}
	parts := appendInline(nil, first.Data)
	if interior := startBlock + int64(first.Len); interior < endBlock {
		parts = append(parts, bodyRange(interior, endBlock-1))
	}
	if c.End.Block > 0 {
		last, err := bgzf.TrimBlock(data, endBlock, 0, int(c.End.Block))
		if err != nil {
			return nil, err
		}
		parts = appendInline(parts, last.Data)
	}
	return parts, nil
}

// planChunks merges chunks into disjoint spans and plans each span.
func planChunks(data io.ReaderAt, chunks []bgzf.Chunk) ([]Part, error) {
	merged, err := mergeChunks(data, chunks)
	if err != nil {
		return nil, err
	}
	var parts []Part
	for _, c := range merged {
		p, err := planChunk(data, c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p...)
	}
	return parts, nil
}

// mergeChunks sorts chunks by start and joins those that overlap or touch.
// Index chunks often end at the close of a block's payload while the next one
// starts at offset zero of the following block; both name the same position,
// so offsets are normalized to the latter form before comparing.
func mergeChunks(data io.ReaderAt, chunks []bgzf.Chunk) ([]bgzf.Chunk, error) {
	sorted := make([]bgzf.Chunk, 0, len(chunks))
	for _, c := range chunks {
		begin, err := normalize(data, c.Begin)
		if err != nil {
			return nil, err
		}
		end, err := normalize(data, c.End)
		if err != nil {
			return nil, err
		}
		if !before(begin, end) {
			continue
		}
		sorted = append(sorted, bgzf.Chunk{Begin: begin, End: end})
	}
	sort.Slice(sorted, func(i, j int) bool { return before(sorted[i].Begin, sorted[j].Begin) })

	var merged []bgzf.Chunk
	for _, c := range sorted {
		if n := len(merged); n > 0 && !before(merged[n-1].End, c.Begin) {
			if before(merged[n-1].End, c.End) {
				merged[n-1].End = c.End
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged, nil
}

// normalize moves an offset sitting at the end of its block's payload to the
// start of the next block.
func normalize(data io.ReaderAt, o bgzf.Offset) (bgzf.Offset, error) {
	if o.Block == 0 {
		return o, nil
	}
	n, err := bgzf.BlockSize(data, o.File)
	if err != nil {
		return bgzf.Offset{}, err
	}
	size, err := bgzf.PayloadSize(data, o.File, n)
	if err != nil {
		return bgzf.Offset{}, err
	}
	if int(o.Block) >= size {
		return bgzf.Offset{File: o.File + int64(n)}, nil
	}
	return o, nil
}

func before(a, b bgzf.Offset) bool {
	return a.File < b.File || (a.File == b.File && a.Block < b.Block)
}

func appendInline(parts []Part, data []byte) []Part {
	if len(data) == 0 {
		return parts
	}
	return append(parts, bodyInline(data))
}

// dataEnd is the offset of the EOF block, or the file size when there is
// none.
func dataEnd(data Source) int64 {
	size := data.Size()
	if bgzf.HasEOF(data, size) {
		return size - int64(len(bgzf.EOFBlock))
	}
	return size
}
