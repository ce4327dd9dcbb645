package slice

import (
	"fmt"

	"github.com/umccr/htsget-archive/internal/htsconstants"
)

type PartKind int

const (
	// InlinePart carries its bytes.
	InlinePart PartKind = iota
	// RangePart references bytes [Start, End] of the file.
	RangePart
)

// Part is one piece of a sliced file.
type Part struct {
	Kind  PartKind
	Class string
	Data  []byte
	Start int64
	// End is inclusive.
	End int64
}

func Inline(class string, data []byte) Part {
	return Part{Kind: InlinePart, Class: class, Data: data}
}

func Range(class string, start, end int64) Part {
	return Part{Kind: RangePart, Class: class, Start: start, End: end}
}

// Len is the number of bytes the part resolves to.
func (p Part) Len() int64 {
	if p.Kind == InlinePart {
		return int64(len(p.Data))
	}
	return p.End - p.Start + 1
}

func (p Part) String() string {
	if p.Kind == InlinePart {
		return fmt.Sprintf("inline(%d bytes)", len(p.Data))
	}
	return fmt.Sprintf("bytes=%d-%d", p.Start, p.End)
}

// Slice is the ordered answer to a query: header, body, footer.
type Slice struct {
	Format string
	Header []Part
	Parts  []Part
	Footer []Part
}

// All returns every part in order.
func (s *Slice) All() []Part {
	all := make([]Part, 0, len(s.Header)+len(s.Parts)+len(s.Footer))
	all = append(all, s.Header...)
	all = append(all, s.Parts...)
	return append(all, s.Footer...)
}

// splitRanges breaks range parts longer than max into contiguous pieces of at
// most max bytes. Inline parts pass through.
func splitRanges(parts []Part, max int64) []Part {
	if max <= 0 {
		return parts
	}
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		if p.Kind != RangePart || p.Len() <= max {
			out = append(out, p)
			continue
		}
		for start := p.Start; start <= p.End; start += max {
			end := start + max - 1
			if end > p.End {
				end = p.End
			}
			out = append(out, Range(p.Class, start, end))
		}
	}
	return out
}

// coalesce merges range parts that directly follow each other.
func coalesce(parts []Part) []Part {
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		if n := len(out); n > 0 && p.Kind == RangePart && out[n-1].Kind == RangePart && out[n-1].End+1 == p.Start {
			out[n-1].End = p.End
			continue
		}
		out = append(out, p)
	}
	return out
}

func bodyInline(data []byte) Part {
	return Inline(htsconstants.ClassBody, data)
}

func bodyRange(start, end int64) Part {
	return Range(htsconstants.ClassBody, start, end)
}
