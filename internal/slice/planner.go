// Package slice plans the parts of a genomic file that answer a region query.
// A plan is a header, body parts and a footer; body parts are either byte
// ranges of the original file or small recompressed blocks carried inline.
package slice

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/biogo/hts/sam"

	"github.com/umccr/htsget-archive/internal/cram"
	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
	"github.com/umccr/htsget-archive/internal/htsrequest"
)

// Source is the data file a plan is computed against.
type Source interface {
	io.ReadSeeker
	io.ReaderAt
	Size() int64
}

// Planner computes slices for one format.
type Planner interface {
	Format() string
	Plan(ctx context.Context, q htsrequest.Query, data Source, index io.Reader) (*Slice, error)
}

// header is what a format learns from the top of its file.
type header struct {
	data   []byte
	footer []byte
	sam    *sam.Header
	cram   cram.Definition

	// contigs declared by a VCF header
	contigs []string
}

// format is the per-format part of planning.
type format interface {
	name() string
	readHeader(data Source) (*header, error)
	// body returns the body parts for r, unsplit.
	body(ctx context.Context, data Source, index io.Reader, h *header, r *htsrequest.Region) ([]Part, error)
}

type planner struct {
	format
	maxBlockBytes int64
}

func (p *planner) Format() string {
	return p.name()
}

func (p *planner) Plan(ctx context.Context, q htsrequest.Query, data Source, index io.Reader) (*Slice, error) {
	s := &Slice{Format: p.name()}
	if q.WholeFile() {
		if data.Size() > 0 {
			s.Parts = splitRanges([]Part{bodyRange(0, data.Size()-1)}, p.maxBlockBytes)
		}
		return s, nil
	}
	if r := q.Region; r != nil {
		if r.End < r.Start {
			return nil, htserror.E(htserror.InvalidRange, "end is before start", nil)
		}
		if r.Unplaced() && (r.StartRequested() || r.EndRequested()) {
			return nil, htserror.E(htserror.InvalidInput, "start and end cannot be used with referenceName=*", nil)
		}
	}

	h, err := p.readHeader(data)
	if err != nil {
		return nil, err
	}
	s.Header = []Part{Inline(htsconstants.ClassHeader, h.data)}
	s.Footer = []Part{bodyInline(h.footer)}
	if q.HeaderOnly {
		return s, nil
	}
	if q.Region == nil {
		return nil, htserror.E(htserror.InvalidInput, "query has no region", nil)
	}

	parts, err := p.body(ctx, data, index, h, q.Region)
	if err != nil {
		return nil, err
	}
	s.Parts = splitRanges(coalesce(parts), p.maxBlockBytes)
	log.Debug("%s %s: %d header, %d body parts", p.name(), q.Region, len(s.Header), len(s.Parts))
	return s, nil
}

// Factory hands out planners by format name.
type Factory struct {
	maxBlockBytes int64
}

// NewFactory returns a factory whose planners split ranges longer than
// maxBlockBytes. A non-positive budget disables splitting.
func NewFactory(maxBlockBytes int64) *Factory {
	return &Factory{maxBlockBytes: maxBlockBytes}
}

// ForFormat returns the planner for a format.
func (f *Factory) ForFormat(name string) (Planner, error) {
	var impl format
	switch strings.ToUpper(name) {
	case htsconstants.FormatBAM:
		impl = bamFormat{}
	case htsconstants.FormatCRAM:
		impl = cramFormat{}
	case htsconstants.FormatVCF:
		impl = vcfFormat{}
	case htsconstants.FormatBCF:
		return nil, htserror.E(htserror.UnsupportedFormat, "BCF slicing is not enabled", nil)
	default:
		return nil, htserror.E(htserror.UnsupportedFormat, fmt.Sprintf("format %q", name), nil)
	}
	return &planner{format: impl, maxBlockBytes: f.maxBlockBytes}, nil
}

// DetectFormat guesses a file's format from its name.
func DetectFormat(name string) (string, error) {
	lower := strings.ToLower(path.Base(name))
	switch {
	case strings.HasSuffix(lower, ".bam"):
		return htsconstants.FormatBAM, nil
	case strings.HasSuffix(lower, ".cram"):
		return htsconstants.FormatCRAM, nil
	case strings.HasSuffix(lower, ".vcf.gz"):
		return htsconstants.FormatVCF, nil
	case strings.HasSuffix(lower, ".bcf"):
		return htsconstants.FormatBCF, nil
	}
	return "", htserror.E(htserror.UnsupportedFormat, "cannot tell the format of "+name, nil)
}

// IndexSuffix is appended to a data file's name to find its index.
func IndexSuffix(format string) string {
	switch strings.ToUpper(format) {
	case htsconstants.FormatBAM:
		return ".bai"
	case htsconstants.FormatCRAM:
		return ".crai"
	case htsconstants.FormatVCF:
		return ".tbi"
	case htsconstants.FormatBCF:
		return ".csi"
	}
	return ""
}

// referenceID finds name in the header's reference dictionary.
func referenceID(h *sam.Header, name string) (int, int64, error) {
	for _, ref := range h.Refs() {
		if ref.Name() == name {
			return ref.ID(), int64(ref.Len()), nil
		}
	}
	return -1, 0, htserror.E(htserror.NotFound, "reference "+name+" not found", nil)
}

// maxIndexPos is the largest position the binning indexes address.
const maxIndexPos = 1<<29 - 1

// window clamps r to a reference of the given length, zero meaning unknown. A
// region with equal start and end selects the single base at start. ok is
// false when nothing is left.
func window(r *htsrequest.Region, length int64) (beg, end int64, ok bool) {
	beg, end = r.Start, r.End
	if end == beg {
		end = beg + 1
	}
	if length > 0 && end > length {
		end = length
	}
	if end > maxIndexPos {
		end = maxIndexPos
	}
	return beg, end, beg < end
}

func rewind(data Source) error {
	if _, err := data.Seek(0, io.SeekStart); err != nil {
		return htserror.E(htserror.ServerError, "rewinding data file", err)
	}
	return nil
}
