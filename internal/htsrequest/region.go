package htsrequest

import (
	"fmt"
	"math"

	"github.com/umccr/htsget-archive/internal/htsconstants"
)

// MaxEnd is the open end of a region.
const MaxEnd = math.MaxInt64

// Region is a genomic interval on one reference sequence. Start is 0-based
// inclusive and End exclusive, as in htsget.
type Region struct {
	ReferenceName string
	Start         int64
	End           int64
}

// Query is a validated slice request against one file.
type Query struct {
	Format     string
	HeaderOnly bool
	// Region is nil when the whole file is requested.
	Region *Region
}

// Unplaced reports whether the region selects reads without a position.
func (r *Region) Unplaced() bool {
	return r.ReferenceName == htsconstants.UnplacedReferenceName
}

// StartRequested is true when the region does not begin at zero.
func (r *Region) StartRequested() bool {
	return r.Start > 0
}

// EndRequested is true when the region has a finite end.
func (r *Region) EndRequested() bool {
	return r.End != MaxEnd
}

func (r *Region) String() string {
	end := "MAX"
	if r.EndRequested() {
		end = fmt.Sprint(r.End)
	}
	return fmt.Sprintf("%s:%d-%s", r.ReferenceName, r.Start, end)
}

// WholeFile reports whether the query covers every record in the file.
func (q *Query) WholeFile() bool {
	return q.Region == nil && !q.HeaderOnly
}
