// Package htsrequest parses and validates htsget ticket parameters.
package htsrequest

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
)

// Endpoint selects the format defaults and the formats allowed.
type Endpoint int

const (
	ReadsEndpoint Endpoint = iota
	VariantsEndpoint
)

var endpointFormats = map[Endpoint][]string{
	ReadsEndpoint:    {htsconstants.FormatBAM, htsconstants.FormatCRAM},
	VariantsEndpoint: {htsconstants.FormatVCF, htsconstants.FormatBCF},
}

// DefaultFormat is the format used when none is requested.
func (e Endpoint) DefaultFormat() string {
	return endpointFormats[e][0]
}

// HtsgetRequest holds the parsed parameters of a ticket request.
type HtsgetRequest struct {
	ID     string
	Format string
	Class  string
	// pass-through filters; they do not change slicing
	Fields []string
	Tags   []string
	NoTags []string
	Query  Query
}

// HeaderOnlyRequested reports class=header.
func (r *HtsgetRequest) HeaderOnlyRequested() bool {
	return r.Query.HeaderOnly
}

// AllRegionsRequested reports a whole-file request.
func (r *HtsgetRequest) AllRegionsRequested() bool {
	return r.Query.WholeFile()
}

// GetFormat returns the requested format.
func (r *HtsgetRequest) GetFormat() string {
	return r.Format
}

// Parse validates the query parameters of a ticket request.
func Parse(id string, endpoint Endpoint, params url.Values) (*HtsgetRequest, error) {
	req := &HtsgetRequest{
		ID:     id,
		Format: endpoint.DefaultFormat(),
		Fields: list(params, htsconstants.ParamFields),
		Tags:   list(params, htsconstants.ParamTags),
		NoTags: list(params, htsconstants.ParamNoTags),
	}
	if params.Has(htsconstants.ParamFormat) {
		req.Format = strings.ToUpper(params.Get(htsconstants.ParamFormat))
		if !allowed(endpoint, req.Format) {
			return nil, htserror.E(htserror.UnsupportedFormat, "format "+req.Format+" is not served by this endpoint", nil)
		}
	}
	req.Query.Format = req.Format

	if params.Has(htsconstants.ParamClass) {
		req.Class = params.Get(htsconstants.ParamClass)
		if req.Class != htsconstants.ClassHeader {
			return nil, htserror.E(htserror.InvalidInput, "class must be "+htsconstants.ClassHeader, nil)
		}
		for _, p := range []string{
			htsconstants.ParamReferenceName, htsconstants.ParamStart, htsconstants.ParamEnd,
			htsconstants.ParamFields, htsconstants.ParamTags, htsconstants.ParamNoTags,
		} {
			if params.Has(p) {
				return nil, htserror.E(htserror.InvalidInput, "class=header cannot be combined with "+p, nil)
			}
		}
		req.Query.HeaderOnly = true
		return req, nil
	}

	region, err := parseRegion(params)
	if err != nil {
		return nil, err
	}
	req.Query.Region = region
	return req, nil
}

func parseRegion(params url.Values) (*Region, error) {
	hasRef := params.Has(htsconstants.ParamReferenceName)
	hasStart := params.Has(htsconstants.ParamStart)
	hasEnd := params.Has(htsconstants.ParamEnd)
	if !hasRef {
		if hasStart || hasEnd {
			return nil, htserror.E(htserror.InvalidInput, "start and end require referenceName", nil)
		}
		return nil, nil
	}
	r := &Region{ReferenceName: params.Get(htsconstants.ParamReferenceName), End: MaxEnd}
	if r.ReferenceName == "" {
		return nil, htserror.E(htserror.InvalidInput, "referenceName is empty", nil)
	}
	if r.Unplaced() && (hasStart || hasEnd) {
		return nil, htserror.E(htserror.InvalidInput, "start and end cannot be used with referenceName=*", nil)
	}
	var err error
	if hasStart {
		if r.Start, err = coordinate(params, htsconstants.ParamStart); err != nil {
			return nil, err
		}
	}
	if hasEnd {
		if r.End, err = coordinate(params, htsconstants.ParamEnd); err != nil {
			return nil, err
		}
	}
	if r.End < r.Start {
		return nil, htserror.E(htserror.InvalidRange, "end is before start", nil)
	}
	return r, nil
}

func coordinate(params url.Values, name string) (int64, error) {
	v, err := strconv.ParseInt(params.Get(name), 10, 64)
	if err != nil || v < 0 {
		return 0, htserror.E(htserror.InvalidInput, name+" must be a non-negative integer", nil)
	}
	return v, nil
}

func list(params url.Values, name string) []string {
	if !params.Has(name) {
		return nil
	}
	return strings.Split(params.Get(name), ",")
}

func allowed(endpoint Endpoint, format string) bool {
	for _, f := range endpointFormats[endpoint] {
		if f == format {
			return true
		}
	}
	return false
}
