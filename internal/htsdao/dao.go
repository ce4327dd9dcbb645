// Package htsdao gives the server and the command line one way to reach a
// data file and its index, whether archived and encrypted or on local disk.
package htsdao

import (
	"context"
	"io"

	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
	"github.com/umccr/htsget-archive/internal/htsrequest"
	"github.com/umccr/htsget-archive/internal/slice"
)

// DataFile is an open data file.
type DataFile interface {
	slice.Source
	io.Closer
}

type DataAccessObject interface {
	// Path is where the data file is stored; its name gives the format.
	Path() string

	// OpenData opens the plain bytes of the data file.
	OpenData(ctx context.Context) (DataFile, error)

	// OpenIndex opens the plain bytes of the index.
	OpenIndex(ctx context.Context) (io.ReadCloser, error)

	String() string
}

// Provider looks up the file behind an htsget id.
type Provider interface {
	GetDao(ctx context.Context, id string) (DataAccessObject, error)
}

// Plan answers q against the file behind dao. The index is only opened when
// the query selects a region.
func Plan(ctx context.Context, dao DataAccessObject, factory *slice.Factory, q htsrequest.Query) (*slice.Slice, error) {
	if detected, err := slice.DetectFormat(dao.Path()); err == nil && detected != q.Format {
		return nil, htserror.E(htserror.UnsupportedFormat, "file is "+detected+", not "+q.Format, nil)
	}
	planner, err := factory.ForFormat(q.Format)
	if err != nil {
		return nil, err
	}

	data, err := dao.OpenData(ctx)
	if err != nil {
		return nil, err
	}
	defer data.Close()

	var index io.Reader
	if q.Region != nil {
		idx, err := dao.OpenIndex(ctx)
		if err != nil {
			return nil, err
		}
		defer idx.Close()
		index = idx
	}

	s, err := planner.Plan(ctx, q, data, index)
	if err != nil {
		return nil, err
	}
	log.Debug("planned %s for %v: %d parts", dao, q.Region, len(s.All()))
	return s, nil
}
