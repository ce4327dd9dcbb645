package htsdao

import (
	"context"
	"io"

	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
	"github.com/umccr/htsget-archive/internal/logicalstream"
	"github.com/umccr/htsget-archive/internal/pagecache"
)

// ArchiveDao reads an encrypted archived file through the page cache.
type ArchiveDao struct {
	id     string
	header *pagecache.Header
	pages  logicalstream.PageReader
}

type ArchiveProvider struct {
	pages logicalstream.PageReader
}

func NewArchiveProvider(pages logicalstream.PageReader) *ArchiveProvider {
	return &ArchiveProvider{pages: pages}
}

// GetDao resolves id, failing with NotFound for unknown files.
func (p *ArchiveProvider) GetDao(ctx context.Context, id string) (DataAccessObject, error) {
	h, err := p.pages.Header(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Debug("Creating ArchiveDao for %s, %s", id, h.Path)
	return &ArchiveDao{id: id, header: h, pages: p.pages}, nil
}

func (dao *ArchiveDao) Path() string {
	return dao.header.Path
}

func (dao *ArchiveDao) OpenData(ctx context.Context) (DataFile, error) {
	s, err := logicalstream.Open(ctx, dao.pages, dao.id)
	if err != nil {
		return nil, err
	}
	return streamFile{s}, nil
}

func (dao *ArchiveDao) OpenIndex(ctx context.Context) (io.ReadCloser, error) {
	if dao.header.IndexFileID == "" {
		return nil, htserror.E(htserror.NotFound, "file "+dao.id+" has no index", nil)
	}
	s, err := logicalstream.Open(ctx, dao.pages, dao.header.IndexFileID)
	if err != nil {
		return nil, err
	}
	return streamFile{s}, nil
}

func (dao *ArchiveDao) String() string {
	return "ArchiveDao id=" + dao.id + ", path=" + dao.header.Path
}

// streamFile adds a no-op Close to a logical stream; it holds no resources.
type streamFile struct {
	*logicalstream.Stream
}

func (streamFile) Close() error {
	return nil
}
