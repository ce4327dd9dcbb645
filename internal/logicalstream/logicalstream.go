// Package logicalstream exposes an archived file as a seekable stream of its
// decrypted bytes, read page by page through the page cache.
package logicalstream

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/umccr/htsget-archive/internal/htserror"
	"github.com/umccr/htsget-archive/internal/pagecache"
)

// PageReader is the part of the page cache the stream needs.
type PageReader interface {
	PageSize() int64
	Header(ctx context.Context, fileID string) (*pagecache.Header, error)
	GetPage(ctx context.Context, fileID string, index int64) (*pagecache.Page, error)
}

// defaultFanout bounds the page fetches one ReadAt issues at once.
const defaultFanout = 8

// Stream implements io.ReadSeeker and io.ReaderAt. Read and Seek share a
// cursor and must not be called concurrently; ReadAt may be.
type Stream struct {
	ctx    context.Context
	pages  PageReader
	fileID string
	size   int64
	pos    int64
	fanout int
}

// Open resolves fileID and returns a stream positioned at its start. ctx
// bounds every read made through the stream.
func Open(ctx context.Context, pages PageReader, fileID string) (*Stream, error) {
	h, err := pages.Header(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &Stream{ctx: ctx, pages: pages, fileID: fileID, size: h.Size, fanout: defaultFanout}, nil
}

// Size is the decrypted length of the file.
func (s *Stream) Size() int64 {
	return s.size
}

// EOF reports whether the cursor is at the end of the file.
func (s *Stream) EOF() bool {
	return s.pos >= s.size
}

func (s *Stream) Read(p []byte) (int, error) {
	if s.pos >= s.size {
		return 0, io.EOF
	}
	n, err := s.ReadAt(p, s.pos)
	s.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = s.size + offset
	default:
		return s.pos, htserror.E(htserror.InvalidInput, fmt.Sprintf("bad whence %d", whence), nil)
	}
	if abs < 0 || abs > s.size {
		return s.pos, htserror.E(htserror.InvalidRange, fmt.Sprintf("seek to %d outside file of %d bytes", abs, s.size), nil)
	}
	s.pos = abs
	return abs, nil
}

// ReadAt fills p from off. Reads spanning several pages fetch them
// concurrently.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, htserror.E(htserror.InvalidRange, fmt.Sprintf("negative offset %d", off), nil)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	want := int64(len(p))
	var err error
	if off+want > s.size {
		want = s.size - off
		err = io.EOF
	}
	if want == 0 {
		return 0, nil
	}

	pageSize := s.pages.PageSize()
	first := off / pageSize
	last := (off + want - 1) / pageSize
	if first == last {
		if cerr := s.copyPage(p[:want], off, first); cerr != nil {
			return 0, cerr
		}
		return int(want), err
	}

	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(s.fanout)
	for index := first; index <= last; index++ {
		index := index
		pageStart := index * pageSize
		lo, hi := pageStart, pageStart+pageSize
		if lo < off {
			lo = off
		}
		if hi > off+want {
			hi = off + want
		}
		dst := p[lo-off : hi-off]
		g.Go(func() error {
			return s.copyPageCtx(ctx, dst, lo, index)
		})
	}
	if gerr := g.Wait(); gerr != nil {
		return 0, gerr
	}
	return int(want), err
}

func (s *Stream) copyPage(dst []byte, off, index int64) error {
	return s.copyPageCtx(s.ctx, dst, off, index)
}

// copyPageCtx copies len(dst) bytes at file offset off, which lies in page
// index.
func (s *Stream) copyPageCtx(ctx context.Context, dst []byte, off, index int64) error {
	page, err := s.pages.GetPage(ctx, s.fileID, index)
	if err != nil {
		return err
	}
	within := off - index*s.pages.PageSize()
	if within+int64(len(dst)) > int64(len(page.Data)) {
		return htserror.E(htserror.ServerError,
			fmt.Sprintf("page %d of %s holds %d bytes, need %d", index, s.fileID, len(page.Data), within+int64(len(dst))), nil)
	}
	copy(dst, page.Data[within:])
	return nil
}
