package logicalstream

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umccr/htsget-archive/internal/htserror"
	"github.com/umccr/htsget-archive/internal/pagecache"
)

// memPages serves pages of an in-memory file.
type memPages struct {
	mu       sync.Mutex
	data     []byte
	pageSize int64
	gets     int
}

func (m *memPages) PageSize() int64 {
	return m.pageSize
}

func (m *memPages) Header(_ context.Context, fileID string) (*pagecache.Header, error) {
	if fileID != "EGAF1" {
		return nil, htserror.E(htserror.NotFound, fileID, nil)
	}
	return &pagecache.Header{FileID: fileID, Size: int64(len(m.data))}, nil
}

func (m *memPages) GetPage(_ context.Context, fileID string, index int64) (*pagecache.Page, error) {
	m.mu.Lock()
	m.gets++
	m.mu.Unlock()
	start := index * m.pageSize
	if start >= int64(len(m.data)) {
		return &pagecache.Page{FileID: fileID, Index: index}, nil
	}
	end := start + m.pageSize
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	return &pagecache.Page{FileID: fileID, Index: index, Data: m.data[start:end]}, nil
}

func open(t *testing.T, size int) (*Stream, []byte, *memPages) {
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)
	pages := &memPages{data: data, pageSize: 64}
	s, err := Open(context.Background(), pages, "EGAF1")
	require.NoError(t, err)
	return s, data, pages
}

func TestReadAll(t *testing.T) {
	s, data, _ := open(t, 1000)
	assert.Equal(t, int64(1000), s.Size())

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.True(t, s.EOF())

	n, err := s.Read(make([]byte, 10))
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestReadAtSpansPages(t *testing.T) {
	s, data, _ := open(t, 1000)

	buf := make([]byte, 300)
	n, err := s.ReadAt(buf, 50)
	require.NoError(t, err)
	assert.Equal(t, 300, n)
	assert.Equal(t, data[50:350], buf)

	// short read at the end
	n, err = s.ReadAt(buf, 900)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[900:], buf[:100])

	n, err = s.ReadAt(buf, 1000)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, n)
}

func TestSeek(t *testing.T) {
	s, data, _ := open(t, 1000)

	pos, err := s.Seek(-10, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(990), pos)
	rest, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, data[990:], rest)

	_, err = s.Seek(130, io.SeekStart)
	require.NoError(t, err)
	pos, err = s.Seek(5, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(135), pos)
	buf := make([]byte, 4)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data[135:139], buf))

	_, err = s.Seek(1001, io.SeekStart)
	assert.Equal(t, htserror.InvalidRange, htserror.KindOf(err))
	_, err = s.Seek(-1, io.SeekStart)
	assert.Equal(t, htserror.InvalidRange, htserror.KindOf(err))

	// seeking to the very end is allowed and reads report end of data
	_, err = s.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.True(t, s.EOF())
	_, err = s.Read(buf)
	assert.Equal(t, io.EOF, err)
}

func TestOpenUnknownFile(t *testing.T) {
	_, err := Open(context.Background(), &memPages{pageSize: 64}, "EGAF404")
	assert.Equal(t, htserror.NotFound, htserror.KindOf(err))
}

func TestTruncatedPage(t *testing.T) {
	pages := &memPages{data: make([]byte, 100), pageSize: 64}
	s, err := Open(context.Background(), pages, "EGAF1")
	require.NoError(t, err)
	s.size = 200 // header claims more than the pages hold

	_, err = s.ReadAt(make([]byte, 10), 150)
	assert.Equal(t, htserror.ServerError, htserror.KindOf(err))
}
