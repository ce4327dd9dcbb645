package htsdao

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umccr/htsget-archive/internal/bgzf"
	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
	"github.com/umccr/htsget-archive/internal/htsrequest"
	"github.com/umccr/htsget-archive/internal/pagecache"
	"github.com/umccr/htsget-archive/internal/slice"
)

const header = "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"

func vcfBytes(t *testing.T) []byte {
	blocks, err := bgzf.Compress([]byte(header + "chr1\t10\t.\tA\tG\t50\tPASS\t.\n"))
	require.NoError(t, err)
	return append(blocks, bgzf.EOFBlock...)
}

func inflate(t *testing.T, b []byte) string {
	gz, err := gzip.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	out, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(out)
}

type file struct {
	path  string
	index string
	data  []byte
}

// memPages serves in-memory files as pages.
type memPages map[string]file

func (m memPages) PageSize() int64 {
	return 32
}

func (m memPages) Header(_ context.Context, id string) (*pagecache.Header, error) {
	f, ok := m[id]
	if !ok {
		return nil, htserror.E(htserror.NotFound, "file "+id, nil)
	}
	return &pagecache.Header{FileID: id, Path: f.path, IndexFileID: f.index, Size: int64(len(f.data))}, nil
}

func (m memPages) GetPage(_ context.Context, id string, index int64) (*pagecache.Page, error) {
	data := m[id].data
	start := index * m.PageSize()
	if start >= int64(len(data)) {
		return &pagecache.Page{FileID: id, Index: index}, nil
	}
	end := start + m.PageSize()
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return &pagecache.Page{FileID: id, Index: index, Data: data[start:end]}, nil
}

func writeLocal(t *testing.T, name string, data []byte) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLocalWholeFile(t *testing.T) {
	data := vcfBytes(t)
	dao := NewLocalDao(writeLocal(t, "calls.vcf.gz", data), "")
	s, err := Plan(context.Background(), dao, slice.NewFactory(0), htsrequest.Query{Format: htsconstants.FormatVCF})
	require.NoError(t, err)
	assert.Equal(t, []slice.Part{slice.Range(htsconstants.ClassBody, 0, int64(len(data))-1)}, s.Parts)
}

func TestLocalHeaderOnly(t *testing.T) {
	dao := NewLocalDao(writeLocal(t, "calls.vcf.gz", vcfBytes(t)), "")
	s, err := Plan(context.Background(), dao, slice.NewFactory(0), htsrequest.Query{Format: htsconstants.FormatVCF, HeaderOnly: true})
	require.NoError(t, err)
	require.Len(t, s.Header, 1)
	assert.Equal(t, header, inflate(t, s.Header[0].Data))
}

func TestLocalMissingIndex(t *testing.T) {
	dao := NewLocalDao(writeLocal(t, "calls.vcf.gz", vcfBytes(t)), "")
	q := htsrequest.Query{Format: htsconstants.FormatVCF, Region: &htsrequest.Region{ReferenceName: "chr1", End: htsrequest.MaxEnd}}
	_, err := Plan(context.Background(), dao, slice.NewFactory(0), q)
	assert.True(t, htserror.Is(htserror.NotFound, err))
}

func TestLocalMissingFile(t *testing.T) {
	dao := NewLocalDao(filepath.Join(t.TempDir(), "gone.bam"), "")
	_, err := Plan(context.Background(), dao, slice.NewFactory(0), htsrequest.Query{Format: htsconstants.FormatBAM})
	assert.True(t, htserror.Is(htserror.NotFound, err))
}

func TestFormatMismatch(t *testing.T) {
	dao := NewLocalDao(writeLocal(t, "calls.vcf.gz", vcfBytes(t)), "")
	_, err := Plan(context.Background(), dao, slice.NewFactory(0), htsrequest.Query{Format: htsconstants.FormatBAM})
	assert.True(t, htserror.Is(htserror.UnsupportedFormat, err))
}

func TestArchiveDao(t *testing.T) {
	data := vcfBytes(t)
	pages := memPages{
		"EGAF1":  {path: "s3://archive/calls.vcf.gz", index: "EGAF1i", data: data},
		"EGAF1i": {data: []byte("index bytes")},
		"EGAF2":  {path: "/archive/other.vcf.gz", data: data},
	}
	p := NewArchiveProvider(pages)
	ctx := context.Background()

	dao, err := p.GetDao(ctx, "EGAF1")
	require.NoError(t, err)
	assert.Equal(t, "s3://archive/calls.vcf.gz", dao.Path())

	s, err := Plan(ctx, dao, slice.NewFactory(0), htsrequest.Query{Format: htsconstants.FormatVCF, HeaderOnly: true})
	require.NoError(t, err)
	assert.Equal(t, header, inflate(t, s.Header[0].Data))

	idx, err := dao.OpenIndex(ctx)
	require.NoError(t, err)
	got, err := io.ReadAll(idx)
	require.NoError(t, err)
	assert.Equal(t, "index bytes", string(got))

	dao, err = p.GetDao(ctx, "EGAF2")
	require.NoError(t, err)
	_, err = dao.OpenIndex(ctx)
	assert.True(t, htserror.Is(htserror.NotFound, err))

	_, err = p.GetDao(ctx, "EGAF9")
	assert.True(t, htserror.Is(htserror.NotFound, err))
}
