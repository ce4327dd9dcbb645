package slice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umccr/htsget-archive/internal/bgzf"
	"github.com/umccr/htsget-archive/internal/htserror"
	"github.com/umccr/htsget-archive/internal/htsrequest"
)

// Reads are laid out so none crosses a 16kb linear index tile; the index
// builder rejects a read that starts in one tile and opens the next.
const (
	readLen      = 48
	readsPerRef  = 3000
	readSpacing  = 64
	unplacedRead = 20
)

// bamFixture writes a sorted BAM with two references and trailing unplaced
// reads, and indexes it. Each reference spans several blocks.
func bamFixture(t *testing.T) (data, index []byte) {
	chr1, err := sam.NewReference("chr1", "", "", 1000000, nil, nil)
	require.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 1000000, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := bam.NewWriter(&buf, h, 1)
	require.NoError(t, err)
	seq := bytes.Repeat([]byte("ACGT"), readLen/4)
	qual := bytes.Repeat([]byte{30}, readLen)
	cigar := []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, readLen)}
	for _, ref := range h.Refs() {
		for i := 0; i < readsPerRef; i++ {
			rec, err := sam.NewRecord(fmt.Sprintf("%s-%d", ref.Name(), i), ref, nil, i*readSpacing, -1, 0, 60, cigar, seq, qual, nil)
			require.NoError(t, err)
			require.NoError(t, w.Write(rec))
		}
	}
	for i := 0; i < unplacedRead; i++ {
		rec, err := sam.NewRecord(fmt.Sprintf("unplaced-%d", i), nil, nil, -1, -1, 0, 0, nil, seq, qual, nil)
		require.NoError(t, err)
		rec.Flags = sam.Unmapped
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())

	br, err := bam.NewReader(bytes.NewReader(buf.Bytes()), 1)
	require.NoError(t, err)
	defer br.Close()
	var idx bam.Index
	for {
		rec, err := br.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NoError(t, idx.Add(rec, br.LastChunk()))
	}
	var ibuf bytes.Buffer
	require.NoError(t, bam.WriteIndex(&ibuf, &idx))
	return buf.Bytes(), ibuf.Bytes()
}

// blockAddrs lists the offset of every block in data.
func blockAddrs(t *testing.T, data []byte) []int64 {
	var addrs []int64
	r := bytes.NewReader(data)
	for addr := int64(0); addr < int64(len(data)); {
		addrs = append(addrs, addr)
		n, err := bgzf.BlockSize(r, addr)
		require.NoError(t, err)
		addr += int64(n)
	}
	return addrs
}

func planBAM(t *testing.T, data, index []byte, q htsrequest.Query) (*Slice, error) {
	p, err := NewFactory(0).ForFormat("BAM")
	require.NoError(t, err)
	return p.Plan(context.Background(), q, bytes.NewReader(data), bytes.NewReader(index))
}

// readBAM decodes a reassembled slice.
func readBAM(t *testing.T, s *Slice, data []byte) (*sam.Header, []*sam.Record) {
	br, err := bam.NewReader(bytes.NewReader(resolve(s.All(), data)), 1)
	require.NoError(t, err)
	defer br.Close()
	var recs []*sam.Record
	for {
		rec, err := br.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	return br.Header(), recs
}

func TestBAMRegion(t *testing.T) {
	data, index := bamFixture(t)
	region := &htsrequest.Region{ReferenceName: "chr1", Start: 20000, End: 120000}
	s, err := planBAM(t, data, index, htsrequest.Query{Region: region})
	require.NoError(t, err)

	require.Len(t, s.Header, 1)
	assert.Equal(t, []Part{bodyInline([]byte(bgzf.EOFBlock))}, s.Footer)

	// two trimmed edge blocks around the untouched interior blocks
	require.Len(t, s.Parts, 3)
	assert.Equal(t, InlinePart, s.Parts[0].Kind)
	assert.Equal(t, RangePart, s.Parts[1].Kind)
	assert.Equal(t, InlinePart, s.Parts[2].Kind)
	addrs := blockAddrs(t, data)
	interior := s.Parts[1]
	assert.Contains(t, addrs, interior.Start)
	assert.Contains(t, addrs, interior.End+1)
	assert.Greater(t, interior.Start, addrs[1], "the first record block is trimmed, not passed through")

	h, recs := readBAM(t, s, data)
	assert.Len(t, h.Refs(), 2)
	got := make(map[string]bool)
	for _, rec := range recs {
		assert.Equal(t, "chr1", rec.Ref.Name())
		got[rec.Name] = true
	}
	for i := 0; i < readsPerRef; i++ {
		pos := int64(i * readSpacing)
		if pos < region.End && pos+readLen > region.Start {
			assert.True(t, got[fmt.Sprintf("chr1-%d", i)], "missing read at %d", pos)
		}
	}
	assert.Less(t, len(recs), readsPerRef)
}

func TestBAMPointQuery(t *testing.T) {
	data, index := bamFixture(t)
	s, err := planBAM(t, data, index, htsrequest.Query{Region: &htsrequest.Region{ReferenceName: "chr2", Start: 1000, End: 1000}})
	require.NoError(t, err)
	_, recs := readBAM(t, s, data)
	names := make(map[string]bool)
	for _, rec := range recs {
		names[rec.Name] = true
	}
	assert.True(t, names[fmt.Sprintf("chr2-%d", 1000/readSpacing)])
}

func TestBAMHeaderOnly(t *testing.T) {
	data, index := bamFixture(t)
	s, err := planBAM(t, data, index, htsrequest.Query{HeaderOnly: true})
	require.NoError(t, err)
	assert.Empty(t, s.Parts)
	h, recs := readBAM(t, s, data)
	assert.Len(t, h.Refs(), 2)
	assert.Empty(t, recs)
}

func TestBAMUnplaced(t *testing.T) {
	data, index := bamFixture(t)
	s, err := planBAM(t, data, index, htsrequest.Query{Region: &htsrequest.Region{ReferenceName: "*", End: htsrequest.MaxEnd}})
	require.NoError(t, err)
	_, recs := readBAM(t, s, data)
	require.Len(t, recs, unplacedRead)
	for _, rec := range recs {
		assert.Nil(t, rec.Ref)
	}
}

func TestBAMUnknownReference(t *testing.T) {
	data, index := bamFixture(t)
	_, err := planBAM(t, data, index, htsrequest.Query{Region: &htsrequest.Region{ReferenceName: "chrX", End: htsrequest.MaxEnd}})
	assert.True(t, htserror.Is(htserror.NotFound, err))
}

func TestBAMRegionPastReferenceData(t *testing.T) {
	data, index := bamFixture(t)
	s, err := planBAM(t, data, index, htsrequest.Query{Region: &htsrequest.Region{ReferenceName: "chr1", Start: 900000, End: htsrequest.MaxEnd}})
	require.NoError(t, err)
	_, recs := readBAM(t, s, data)
	assert.Empty(t, recs)
}

func TestBAMPlanIsDeterministic(t *testing.T) {
	data, index := bamFixture(t)
	q := htsrequest.Query{Region: &htsrequest.Region{ReferenceName: "chr2", Start: 5000, End: 60000}}
	first, err := planBAM(t, data, index, q)
	require.NoError(t, err)
	second, err := planBAM(t, data, index, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
