package slice

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	hbgzf "github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/tabix"
	"github.com/klauspost/compress/gzip"

	"github.com/umccr/htsget-archive/internal/bgzf"
	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
	"github.com/umccr/htsget-archive/internal/htsrequest"
)

type vcfFormat struct{}

func (vcfFormat) name() string {
	return htsconstants.FormatVCF
}

// readHeader collects the leading '#' lines and packs them into new blocks.
func (vcfFormat) readHeader(data Source) (*header, error) {
	if err := rewind(data); err != nil {
		return nil, err
	}
	br, err := hbgzf.NewReader(data, 1)
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "opening VCF stream", err)
	}
	defer br.Close()

	rd := bufio.NewReader(br)
	var text bytes.Buffer
	var contigs []string
	for {
		next, err := rd.Peek(1)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, htserror.E(htserror.ServerError, "reading VCF header", err)
		}
		if next[0] != '#' {
			break
		}
		line, err := rd.ReadBytes('\n')
		text.Write(line)
		if id, ok := contigID(string(line)); ok {
			contigs = append(contigs, id)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, htserror.E(htserror.ServerError, "reading VCF header", err)
		}
	}
	if text.Len() == 0 {
		return nil, htserror.E(htserror.ServerError, "VCF file has no header", nil)
	}
	packed, err := bgzf.Compress(text.Bytes())
	if err != nil {
		return nil, err
	}
	return &header{data: packed, footer: []byte(bgzf.EOFBlock), contigs: contigs}, nil
}

func (vcfFormat) body(_ context.Context, data Source, index io.Reader, h *header, r *htsrequest.Region) ([]Part, error) {
	if r.Unplaced() {
		return nil, htserror.E(htserror.NotFound, "VCF files have no unplaced records", nil)
	}
	gz, err := gzip.NewReader(index)
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "opening tabix index", err)
	}
	defer gz.Close()
	idx, err := tabix.ReadFrom(gz)
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "reading tabix index", err)
	}

	if !contains(idx.Names(), r.ReferenceName) {
		if contains(h.contigs, r.ReferenceName) {
			// declared but holding no records
			return nil, nil
		}
		return nil, htserror.E(htserror.NotFound, "reference "+r.ReferenceName+" not found", nil)
	}
	beg, end, ok := window(r, 0)
	if !ok {
		return nil, nil
	}
	chunks, err := idx.Chunks(r.ReferenceName, int(beg), int(end))
	if err != nil {
		log.Debug("tabix lookup %s: %v", r, err)
		return nil, nil
	}
	return planChunks(data, chunks)
}

// contigID extracts ID from a ##contig=<ID=...> line.
func contigID(line string) (string, bool) {
	const prefix = "##contig=<"
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	for _, field := range strings.Split(strings.TrimRight(line[len(prefix):], ">\r\n"), ",") {
		if strings.HasPrefix(field, "ID=") {
			return strings.TrimPrefix(field, "ID="), true
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
