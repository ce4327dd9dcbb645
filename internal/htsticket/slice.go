package htsticket

import (
	"encoding/base64"

	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/slice"
)

// DataURLPrefix starts the URL of every inline part.
const DataURLPrefix = "data:;base64,"

// FromSlice renders the parts of s as ticket URLs. Range parts point at
// fileURL, which serves the file's plain bytes.
func FromSlice(s *slice.Slice, fileURL string) []*URL {
	parts := s.All()
	urls := make([]*URL, 0, len(parts))
	for _, p := range parts {
		var u *URL
		if p.Kind == slice.InlinePart {
			u = NewURL().SetURL(DataURLPrefix + base64.StdEncoding.EncodeToString(p.Data))
		} else {
			u = NewURL().SetURL(fileURL).SetHeaders(NewHeaders().SetRangeHeader(p.Start, p.End))
		}
		if p.Class == htsconstants.ClassHeader {
			u.SetClassHeader()
		} else {
			u.SetClassBody()
		}
		urls = append(urls, u)
	}
	return urls
}
