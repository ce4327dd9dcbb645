package htsticket

import (
	"strconv"

	"github.com/umccr/htsget-archive/internal/htsconstants"
)

// URL is one entry of a ticket.
type URL struct {
	URL     string   `json:"url"`
	Headers *Headers `json:"headers,omitempty"`
	Class   string   `json:"class,omitempty"`
}

// Headers are sent by the client with the request for a URL.
type Headers struct {
	Range string `json:"Range,omitempty"`
}

func NewURL() *URL {
	return new(URL)
}

func (url *URL) SetURL(s string) *URL {
	url.URL = s
	return url
}

func (url *URL) SetHeaders(headers *Headers) *URL {
	url.Headers = headers
	return url
}

func (url *URL) SetClassHeader() *URL {
	url.Class = htsconstants.ClassHeader
	return url
}

func (url *URL) SetClassBody() *URL {
	url.Class = htsconstants.ClassBody
	return url
}

func NewHeaders() *Headers {
	return new(Headers)
}

// SetRangeHeader sets an inclusive byte range.
func (headers *Headers) SetRangeHeader(start, end int64) *Headers {
	headers.Range = "bytes=" + strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10)
	return headers
}
