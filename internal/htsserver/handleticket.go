package htsserver

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htsdao"
	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
	"github.com/umccr/htsget-archive/internal/htsrequest"
	"github.com/umccr/htsget-archive/internal/htsticket"
)

func (s *Server) getReadsTicket(writer http.ResponseWriter, request *http.Request) {
	s.serveTicket(writer, request, htsconstants.APIEndpointReadsTicket, htsrequest.ReadsEndpoint)
}

func (s *Server) getVariantsTicket(writer http.ResponseWriter, request *http.Request) {
	s.serveTicket(writer, request, htsconstants.APIEndpointVariantsTicket, htsrequest.VariantsEndpoint)
}

func (s *Server) serveTicket(writer http.ResponseWriter, request *http.Request, path string, endpoint htsrequest.Endpoint) {
	err := newRequestHandler(
		htsconstants.GetMethod,
		path,
		parseTicketParams(endpoint),
		s.ticketRequestHandler,
	).handleRequest(writer, request)
	if err != nil {
		log.Debug("%s: %v", path, err)
	}
}

func (s *Server) ticketRequestHandler(handler *requestHandler) {
	ctx := handler.Request.Context()
	htsReq := handler.HtsReq

	dao, err := s.provider.GetDao(ctx, htsReq.ID)
	if err != nil {
		htserror.Write(handler.Writer, err)
		return
	}
	sl, err := htsdao.Plan(ctx, dao, s.factory, htsReq.Query)
	if err != nil {
		htserror.Write(handler.Writer, err)
		return
	}
	urls := htsticket.FromSlice(sl, s.fileURL(handler.Request, htsReq.ID))
	htsticket.FinalizeTicket(htsReq.GetFormat(), urls, handler.Writer)
}

// fileURL is where ticket ranges of id are fetched from.
func (s *Server) fileURL(request *http.Request, id string) string {
	base := s.baseURL
	if base == "" {
		scheme := "http"
		if request.TLS != nil {
			scheme = "https"
		}
		if fwd := request.Header.Get("X-Forwarded-Proto"); fwd != "" {
			scheme = fwd
		}
		base = scheme + "://" + request.Host
	}
	return strings.TrimSuffix(base, "/") + strings.Replace(htsconstants.APIEndpointFile, "{id}", url.PathEscape(id), 1)
}
