package htsserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/htserror"
	log "github.com/umccr/htsget-archive/internal/htslog"
)

// getFile streams the plain bytes of a file, honouring Range requests.
func (s *Server) getFile(writer http.ResponseWriter, request *http.Request) {
	err := newRequestHandler(
		htsconstants.GetMethod,
		htsconstants.APIEndpointFile,
		noAfterSetup,
		s.fileRequestHandler,
	).handleRequest(writer, request)
	if err != nil {
		log.Error("%v", err)
	}
}

func (s *Server) fileRequestHandler(handler *requestHandler) {
	ctx := handler.Request.Context()
	id := chi.URLParam(handler.Request, "id")

	dao, err := s.provider.GetDao(ctx, id)
	if err != nil {
		htserror.Write(handler.Writer, err)
		return
	}
	data, err := dao.OpenData(ctx)
	if err != nil {
		htserror.Write(handler.Writer, err)
		return
	}
	defer data.Close()

	handler.Writer.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(handler.Writer, handler.Request, "", time.Time{}, data)
}
