package htsserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/umccr/htsget-archive/internal/htserror"
	"github.com/umccr/htsget-archive/internal/htsrequest"
)

// requestHandler carries one request through parameter parsing and into its
// handler.
type requestHandler struct {
	Method     string
	Endpoint   string
	Writer     http.ResponseWriter
	Request    *http.Request
	HtsReq     *htsrequest.HtsgetRequest
	afterSetup func(*requestHandler) error
	handler    func(*requestHandler)
}

func newRequestHandler(method string, endpoint string, afterSetup func(*requestHandler) error, handler func(*requestHandler)) *requestHandler {
	return &requestHandler{
		Method:     method,
		Endpoint:   endpoint,
		afterSetup: afterSetup,
		handler:    handler,
	}
}

// handleRequest runs afterSetup then the handler. Setup errors are written to
// the client and returned.
func (reqHandler *requestHandler) handleRequest(writer http.ResponseWriter, request *http.Request) error {
	reqHandler.Writer = writer
	reqHandler.Request = request
	if err := reqHandler.afterSetup(reqHandler); err != nil {
		htserror.Write(writer, err)
		return err
	}
	reqHandler.handler(reqHandler)
	return nil
}

func noAfterSetup(_ *requestHandler) error {
	return nil
}

// parseTicketParams is the afterSetup step of the ticket endpoints.
func parseTicketParams(endpoint htsrequest.Endpoint) func(*requestHandler) error {
	return func(reqHandler *requestHandler) error {
		htsReq, err := htsrequest.Parse(chi.URLParam(reqHandler.Request, "id"), endpoint, reqHandler.Request.URL.Query())
		if err != nil {
			return err
		}
		reqHandler.HtsReq = htsReq
		return nil
	}
}
