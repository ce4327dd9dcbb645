// Package htsticket builds htsget ticket responses.
package htsticket

import (
	"encoding/json"
	"net/http"

	log "github.com/umccr/htsget-archive/internal/htslog"
)

// Ticket is the top level of an htsget ticket response.
type Ticket struct {
	HTSget *HTSgetTicket `json:"htsget"`
}

// HTSgetTicket lists the URLs a client fetches and concatenates.
type HTSgetTicket struct {
	Format string `json:"format"`
	URLS   []*URL `json:"urls"`
}

func NewTicket() *Ticket {
	return new(Ticket)
}

func (ticket *Ticket) SetHTSgetTicket(htsgetTicket *HTSgetTicket) *Ticket {
	ticket.HTSget = htsgetTicket
	return ticket
}

func NewHTSgetTicket() *HTSgetTicket {
	return &HTSgetTicket{URLS: []*URL{}}
}

func (htsgetTicket *HTSgetTicket) SetFormat(format string) *HTSgetTicket {
	htsgetTicket.Format = format
	return htsgetTicket
}

func (htsgetTicket *HTSgetTicket) SetURLS(urls []*URL) *HTSgetTicket {
	htsgetTicket.URLS = urls
	return htsgetTicket
}

// FinalizeTicket writes the ticket for urls as the JSON response.
func FinalizeTicket(format string, urls []*URL, writer http.ResponseWriter) {
	if urls == nil {
		urls = []*URL{}
	}
	ticket := NewTicket().SetHTSgetTicket(NewHTSgetTicket().SetFormat(format).SetURLS(urls))
	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(ticket); err != nil {
		log.Error("writing ticket: %v", err)
	}
}
