package htsserver

import (
	"encoding/json"
	"net/http"

	"github.com/umccr/htsget-archive/internal/htsconstants"
	log "github.com/umccr/htsget-archive/internal/htslog"
)

// Version is reported by service-info.
var Version = "1.0.0"

type serviceType struct {
	Group    string `json:"group"`
	Artifact string `json:"artifact"`
	Version  string `json:"version"`
}

type organization struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type htsgetInfo struct {
	Datatype                 string   `json:"datatype"`
	Formats                  []string `json:"formats"`
	FieldsParameterEffective bool     `json:"fieldsParameterEffective"`
	TagsParametersEffective  bool     `json:"tagsParametersEffective"`
}

// ServiceInfo is the GA4GH service-info document.
type ServiceInfo struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         serviceType  `json:"type"`
	Description  string       `json:"description"`
	Organization organization `json:"organization"`
	Version      string       `json:"version"`
	HTSget       htsgetInfo   `json:"htsget"`
}

func newServiceInfo(datatype string, formats []string) *ServiceInfo {
	return &ServiceInfo{
		ID:           "org.umccr.htsget-archive." + datatype,
		Name:         "htsget archive " + datatype,
		Type:         serviceType{Group: "org.ga4gh", Artifact: "htsget", Version: "1.3.0"},
		Description:  "htsget slices of encrypted archived " + datatype,
		Organization: organization{Name: "UMCCR", URL: "https://umccr.org"},
		Version:      Version,
		HTSget:       htsgetInfo{Datatype: datatype, Formats: formats},
	}
}

func getReadsServiceInfo(writer http.ResponseWriter, request *http.Request) {
	serveServiceInfo(writer, request, htsconstants.APIEndpointReadsServiceInfo,
		newServiceInfo("reads", []string{htsconstants.FormatBAM, htsconstants.FormatCRAM}))
}

func getVariantsServiceInfo(writer http.ResponseWriter, request *http.Request) {
	serveServiceInfo(writer, request, htsconstants.APIEndpointVariantsServiceInfo,
		newServiceInfo("variants", []string{htsconstants.FormatVCF}))
}

func serveServiceInfo(writer http.ResponseWriter, request *http.Request, endpoint string, info *ServiceInfo) {
	err := newRequestHandler(
		htsconstants.GetMethod,
		endpoint,
		noAfterSetup,
		func(handler *requestHandler) {
			handler.Writer.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(handler.Writer).Encode(info); err != nil {
				log.Error("writing service info: %v", err)
			}
		},
	).handleRequest(writer, request)
	if err != nil {
		log.Error("%v", err)
	}
}
