// Package htsconstants holds the names, endpoints and defaults shared by the
// htsget archive server.
package htsconstants

import "time"

// formats
const (
	FormatBAM  = "BAM"
	FormatCRAM = "CRAM"
	FormatVCF  = "VCF"
	FormatBCF  = "BCF"
)

// ticket classes
const (
	ClassHeader = "header"
	ClassBody   = "body"
)

// request methods
const (
	GetMethod  = "GET"
	HeadMethod = "HEAD"
)

// endpoints
const (
	APIEndpointReadsTicket         = "/reads/{id}"
	APIEndpointVariantsTicket      = "/variants/{id}"
	APIEndpointReadsServiceInfo    = "/reads/service-info"
	APIEndpointVariantsServiceInfo = "/variants/service-info"
	APIEndpointFile                = "/files/{id}"
	APIEndpointMetrics             = "/metrics"
)

// query parameters
const (
	ParamFormat        = "format"
	ParamClass         = "class"
	ParamReferenceName = "referenceName"
	ParamStart         = "start"
	ParamEnd           = "end"
	ParamFields        = "fields"
	ParamTags          = "tags"
	ParamNoTags        = "notags"
)

// UnplacedReferenceName selects reads without a reference position.
const UnplacedReferenceName = "*"

// IVSize is the length of the plain IV prefix of every archived object.
const IVSize = 16

// defaults
const (
	DefaultPageSize          = 12 << 20
	DefaultPageCapacity      = 1200
	DefaultHeaderCapacity    = 100000
	DefaultMaxBlockBytes     = 1 << 30
	DefaultLoaderConcurrency = 256
	DefaultFetchAttempts     = 3
	DefaultRetryWait         = 500 * time.Millisecond
	DefaultHeaderTTL         = 5 * time.Hour
	DefaultPageTTL           = 24 * time.Hour
	DefaultGraceWindow       = 30 * time.Second
	DefaultListenAddr        = ":3000"
)

// SignedURLMargin is how long before its expiry a signed URL is replaced, so
// loads started just before then still finish with a valid URL.
const SignedURLMargin = time.Minute
