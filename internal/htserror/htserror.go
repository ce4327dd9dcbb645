// Package htserror defines the error taxonomy of the htsget protocol and
// writes htsget-style JSON error responses.
package htserror

import (
	"encoding/json"
	"errors"
	"net/http"

	gerrors "github.com/grailbio/base/errors"

	log "github.com/umccr/htsget-archive/internal/htslog"
)

// Kind classifies an error for the htsget protocol.
type Kind int

const (
	// ServerError covers upstream failures and corrupt data. It is the zero
	// value so unclassified errors surface as 500s.
	ServerError Kind = iota
	InvalidInput
	InvalidRange
	NotFound
	UnsupportedFormat
	PermissionDenied
)

var codes = map[Kind]string{
	ServerError:       "InternalServerError",
	InvalidInput:      "InvalidInput",
	InvalidRange:      "InvalidRange",
	NotFound:          "NotFound",
	UnsupportedFormat: "UnsupportedFormat",
	PermissionDenied:  "PermissionDenied",
}

var statuses = map[Kind]int{
	ServerError:       http.StatusInternalServerError,
	InvalidInput:      http.StatusBadRequest,
	InvalidRange:      http.StatusBadRequest,
	NotFound:          http.StatusNotFound,
	UnsupportedFormat: http.StatusBadRequest,
	PermissionDenied:  http.StatusForbidden,
}

// Code is the machine readable htsget error code.
func (k Kind) Code() string {
	return codes[k]
}

// Status is the HTTP status code for the kind.
func (k Kind) Status() int {
	return statuses[k]
}

func (k Kind) String() string {
	return codes[k]
}

// Error is an error carrying a protocol kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// E builds an *Error. err may be nil.
func E(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.Code()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Errors produced by grailbio/base (retry exhaustion,
// missing objects) are mapped onto the htsget taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case gerrors.Is(gerrors.NotExist, err):
		return NotFound
	case gerrors.Is(gerrors.Invalid, err):
		return InvalidInput
	case gerrors.Is(gerrors.NotSupported, err):
		return UnsupportedFormat
	case gerrors.Is(gerrors.NotAllowed, err):
		return PermissionDenied
	}
	return ServerError
}

// Is reports whether err classifies as kind.
func Is(kind Kind, err error) bool {
	return err != nil && KindOf(err) == kind
}

type errorBody struct {
	Htsget errorContainer `json:"htsget"`
}

type errorContainer struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(writer http.ResponseWriter, kind Kind, msg *string) {
	message := ""
	if msg != nil {
		message = *msg
	}
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(kind.Status())
	err := json.NewEncoder(writer).Encode(errorBody{
		Htsget: errorContainer{Error: kind.Code(), Message: message},
	})
	if err != nil {
		log.Error("writing error response: %v", err)
	}
}

// Write writes err as an htsget error response.
func Write(writer http.ResponseWriter, err error) {
	kind := KindOf(err)
	msg := err.Error()
	if kind == ServerError {
		log.Error("%v", err)
	}
	writeError(writer, kind, &msg)
}

func InvalidInputError(writer http.ResponseWriter, msg *string) {
	writeError(writer, InvalidInput, msg)
}

func InvalidRangeError(writer http.ResponseWriter, msg *string) {
	writeError(writer, InvalidRange, msg)
}

func NotFoundError(writer http.ResponseWriter, msg *string) {
	writeError(writer, NotFound, msg)
}

func UnsupportedFormatError(writer http.ResponseWriter, msg *string) {
	writeError(writer, UnsupportedFormat, msg)
}

func PermissionDeniedError(writer http.ResponseWriter, msg *string) {
	writeError(writer, PermissionDenied, msg)
}

func InternalServerError(writer http.ResponseWriter, msg *string) {
	writeError(writer, ServerError, msg)
}
