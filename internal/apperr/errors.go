package apperr

import (
	stdErrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

type Code string

const (
	CodeAuthentication Code = "AUTHENTICATION_FAILED"
	CodeAuthorization  Code = "AUTHORIZATION_DENIED"
	CodeNotFound       Code = "NOT_FOUND"
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeStateConflict  Code = "STATE_CONFLICT"
	CodeInternal       Code = "INTERNAL_ERROR"
	CodeDependency     Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus    int
	GRPCCode      codes.Code
	PublicMessage string
	// DetailsAllowed marks codes whose own message may be shown to the caller.
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeAuthentication: {
		HTTPStatus:     http.StatusUnauthorized,
		GRPCCode:       codes.Unauthenticated,
		PublicMessage:  "authentication failed",
		DetailsAllowed: false,
	},
	CodeAuthorization: {
		HTTPStatus:     http.StatusForbidden,
		GRPCCode:       codes.PermissionDenied,
		PublicMessage:  "access denied",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		GRPCCode:       codes.NotFound,
		PublicMessage:  "resource not found",
		DetailsAllowed: true,
	},
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		GRPCCode:       codes.InvalidArgument,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		GRPCCode:       codes.FailedPrecondition,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		GRPCCode:       codes.Internal,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		GRPCCode:       codes.Unavailable,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: false,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if te := As(err); te != nil {
		return te.Code()
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// PublicMessage is the text safe to send back to a client for err.
func PublicMessage(err error) string {
	te := As(err)
	if te == nil {
		return MetadataFor(CodeInternal).PublicMessage
	}
	meta := MetadataFor(te.Code())
	if meta.DetailsAllowed && te.Message() != "" {
		return te.Message()
	}
	return meta.PublicMessage
}
