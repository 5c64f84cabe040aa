// Package apierr provides structured error types shared by the REST and
// JSON-RPC (skill sandbox) surfaces, grounded on the teacher's
// internal/api error-response helper generalized into a typed value.
package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error is an API-facing error: an HTTP status, a machine-readable code,
// and a human-readable message. It implements the error interface so it
// can flow through normal Go error returns up to the HTTP/JSON-RPC layer.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Constructors for the status codes the API surface actually returns.

func BadRequest(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "bad_request", Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Status: http.StatusNotFound, Code: "not_found", Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Message: fmt.Sprintf(format, args...)}
}

func Unavailable(format string, args ...any) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Code: "unavailable", Message: fmt.Sprintf(format, args...)}
}

func Internal(format string, args ...any) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "internal", Message: fmt.Sprintf(format, args...)}
}

// body is the JSON shape written to the HTTP response.
type body struct {
	Error *Error `json:"error"`
}

// WriteHTTP writes err as a JSON error body with its Status code. A plain
// (non-*Error) error is wrapped as a 500.
func WriteHTTP(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*Error)
	if !ok {
		apiErr = Internal("%s", err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(body{Error: apiErr})
}

// JSONRPCError mirrors the JSON-RPC 2.0 error object shape.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC 2.0 reserved error codes, plus the sandbox's own application
// codes (-32000 rate limit, -32001 permission denied — see
// internal/skills.Bridge).
const (
	RPCParseError     = -32700
	RPCInvalidRequest = -32600
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCInternalError  = -32603
)

// ToJSONRPC converts err into a JSON-RPC error object. *Error values map
// their HTTP status to the nearest JSON-RPC code; anything else becomes an
// internal error.
func ToJSONRPC(err error) JSONRPCError {
	apiErr, ok := err.(*Error)
	if !ok {
		return JSONRPCError{Code: RPCInternalError, Message: err.Error()}
	}
	code := RPCInternalError
	switch apiErr.Status {
	case http.StatusBadRequest:
		code = RPCInvalidParams
	case http.StatusNotFound:
		code = RPCMethodNotFound
	}
	return JSONRPCError{Code: code, Message: apiErr.Message}
}
