package apierr

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteHTTP_StructuredError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, NotFound("contact %s not found", "a@b.com"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWriteHTTP_WrapsPlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestToJSONRPC_MapsBadRequestToInvalidParams(t *testing.T) {
	rpcErr := ToJSONRPC(BadRequest("missing field"))
	if rpcErr.Code != RPCInvalidParams {
		t.Errorf("code = %d, want %d", rpcErr.Code, RPCInvalidParams)
	}
}

func TestToJSONRPC_PlainErrorIsInternal(t *testing.T) {
	rpcErr := ToJSONRPC(errors.New("boom"))
	if rpcErr.Code != RPCInternalError {
		t.Errorf("code = %d, want %d", rpcErr.Code, RPCInternalError)
	}
}
