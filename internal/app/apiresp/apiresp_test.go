package apiresp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quizbank/internal/apperr"
)

func TestWriteServiceErrorMapsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{name: "not found", err: apperr.NotFound("Question not found"), wantCode: http.StatusNotFound, wantMsg: "Question not found"},
		{name: "validation", err: apperr.Validation("Question title must have text or image"), wantCode: http.StatusBadRequest, wantMsg: "Question title must have text or image"},
		{name: "upstream", err: apperr.Upstream("upload", errors.New("quota")), wantCode: http.StatusInternalServerError, wantMsg: "internal error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			WriteServiceError(w, r, tc.err)

			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, w.Code)
			}
			var env Envelope
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.OK || env.Error == nil || env.Error.Message != tc.wantMsg {
				t.Fatalf("unexpected envelope: %+v", env)
			}
		})
	}
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteOK(w, r, http.StatusCreated, map[string]string{"status": "ok"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}
