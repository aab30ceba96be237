package apiresp

import (
	"encoding/json"
	"net/http"

	"quizbank/internal/apperr"

	"github.com/go-chi/chi/v5/middleware"
)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Meta struct {
	RequestID string `json:"requestId,omitempty"`
}

type Envelope struct {
	OK    bool          `json:"ok"`
	Data  interface{}   `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
	Meta  Meta          `json:"meta"`
}

func WriteOK(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	write(w, r, status, Envelope{OK: true, Data: data})
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	write(w, r, status, Envelope{
		OK:    false,
		Error: &ErrorPayload{Code: codeFromStatus(status), Message: msg},
	})
}

// WriteServiceError reports a service failure using the status of its kind.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, apperr.Status(err), apperr.PublicMessage(err))
}

func write(w http.ResponseWriter, r *http.Request, status int, res Envelope) {
	res.Meta.RequestID = middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

func codeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		if status >= 200 && status < 300 {
			return ""
		}
		return "error"
	}
}
