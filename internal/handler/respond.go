package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ebeckert/letterwell/internal/apperr"
)

// responder centralizes JSON and error writing. Outside dev mode, internal
// error detail is suppressed from responses.
type responder struct {
	dev bool
}

func (rp responder) json(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("handler: encode response: %v", err)
		}
	}
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (rp responder) error(w http.ResponseWriter, err error) {
	status := apperr.StatusOf(err)
	body := errorBody{
		Message: apperr.MessageOf(err),
		Code:    string(apperr.CodeOf(err)),
	}
	if status >= http.StatusInternalServerError {
		log.Printf("handler: internal error: %v", err)
		if rp.dev {
			body.Details = err.Error()
		}
	}
	rp.json(w, status, body)
}
