package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/inkwell-labs/inkwell/libs/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status through apperr and writes an ErrorBody.
// Internal causes are never exposed.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, apperr.HTTPStatus(err), ErrorBody{
		Error:   apperr.KindOf(err).String(),
		Message: apperr.PublicMessage(err),
	})
}

// DecodeJSON decodes a request body into v, rejecting unknown fields and
// trailing data. Failures are apperr validation errors.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("httpx.decode", fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		}
		return apperr.Validation("httpx.decode", "invalid JSON body: "+err.Error())
	}
	if dec.More() {
		return apperr.Validation("httpx.decode", "invalid JSON body: trailing data")
	}
	return nil
}
