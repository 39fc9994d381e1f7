// Package httpapi exposes the marketplace over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"scrapPickup/internal/errs"
	"scrapPickup/internal/logging"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every response.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Code    errs.Kind         `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Warning string            `json:"warning,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// errorWriter renders err with the status its kind maps to. Unclassified errors
// are logged and reported without detail.
func errorWriter(log logrus.FieldLogger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		e, classified := errs.As(err)
		if !classified {
			logging.WithContext(r.Context(), log).WithError(err).Error("request failed")
			writeJSON(w, http.StatusInternalServerError, envelope{Message: "internal error", Error: "internal error", Code: errs.KindInternal})
			return
		}
		status := errs.HTTPStatus(e.Kind)
		if status >= http.StatusInternalServerError {
			logging.WithContext(r.Context(), log).WithError(err).Warn("request failed")
		}
		if errs.Retryable(err) {
			w.Header().Set("Retry-After", "1")
		}
		writeJSON(w, status, envelope{Message: e.Message, Error: e.Message, Code: e.Kind, Fields: e.Fields})
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched when
// optional is set.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return errs.Validation("invalid JSON body", map[string]string{"body": err.Error()})
	}
	return nil
}

// intQuery parses an optional non-negative integer query parameter.
func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errs.Validation(name+" must be a non-negative integer", map[string]string{name: "must be a non-negative integer"})
	}
	return n, nil
}
