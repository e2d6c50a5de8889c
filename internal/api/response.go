package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/logger"
)

type successEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Path    string `json:"path,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, successEnvelope{Success: true, Message: message, Data: data})
}

// fail writes the error envelope for err. Unexpected errors are logged and,
// in production, their details are withheld from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	detail := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if s.cfg.IsProduction() {
			detail = "Something went wrong"
		}
	}
	writeJSON(w, status, errorEnvelope{Message: statusMessage(status), Error: detail})
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Validation failed"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusTooManyRequests:
		return "Too many requests, please try again later"
	default:
		return "Internal Server Error"
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorEnvelope{Message: "Route not found", Path: r.URL.Path})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope{
		Message: "Method not allowed",
		Error:   fmt.Sprintf("%s is not supported on %s", r.Method, r.URL.Path),
		Path:    r.URL.Path,
	})
}

// decode reads a JSON body into dst, rejecting unknown fields, trailing
// data and bodies over the size limit.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.Validationf("request body is required")
		}
		return errors.Validationf("invalid request body: %v", err)
	}
	if dec.More() {
		return errors.Validationf("invalid request body: unexpected data after JSON object")
	}
	return nil
}
