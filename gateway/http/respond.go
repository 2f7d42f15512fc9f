package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/service"
)

type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, Status: status})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case stderrors.Is(err, service.ErrInvalidFilters), errors.IsInvalid(err):
		return http.StatusBadRequest
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, service.ErrTemporarilyUnavailable), errors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns text safe to show clients. Filter validation
// details are kept; everything else is reduced to its status.
func publicMessage(err error, status int) string {
	if stderrors.Is(err, service.ErrInvalidFilters) {
		msg := err.Error()
		if i := strings.Index(msg, service.ErrInvalidFilters.Error()); i >= 0 {
			return msg[i:]
		}
		return service.ErrInvalidFilters.Error()
	}

	switch status {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusGatewayTimeout:
		return "request timeout"
	case http.StatusServiceUnavailable:
		return service.ErrTemporarilyUnavailable.Error()
	default:
		return "internal server error"
	}
}

func (g *Gateway) writeServiceError(w http.ResponseWriter, r *http.Request, method string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		g.logger.Warn("Request failed",
			"method", method,
			"status", status,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err)
	} else {
		g.logger.Debug("Request rejected", "method", method, "status", status, "error", err)
	}
	writeError(w, status, publicMessage(err, status))
}
