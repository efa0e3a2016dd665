package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/baekenough/kafka-lens-sub000/internal/kafka"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// writeKafkaError maps the core error taxonomy onto HTTP status codes.
// Anything that is not a *kafka.Error is an internal error.
func writeKafkaError(w http.ResponseWriter, err error) {
	var ke *kafka.Error
	if !errors.As(err, &ke) {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch ke.Kind {
	case kafka.KindClusterNotFound, kafka.KindResourceNotFound:
		status = http.StatusNotFound
	case kafka.KindValidation:
		status = http.StatusBadRequest
	case kafka.KindTimeout:
		status = http.StatusGatewayTimeout
	case kafka.KindAuthentication:
		status = http.StatusUnauthorized
	case kafka.KindAuthorization:
		status = http.StatusForbidden
	case kafka.KindConnection:
		status = http.StatusBadGateway
	}

	writeError(w, status, ke.Kind.String(), ke.Error())
}
