package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/iobridge/internal/bridge"
	"github.com/nerrad567/iobridge/internal/peripheral"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeInternal   = "internal_error"
	ErrCodeValidation = "validation_error"
	ErrCodeHardware   = "hardware_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeBridgeError maps registry and router errors to a response.
func writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, peripheral.ErrUnknownDevice):
		writeNotFound(w, err.Error())
	case errors.Is(err, peripheral.ErrInvalidName),
		errors.Is(err, peripheral.ErrInvalidAddress),
		errors.Is(err, peripheral.ErrInvalidArgument),
		errors.Is(err, peripheral.ErrUnknownType),
		errors.Is(err, peripheral.ErrUnknownCommand),
		errors.Is(err, bridge.ErrReservedName),
		errors.Is(err, bridge.ErrEmptyAddress):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, peripheral.ErrNotReady):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, peripheral.ErrHardwareInit),
		errors.Is(err, peripheral.ErrReadFailed),
		errors.Is(err, peripheral.ErrWriteFailed):
		writeError(w, http.StatusBadGateway, ErrCodeHardware, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
