package api

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/fragpit/envoy-auth/internal/model"
)

type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func sendSuccessResponse(w http.ResponseWriter, statusCode int, data any) {
	sendResponse(w, statusCode, Response{
		Success: true,
		Data:    data,
	})
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	sendResponse(w, statusCode, Response{
		Success: false,
		Error: &Error{
			Code:    statusCode,
			Message: message,
		},
	})
}

func sendResponse(w http.ResponseWriter, statusCode int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Errorf("error encoding JSON response: %v", err)
	}
}

// sendServiceError maps service errors onto status codes. Anything that is
// not a known caller-facing condition is a backend failure.
func sendServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		sendErrorResponse(w, http.StatusNotFound, message+": not found")
	case errors.Is(err, model.ErrInvalidCredential):
		sendErrorResponse(w, http.StatusUnauthorized, message+": invalid credential")
	default:
		log.Errorf("%s: %v", message, err)
		sendErrorResponse(w, http.StatusInternalServerError, message)
	}
}
