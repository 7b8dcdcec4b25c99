package utils

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope of every JSON reply. Code is set on failures only.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// Error codes returned in Response.Code
const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeValidation             = "VALIDATION_FAILED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeInvalidState           = "INVALID_STATE"
	CodeImmutable              = "IMMUTABLE"
	CodeDriverUnavailable      = "DRIVER_UNAVAILABLE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeInternal               = "INTERNAL"
)

func writeJSON(w http.ResponseWriter, code int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// ResponseJSON writes JSON response with custom status code
func ResponseJSON(w http.ResponseWriter, code int, status bool, message string, data, errors any) {
	writeJSON(w, code, Response{
		Status:  status,
		Message: message,
		Data:    data,
		Errors:  errors,
	})
}

// ResponseError writes a failure with an explicit error code
func ResponseError(w http.ResponseWriter, code int, errCode, message string, errors any) {
	writeJSON(w, code, Response{
		Status:  false,
		Message: message,
		Code:    errCode,
		Errors:  errors,
	})
}

// ------------- Success responses -------------

// returns 200 OK
func ResponseSuccess(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusOK, true, message, data, nil)
}

// returns 201 Created
func ResponseCreated(w http.ResponseWriter, message string, data any) {
	ResponseJSON(w, http.StatusCreated, true, message, data, nil)
}

// ------------- Error responses -------------

// returns 400 Bad Request; a non-nil errors map marks a validation failure
func ResponseBadRequest(w http.ResponseWriter, message string, errors any) {
	errCode := CodeBadRequest
	if errors != nil {
		errCode = CodeValidation
	}
	ResponseError(w, http.StatusBadRequest, errCode, message, errors)
}

// returns 401 Unauthorized
func ResponseUnauthorized(w http.ResponseWriter, message string) {
	ResponseError(w, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

// returns 403 Forbidden
func ResponseForbidden(w http.ResponseWriter, message string) {
	ResponseError(w, http.StatusForbidden, CodeForbidden, message, nil)
}

// returns 404 Not Found
func ResponseNotFound(w http.ResponseWriter, message string) {
	ResponseError(w, http.StatusNotFound, CodeNotFound, message, nil)
}

// returns 500 Internal Server Error
func ResponseInternalError(w http.ResponseWriter, message string) {
	ResponseError(w, http.StatusInternalServerError, CodeInternal, message, nil)
}
