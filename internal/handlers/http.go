package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/logger"
)

// Error codes for standardized API error responses
const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeRetry          = "RETRY"
	ErrCodePrecondition   = "PRECONDITION_FAILED"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// retryAfterSeconds is advertised on RETRY responses
const retryAfterSeconds = "1"

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// APIError represents an error with an HTTP status code and error code
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Common errors
var (
	ErrBadRequest     = &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: "Bad request"}
	ErrUnauthorized   = &APIError{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: "Unauthorized"}
	ErrNotFound       = &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: "Not found"}
	ErrInternalServer = &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "Internal server error"}
)

// NewAPIError creates a new API error with custom message and code
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// BadRequest creates a 400 error with custom message
func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

// Unauthorized creates a 401 error with custom message
func Unauthorized(message string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: message}
}

// NotFound creates a 404 error with custom message
func NotFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: message}
}

// Conflict creates a 409 error with custom message
func Conflict(message string) *APIError {
	return &APIError{Status: http.StatusConflict, Code: ErrCodeConflict, Message: message}
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondOK writes a 200 OK JSON response
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

// respondCreated writes a 201 Created JSON response
func respondCreated(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusCreated, data)
}

// respondSuccess writes a 200 OK with a message
func respondSuccess(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "message": message})
}

// respondDeleted writes a 204 No Content response
func respondDeleted(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// respondPNG writes raw PNG bytes
func respondPNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// respondError writes an error response. Internal errors are logged and
// their details withheld from the client.
func (h *Handlers) respondError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*APIError)
	if !ok {
		apiErr = ToAPIError(err)
	}
	if apiErr.Status >= http.StatusInternalServerError && apiErr.Status != http.StatusServiceUnavailable {
		h.logger().Error("request failed", "error", err)
	}
	if apiErr.Code == ErrCodeRetry {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	respondJSON(w, apiErr.Status, apiErr)
}

func (h *Handlers) logger() logger.Logger {
	if h.Log == nil {
		return logger.NewDiscard()
	}
	return h.Log
}

// decodeJSON decodes JSON from request body into the target
func decodeJSON(r *http.Request, target interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(target); err != nil {
		if err == io.EOF {
			return BadRequest("Request body is empty")
		}
		return BadRequest("Invalid JSON: " + err.Error())
	}
	return nil
}

// parseIntParam extracts and parses an integer URL parameter
func parseIntParam(r *http.Request, name string) (int, error) {
	param := chi.URLParam(r, name)
	if param == "" {
		return 0, BadRequest("Missing " + name + " parameter")
	}
	id, err := strconv.Atoi(param)
	if err != nil || id < 1 {
		return 0, BadRequest("Invalid " + name + " parameter")
	}
	return id, nil
}

// parseIntQuery parses an optional integer query parameter
func parseIntQuery(r *http.Request, name string, def int) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, BadRequest("Invalid " + name + " parameter")
	}
	return n, nil
}

// ToAPIError converts service errors to API errors
func ToAPIError(err error) *APIError {
	var appErr *errors.Error
	if !stderrors.As(err, &appErr) {
		return ErrInternalServer
	}
	code := appErr.Kind.Code()
	switch appErr.Kind {
	case errors.ErrNotFound:
		return NotFound(appErr.Message)
	case errors.ErrValidation, errors.ErrInvalidInput:
		return &APIError{Status: http.StatusBadRequest, Code: code, Message: appErr.Message}
	case errors.ErrConflict:
		return Conflict(appErr.Message)
	case errors.ErrRetriable:
		return &APIError{Status: http.StatusServiceUnavailable, Code: code, Message: appErr.Message}
	case errors.ErrPrecondition:
		return &APIError{Status: http.StatusUnprocessableEntity, Code: code, Message: appErr.Message}
	case errors.ErrUnauthorized:
		return Unauthorized(appErr.Message)
	default:
		return ErrInternalServer
	}
}
