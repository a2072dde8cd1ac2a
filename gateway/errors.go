package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mrpasztoradam/goadsym"
)

// Error codes
const (
	ErrCodeSymbolNotFound  = "SYMBOL_NOT_FOUND"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodePortClosed      = "PORT_CLOSED"
	ErrCodeConnectionError = "CONNECTION_ERROR"
	ErrCodeReadFailed      = "READ_FAILED"
	ErrCodeWriteFailed     = "WRITE_FAILED"
	ErrCodeReleaseFailed   = "RELEASE_FAILED"
	ErrCodeDeviceError     = "DEVICE_ERROR"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// HTTPError represents an HTTP error with status code and error response
type HTTPError struct {
	StatusCode int
	Response   ErrorResponse
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return e.Response.Error.Message
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, code, message string, details map[string]interface{}) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Response: ErrorResponse{
			Error: ErrorDetail{
				Code:    code,
				Message: message,
				Details: details,
			},
		},
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, ErrCodeInvalidRequest, message, nil)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, ErrCodeInternalError, message, nil)
}

// FromClientError maps a client error to an HTTP error by kind: closed port
// and connection failures become 503, unknown symbols become 404, everything
// the device rejects becomes 502.
func FromClientError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	var clientErr *goadsym.Error
	if !errors.As(err, &clientErr) {
		return NewInternalError(err.Error())
	}

	details := map[string]interface{}{"operation": clientErr.Op}
	if clientErr.Symbol != "" {
		details["symbol"] = clientErr.Symbol
	}
	if clientErr.Code.IsError() {
		details["ads_code"] = uint32(clientErr.Code)
	}

	switch clientErr.Kind {
	case goadsym.KindPortClosed:
		return NewHTTPError(http.StatusServiceUnavailable, ErrCodePortClosed, clientErr.Error(), details)
	case goadsym.KindConnection, goadsym.KindAddressResolution:
		return NewHTTPError(http.StatusServiceUnavailable, ErrCodeConnectionError, clientErr.Error(), details)
	case goadsym.KindSymbolResolution:
		return NewHTTPError(http.StatusNotFound, ErrCodeSymbolNotFound, clientErr.Error(), details)
	case goadsym.KindRead:
		return NewHTTPError(http.StatusBadGateway, ErrCodeReadFailed, clientErr.Error(), details)
	case goadsym.KindWrite:
		return NewHTTPError(http.StatusBadGateway, ErrCodeWriteFailed, clientErr.Error(), details)
	case goadsym.KindRelease:
		return NewHTTPError(http.StatusBadGateway, ErrCodeReleaseFailed, clientErr.Error(), details)
	case goadsym.KindDevice:
		return NewHTTPError(http.StatusBadGateway, ErrCodeDeviceError, clientErr.Error(), details)
	default:
		return NewInternalError(clientErr.Error())
	}
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err error) {
	httpErr := FromClientError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpErr.StatusCode)
	json.NewEncoder(w).Encode(httpErr.Response)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}
