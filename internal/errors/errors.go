// Package errors provides structured error handling for streamgate.
// It defines the error taxonomy shared by the resolver and the streaming
// proxy, sentinel errors, and helpers to render errors as HTTP responses.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

// ErrorType classifies a failure for propagation and HTTP mapping.
type ErrorType string

const (
	// ErrorTypeConfiguration indicates the gateway is missing required settings
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeValidation indicates a malformed or out-of-namespace request
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeOrigin indicates the origin answered with a non-2xx status
	ErrorTypeOrigin ErrorType = "origin"
	// ErrorTypeTransport indicates the origin could not be reached
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeTimeout indicates the origin did not answer in time
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInternal indicates an unexpected gateway failure
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinel errors
var (
	ErrMissingCredential = errors.New("shared origin credential is not configured")
	ErrMissingURL        = errors.New("url parameter is required")
	ErrInvalidOriginURL  = errors.New("invalid origin url")
	ErrOutsideNamespace  = errors.New("url is outside the media origin namespace")
	ErrInvalidAssetPath  = errors.New("invalid asset path")
	ErrOriginStatus      = errors.New("origin returned an error status")
	ErrOriginUnreachable = errors.New("media origin unreachable")
	ErrProbeTimeout      = errors.New("origin request timed out")
)

// GatewayError carries classification and context for a failed operation.
type GatewayError struct {
	Type    ErrorType
	Op      string
	Status  int // origin status for ErrorTypeOrigin
	Err     error
	Details map[string]interface{}
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error in %s (status %d): %v", e.Type, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Type, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors wrapped by this error.
func (e *GatewayError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// New creates a GatewayError.
func New(errType ErrorType, op string, err error) *GatewayError {
	return &GatewayError{
		Type:    errType,
		Op:      op,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a key-value detail to the error
func (e *GatewayError) WithDetail(key string, value interface{}) *GatewayError {
	e.Details[key] = value
	return e
}

// HTTPStatus maps the error to the status returned to clients.
func (e *GatewayError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeOrigin:
		if e.Status >= 400 && e.Status <= 599 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine readable code rendered to clients.
func (e *GatewayError) Code() string {
	switch e.Type {
	case ErrorTypeConfiguration:
		return "CONFIGURATION_ERROR"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeOrigin:
		return "ORIGIN_ERROR"
	case ErrorTypeTransport:
		return "TRANSPORT_ERROR"
	case ErrorTypeTimeout:
		return "TIMEOUT_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// PublicMessage is the client-visible message. Transport level failures get
// a generic message; the wrapped error may contain origin addresses.
func (e *GatewayError) PublicMessage() string {
	switch e.Type {
	case ErrorTypeValidation:
		return e.Err.Error()
	case ErrorTypeOrigin:
		return fmt.Sprintf("media origin responded with status %d", e.Status)
	case ErrorTypeConfiguration:
		return "streaming gateway is not configured"
	case ErrorTypeTransport, ErrorTypeTimeout:
		return "failed to reach media origin"
	default:
		return "internal error"
	}
}

// ToGinResponse sends the error as a JSON response and aborts the chain.
func (e *GatewayError) ToGinResponse(c *gin.Context, log hclog.Logger) {
	status := e.HTTPStatus()
	response := gin.H{
		"error": e.PublicMessage(),
		"code":  e.Code(),
	}
	if len(e.Details) > 0 {
		response["details"] = e.Details
	}
	// Set by the request logger middleware.
	requestID := c.GetString("request_id")
	if requestID != "" {
		response["request_id"] = requestID
	}

	if log != nil {
		log.Warn("request failed",
			"request_id", requestID,
			"status", status,
			"type", e.Type,
			"op", e.Op,
			"path", c.Request.URL.Path,
			"error", e.Err)
	}

	c.AbortWithStatusJSON(status, response)
}

// Configuration creates a configuration error
func Configuration(op string, err error) *GatewayError {
	return New(ErrorTypeConfiguration, op, err)
}

// Validation creates a validation error
func Validation(op string, err error) *GatewayError {
	return New(ErrorTypeValidation, op, err)
}

// Origin creates an origin status error
func Origin(op string, status int) *GatewayError {
	e := New(ErrorTypeOrigin, op, ErrOriginStatus)
	e.Status = status
	return e
}

// Transport classifies a client.Do failure as timeout or transport error.
func Transport(op string, err error) *GatewayError {
	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrorTypeTimeout, op, fmt.Errorf("%w: %v", ErrProbeTimeout, err))
	}
	return New(ErrorTypeTransport, op, fmt.Errorf("%w: %v", ErrOriginUnreachable, err))
}

// Wrap wraps an error with operation context if it's not already a GatewayError
func Wrap(err error, errType ErrorType, op string) error {
	if err == nil {
		return nil
	}
	var gErr *GatewayError
	if errors.As(err, &gErr) {
		return err
	}
	return New(errType, op, err)
}

// GetType extracts the error type from an error
func GetType(err error) ErrorType {
	var gErr *GatewayError
	if errors.As(err, &gErr) {
		return gErr.Type
	}
	return ErrorTypeInternal
}

// Respond renders any error; non-gateway errors become internal errors.
func Respond(c *gin.Context, err error, log hclog.Logger) {
	var gErr *GatewayError
	if !errors.As(err, &gErr) {
		gErr = New(ErrorTypeInternal, "request", err)
	}
	gErr.ToGinResponse(c, log)
}
