package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Error codes carried in TrustResolution metadata.
const (
	CodeInvalid            = "invalid"
	CodeNotFound           = "not_found"
	CodeNotSupported       = "not_supported"
	CodeInvalidIssuer      = "invalid_issuer"
	CodeInvalidRequest     = "invalid_request"
	CodeSchemaMismatch     = "schema_mismatch"
	CodeVerificationFailed = "verification_failed"
	CodeInvalidPermissions = "invalid_permissions"
)

var (
	// ErrInvalid is returned when a document or argument is malformed
	ErrInvalid = NewError(CodeInvalid)

	// ErrNotFound is returned when a DID document, service or credential is absent
	ErrNotFound = NewError(CodeNotFound)

	// ErrNotSupported is returned for schema or key forms outside the supported set
	ErrNotSupported = NewError(CodeNotSupported)

	// ErrInvalidIssuer is returned when the issuer of a credential is not acceptable
	ErrInvalidIssuer = NewError(CodeInvalidIssuer)

	// ErrInvalidRequest is returned for malformed requests to remote endpoints
	ErrInvalidRequest = NewError(CodeInvalidRequest)

	// ErrSchemaMismatch is returned when a credential does not validate against its schema
	ErrSchemaMismatch = NewError(CodeSchemaMismatch)

	// ErrVerificationFailed is returned when a proof or digest does not verify
	ErrVerificationFailed = NewError(CodeVerificationFailed)

	// ErrInvalidPermissions is returned when the issuer holds no usable permission
	ErrInvalidPermissions = NewError(CodeInvalidPermissions)
)

// Error is a struct that represents a trust error
type Error struct {
	Title string `json:"title"`
	Err   any    `json:"details"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("Error: [%s] %+v", e.Title, e.Err)
	}
	return fmt.Sprintf("Error: [%s]", e.Title)
}

// Is matches errors by title so sentinel comparison works through wrapping
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Title == t.Title
}

// Message renders the detail part for resolution metadata
func (e *Error) Message() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if s, ok := e.Err.(string); ok {
		return s
	}
	return fmt.Sprintf("%+v", e.Err)
}

func NewError(title string) *Error {
	return &Error{Title: title}
}

func NewErrorDetails(title string, err any) *Error {
	return &Error{Title: title, Err: err}
}

// NewErrorFromError creates a new Error from an error. Foreign errors are
// classified as invalid with the original message preserved.
func NewErrorFromError(err error) *Error {
	if err == nil {
		return nil
	}

	var trustErr *Error
	if errors.As(err, &trustErr) {
		return trustErr
	}

	if jsonTypeErr, ok := err.(*json.UnmarshalTypeError); ok {
		return NewErrorDetails(CodeInvalid, fmt.Sprintf("json type error: field %q expected %s", jsonTypeErr.Field, jsonTypeErr.Type.Kind()))
	}
	if jsonSyntaxErr, ok := err.(*json.SyntaxError); ok {
		return NewErrorDetails(CodeInvalid, fmt.Sprintf("json syntax error at %d: %s", jsonSyntaxErr.Offset, jsonSyntaxErr.Error()))
	}
	if validatorErr, ok := err.(validator.ValidationErrors); ok {
		return NewErrorDetails(CodeInvalidRequest, validatorErr.Error())
	}

	return NewErrorDetails(CodeInvalid, err.Error())
}
