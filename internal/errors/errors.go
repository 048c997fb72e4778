// Package errors provides centralized error definitions and error handling utilities
// for skillcheck. It defines the sentinel errors shared across packages, typed errors
// for backend and transport failures, semantic error types, and the classification
// helpers the UI layers use to decide what to show the user.
//
// # Error Types
//
// Domain-specific errors describe failures at the backend boundary:
//   - APIError: a non-2xx response from the assessment backend
//   - NetworkError: the backend could not be reached
//   - SubmissionError: an answer submission stopped partway
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
//	var apiErr *errors.APIError
//	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
//	    showFieldErrors(apiErr.Fields)
//	}
//
//	if errors.Is(err, errors.ErrUnauthorized) { ... }
//
//	banner := errors.UserMessage(err)
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Authentication sentinel errors
var (
	// ErrNotAuthenticated indicates that no user is logged in.
	ErrNotAuthenticated = New("not logged in")
	// ErrUnauthorized indicates that the backend rejected the session token (HTTP 401).
	ErrUnauthorized = New("session is no longer valid")
	// ErrSessionExpired indicates that the stored token's expiry has passed.
	ErrSessionExpired = New("session expired")
	// ErrInvalidToken indicates that the stored token could not be decoded.
	ErrInvalidToken = New("invalid session token")
	// ErrForbidden indicates that the current user lacks the required role.
	ErrForbidden = New("permission denied")
)

// Assessment sentinel errors
var (
	// ErrNoQuestions indicates that an assessment has nothing to answer.
	ErrNoQuestions = New("assessment has no questions")
	// ErrUnknownChoice indicates a selection that does not belong to the question.
	ErrUnknownChoice = New("choice does not belong to question")
	// ErrUnknownQuestion indicates a selection for a question not in the assessment.
	ErrUnknownQuestion = New("question does not belong to assessment")
	// ErrNothingToSubmit indicates a submission with no answered questions.
	ErrNothingToSubmit = New("no answers to submit")
)

// General sentinel errors
var (
	// ErrNotFound indicates that a resource could not be found.
	ErrNotFound = New("not found")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrNetwork indicates that the backend could not be reached.
	ErrNetwork = New("network failure")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// SkillcheckError is the base interface for all typed errors in this module.
// It extends the standard error interface with additional methods for
// error handling and classification.
type SkillcheckError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// APIError represents a non-2xx response from the assessment backend.
// Message is the backend's own explanation when it sent one; Fields carries
// field-level validation errors exactly as the backend reported them.
//
// Example:
//
//	err := errors.NewAPIError(400, "Email already registered").
//	    WithRequest("POST", "auth/register/")
//	fmt.Println(err) // "api error [status=400, method=POST, path=auth/register/]: Email already registered"
type APIError struct {
	baseError
	Status int
	Method string
	Path   string
	Fields map[string][]string
}

// NewAPIError creates a new APIError for the given HTTP status.
// Server errors and throttling responses are retryable.
func NewAPIError(status int, message string) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}
	severity := SeverityWarning
	if status >= 500 {
		severity = SeverityError
	}
	return &APIError{
		baseError: baseError{
			message:    message,
			severity:   severity,
			retryable:  status >= 500 || status == http.StatusTooManyRequests,
			userFacing: true,
		},
		Status: status,
	}
}

// WithRequest records the method and path that produced the response.
func (e *APIError) WithRequest(method, path string) *APIError {
	e.Method = method
	e.Path = path
	return e
}

// WithFields attaches field-level validation errors.
func (e *APIError) WithFields(fields map[string][]string) *APIError {
	e.Fields = fields
	return e
}

// WithCause adds a cause to the error.
func (e *APIError) WithCause(cause error) *APIError {
	e.cause = cause
	return e
}

// Message returns the backend's message without request context.
func (e *APIError) Message() string {
	return e.message
}

// FieldMessages flattens Fields into display lines; see FieldLines.
func (e *APIError) FieldMessages() []string {
	return FieldLines(e.Fields)
}

// FieldLines renders backend field errors as "field: message" lines in
// field order. Non-field errors are left unprefixed.
func FieldLines(fields map[string][]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		for _, msg := range fields[k] {
			if k == "non_field_errors" || k == "detail" {
				lines = append(lines, msg)
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %s", k, msg))
		}
	}
	return lines
}

// Error returns the formatted error message.
func (e *APIError) Error() string {
	parts := []string{fmt.Sprintf("status=%d", e.Status)}
	if e.Method != "" {
		parts = append(parts, fmt.Sprintf("method=%s", e.Method))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := fmt.Sprintf("api error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *APIError) Is(target error) bool {
	if _, ok := target.(*APIError); ok {
		return true
	}
	switch {
	case e.Status == http.StatusNotFound && target == ErrNotFound:
		return true
	case e.Status == http.StatusForbidden && target == ErrForbidden:
		return true
	case e.Status == http.StatusUnauthorized && target == ErrUnauthorized:
		return true
	}
	return e.baseError.Is(target)
}

// NetworkError represents a request that never produced an HTTP response.
//
// Example:
//
//	err := errors.NewNetworkError("GET", "http://localhost:8000/api/assessments/", cause)
type NetworkError struct {
	baseError
	Method string
	URL    string
}

// NewNetworkError creates a new NetworkError.
func NewNetworkError(method, url string, cause error) *NetworkError {
	return &NetworkError{
		baseError: baseError{
			message:    "request failed",
			cause:      cause,
			severity:   SeverityError,
			retryable:  true,
			userFacing: false,
		},
		Method: method,
		URL:    url,
	}
}

// Error returns the formatted error message.
func (e *NetworkError) Error() string {
	base := fmt.Sprintf("network error [%s %s]: %s", e.Method, e.URL, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *NetworkError) Is(target error) bool {
	if _, ok := target.(*NetworkError); ok {
		return true
	}
	if target == ErrNetwork {
		return true
	}
	return e.baseError.Is(target)
}

// SubmissionError reports the answer submission that stopped a sequential
// submit. Position is 1-based in presentation order among answered questions.
//
// Example:
//
//	err := errors.NewSubmissionError(2, 3, 17, cause)
//	fmt.Println(err) // "submission error [answer=2/3, question=17]: answer not saved: ..."
type SubmissionError struct {
	baseError
	Position   int
	Total      int
	QuestionID int
}

// NewSubmissionError creates a new SubmissionError.
func NewSubmissionError(position, total, questionID int, cause error) *SubmissionError {
	return &SubmissionError{
		baseError: baseError{
			message:    "answer not saved",
			cause:      cause,
			severity:   SeverityError,
			retryable:  IsRetryable(cause),
			userFacing: true,
		},
		Position:   position,
		Total:      total,
		QuestionID: questionID,
	}
}

// Error returns the formatted error message.
func (e *SubmissionError) Error() string {
	prefix := fmt.Sprintf("submission error [answer=%d/%d, question=%d]", e.Position, e.Total, e.QuestionID)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SubmissionError) Is(target error) bool {
	if _, ok := target.(*SubmissionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("assessment", "12")
//	fmt.Println(err) // "assessment '12' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrNotFound {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("title is required").WithField("title")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Message returns the validation message without field context.
func (e *ValidationError) Message() string {
	return e.message
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("GET assessments/", 15*time.Second)
//	fmt.Println(err) // "timeout error: GET assessments/ (timeout: 15s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing SkillcheckError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout or ErrNetwork
//
// Nothing in skillcheck retries automatically; this only decides whether the
// UI offers a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var typed SkillcheckError
	if As(err, &typed) {
		return typed.IsRetryable()
	}

	return Is(err, ErrTimeout) || Is(err, ErrNetwork)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var typed SkillcheckError
	if As(err, &typed) {
		return typed.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement SkillcheckError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var typed SkillcheckError
	if As(err, &typed) {
		return typed.Severity()
	}

	return SeverityError
}

// Generic messages shown in place of internal error text.
const (
	MessageNetwork      = "Unable to reach the server. Check your connection and try again."
	MessageUnauthorized = "Your session has ended. Please log in again."
	MessageInternal     = "Something went wrong. Please try again."
)

// UserMessage returns text that is safe to show in a banner or on stderr.
// Backend messages pass through; transport and internal failures collapse to
// a generic prompt.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var sub *SubmissionError
	if As(err, &sub) {
		return fmt.Sprintf("Answer %d of %d was not saved: %s", sub.Position, sub.Total, UserMessage(sub.cause))
	}

	switch {
	case Is(err, ErrUnauthorized):
		return MessageUnauthorized
	case Is(err, ErrNetwork):
		return MessageNetwork
	}

	var notFound *NotFoundError
	if As(err, &notFound) {
		var cause *APIError
		if As(notFound.cause, &cause) && !strings.EqualFold(strings.TrimSuffix(cause.message, "."), "not found") && cause.message != "" {
			return cause.message
		}
		return fmt.Sprintf("No %s %s was found.", notFound.ResourceType, notFound.ResourceID)
	}

	var apiErr *APIError
	if As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return "The server had a problem (" + http.StatusText(apiErr.Status) + "). Please try again."
		}
		return apiErr.message
	}

	var validation *ValidationError
	if As(err, &validation) {
		if validation.Field != "" {
			return fmt.Sprintf("%s: %s", validation.Field, validation.message)
		}
		return validation.message
	}

	var timeout *TimeoutError
	if As(err, &timeout) {
		return "The request timed out. Please try again."
	}

	for _, sentinel := range []error{
		ErrNotAuthenticated, ErrSessionExpired, ErrForbidden,
		ErrNoQuestions, ErrNothingToSubmit, ErrUnknownChoice, ErrUnknownQuestion,
	} {
		if Is(err, sentinel) {
			return capitalize(sentinel.Error())
		}
	}

	if IsUserFacing(err) {
		return err.Error()
	}
	return MessageInternal
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike discarding the original, this preserves the SkillcheckError chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
