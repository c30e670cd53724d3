package visitor

import "fmt"

// ValidationError reports malformed or out-of-policy input. Field uses the
// JSON name of the offending input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError means a lookup by id, code or mobile matched nothing.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

// ConflictError is returned when a transition does not fit the approval's
// current state. State names that state so clients can refresh.
type ConflictError struct {
	ApprovalID string
	State      string
	Message    string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ForbiddenError is returned when a caller acts on an approval it does not own.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
