package errors

import sterrors "errors"

var (
	ErrServiceRequired     = sterrors.New("opflow: service is required")
	ErrDescriptionRequired = sterrors.New("opflow: api description is required")
	ErrLoggerRequired      = sterrors.New("opflow: logger is required")
	ErrTransportRequired   = sterrors.New("opflow: transport is required")
	ErrHandlerRequired     = sterrors.New("opflow: handler function is required")
	ErrHandlerBound        = sterrors.New("opflow: operation already has a handler")
	ErrUnknownOperation    = sterrors.New("opflow: unknown operation")
	ErrUnknownScope        = sterrors.New("opflow: unknown plugin scope")
	ErrPluginsSealed       = sterrors.New("opflow: plugin registry is sealed")
	ErrAlreadyProcessed    = sterrors.New("opflow: processor already ran")
	ErrContinueReinvoked   = sterrors.New("opflow: continuation invoked more than once")
	ErrIndexOverrun        = sterrors.New("opflow: plugin index overran scope")
	ErrInvalidResponse     = sterrors.New("opflow: malformed response body")
)

// DescriptionError wraps the validation failures found while parsing an
// api description. The wrapped error may join several problems.
type DescriptionError struct {
	Err error
}

func (e DescriptionError) Error() string {
	return "opflow: invalid api description: " + e.Err.Error()
}

func (e DescriptionError) Unwrap() error {
	return e.Err
}

// NewDescriptionError wraps err in a DescriptionError, or returns nil if
// err is nil.
func NewDescriptionError(err error) error {
	if err == nil {
		return nil
	}
	return DescriptionError{Err: err}
}
