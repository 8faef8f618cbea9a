package cli

import "fmt"

// Process exit codes. Cobra's RunE returns an ExitError to signal the
// desired code to main.
const (
	exitValidation   = 1
	exitRuntime      = 2
	exitFileNotFound = 3
)

// ExitError is an error that carries a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
