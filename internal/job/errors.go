package job

import (
	"errors"
	"fmt"
)

var (
	ErrMissing = errors.New("not specified")
	ErrInvalid = errors.New("invalid value")
)

// ConfigurationError is a fault in the job input. Retrying it without an operator
// changing the job definition is pointless.
type ConfigurationError struct {
	Field   string
	JobName string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("job %s: %s: %v", e.JobName, e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ConnectionError means the remote host could not be reached or refused the credentials.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransferError is a failure while listing or downloading after a successful connect.
type TransferError struct {
	RemoteDir string
	Err       error
}

func (e *TransferError) Error() string {
	dir := e.RemoteDir
	if dir == "" {
		dir = "<default>"
	}
	return fmt.Sprintf("fetch from %s: %v", dir, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ExecutionError is what the scheduler receives from Execute.
type ExecutionError struct {
	JobName   string
	Retryable bool
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("job %s failed: %v", e.JobName, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Retryable
	}
	return false
}

// IsConfigurationError reports whether err was caused by the job input.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
