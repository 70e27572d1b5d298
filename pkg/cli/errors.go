package cli

import (
	"errors"
	"fmt"
	"strings"

	"lycan-hq/arbiter/pkg/config"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitConfig   = 2
	ExitNotReady = 3
)

// exitCoder is implemented by errors that pick their own exit code.
type exitCoder interface {
	ExitCode() int
}

// ConfigError is a bad flag or configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

func (e *ConfigError) Error() string {
	return "config error in " + e.Field + ": " + e.Message
}

func (e *ConfigError) ExitCode() int { return ExitConfig }

// CommandError is a failure while a command was running. Code defaults to
// ExitError.
type CommandError struct {
	Command string
	Code    int
	Err     error
}

func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Code: ExitError, Err: err}
}

// NotReadyError reports the health checks that were still failing when a
// table was required to be fully ready.
func NotReadyError(command string, checks []string) *CommandError {
	return &CommandError{
		Command: command,
		Code:    ExitNotReady,
		Err:     fmt.Errorf("not ready: %s", strings.Join(checks, ", ")),
	}
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

func (e *CommandError) ExitCode() int {
	if e.Code == ExitOK {
		return ExitError
	}
	return e.Code
}

// ConfigErrors splits a config.ValidationError anywhere in err's chain into
// one ConfigError per field.
func ConfigErrors(err error) []*ConfigError {
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	out := make([]*ConfigError, len(verr.Errors))
	for i, fe := range verr.Errors {
		out[i] = NewConfigError(fe.Field, fe.Message)
	}
	return out
}

// ExitCode maps a command's error to the process exit code. The outermost
// error that chooses a code wins.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	if ConfigErrors(err) != nil {
		return ExitConfig
	}
	return ExitError
}
