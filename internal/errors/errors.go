// Package errors defines the typed errors shared across hoyolab-auto.
// Configuration and bootstrap errors abort startup; task errors are
// recoverable and only ever logged.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown   = "UNKNOWN"
	CodeConfig    = "CONFIG"
	CodeTask      = "TASK"
	CodeBootstrap = "BOOTSTRAP"
)

// ConfigKind classifies a ConfigError.
type ConfigKind string

// Configuration error kinds.
const (
	ConflictingFilters ConfigKind = "conflicting_filters"
	InvalidSchedule    ConfigKind = "invalid_schedule"
	UnknownType        ConfigKind = "unknown_type"
	LoadFailed         ConfigKind = "load_failed"
	Validation         ConfigKind = "validation"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't contain one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// IsFatal reports whether err must abort process startup.
func IsFatal(err error) bool {
	switch Code(err) {
	case CodeConfig, CodeBootstrap:
		return true
	default:
		return false
	}
}

// ConfigError is raised while turning configuration into runtime state.
type ConfigError struct {
	Kind  ConfigKind
	Name  string
	Cause error
}

func (e *ConfigError) Error() string {
	msg := "config error: " + string(e.Kind)
	if e.Name != "" {
		msg += fmt.Sprintf(" (%s)", e.Name)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

func (e *ConfigError) Code() string {
	return CodeConfig
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is matches another *ConfigError of the same kind, so callers can test
// errors.Is(err, &ConfigError{Kind: InvalidSchedule}).
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && (t.Name == "" || t.Name == e.Name)
}

// NewConfigError builds a ConfigError.
func NewConfigError(kind ConfigKind, name string, cause error) error {
	return &ConfigError{Kind: kind, Name: name, Cause: cause}
}

// TaskError wraps the failure of a single task invocation.
type TaskError struct {
	Name  string
	Cause error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Name, e.Cause)
}

func (e *TaskError) Code() string {
	return CodeTask
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// NewTaskError builds a TaskError. A nil cause yields nil.
func NewTaskError(name string, cause error) error {
	if cause == nil {
		return nil
	}

	return &TaskError{Name: name, Cause: cause}
}

// BootstrapError reports a session that could not be established.
type BootstrapError struct {
	SessionID string
	Cause     error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap of %s failed: %v", e.SessionID, e.Cause)
}

func (e *BootstrapError) Code() string {
	return CodeBootstrap
}

func (e *BootstrapError) Unwrap() error {
	return e.Cause
}

// NewBootstrapError builds a BootstrapError.
func NewBootstrapError(sessionID string, cause error) error {
	return &BootstrapError{SessionID: sessionID, Cause: cause}
}
