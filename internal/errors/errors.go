package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind string

const (
	InvalidConfig         Kind = "invalid_config"
	InvalidInput          Kind = "invalid_input"
	NotFound              Kind = "not_found"
	TransferFailed        Kind = "transfer_failed"
	Timeout               Kind = "timeout"
	Canceled              Kind = "canceled"
	InvalidBandwidthGrant Kind = "invalid_bandwidth_grant"
	IOFailure             Kind = "io_failure"
	Internal              Kind = "internal"
)

type AppError struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *AppError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Kind: kind,
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// New builds an AppError from a plain message.
func New(kind Kind, op, msg string) error {
	return &AppError{Kind: kind, Op: op, Err: stderrors.New(msg)}
}

// KindOf returns the kind of the outermost AppError in err's chain, or
// Internal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func UserMessage(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return err.Error()
	}
	switch appErr.Kind {
	case InvalidConfig:
		return fmt.Sprintf("Invalid configuration: %v", appErr.Err)
	case InvalidInput:
		return fmt.Sprintf("Invalid input: %v", appErr.Err)
	case NotFound:
		return fmt.Sprintf("Path not found: %s", appErr.Path)
	case TransferFailed:
		if appErr.Path == "" {
			return fmt.Sprintf("Transfer failed: %v", appErr.Err)
		}
		return fmt.Sprintf("Transfer failed: %s: %v", appErr.Path, appErr.Err)
	case Timeout:
		return fmt.Sprintf("Transfer timed out: %s", appErr.Path)
	case Canceled:
		return "Canceled"
	case IOFailure:
		return fmt.Sprintf("I/O error: %s", appErr.Path)
	default:
		return fmt.Sprintf("Unexpected error: %v", appErr.Err)
	}
}
