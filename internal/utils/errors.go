package utils

import (
	"errors"
	"fmt"
)

// AppError annotates a failure with the digest stage that produced it.
type AppError struct {
	Stage  string
	Detail string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Detail, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap returns an AppError for err, or nil when err is nil.
func Wrap(stage, detail string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Stage: stage, Detail: detail, Err: err}
}

// StageOf returns the stage of the outermost AppError in err's chain, or "".
func StageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Stage
	}
	return ""
}
