package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrResolution    = errors.New("resolution error")
	ErrDecode        = errors.New("decode error")
	ErrStaging       = errors.New("staging error")
	ErrPermission    = errors.New("permission error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrCanceled      = errors.New("canceled")
)

var markers = []error{
	ErrResolution,
	ErrDecode,
	ErrStaging,
	ErrPermission,
	ErrValidation,
	ErrConfiguration,
	ErrNotFound,
	ErrCanceled,
}

// Wrap tags err with marker and prefixes the stage, operation and message.
// A nil err yields a marker-only error; a nil marker defaults to
// ErrValidation.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether err must terminate the run rather than fail a single
// layer. Only staging and configuration errors qualify.
func Fatal(err error) bool {
	return errors.Is(err, ErrStaging) || errors.Is(err, ErrConfiguration)
}

// Details splits err into the label of its marker and the remaining message,
// suitable for one line of a run summary.
func Details(err error) (kind, message string) {
	if err == nil {
		return "", ""
	}
	msg := err.Error()
	for _, marker := range markers {
		if !errors.Is(err, marker) {
			continue
		}
		prefix := marker.Error() + ": "
		return marker.Error(), strings.TrimPrefix(msg, prefix)
	}
	return "error", msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
