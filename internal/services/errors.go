package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAttachExhausted indicates the render engine never accepted a session
	// within the configured attempt budget. Fatal for the pipeline.
	ErrAttachExhausted = errors.New("attach exhausted")
	// ErrEngineMissing indicates the render engine binary or scripting
	// service is absent entirely. Fatal, never retried.
	ErrEngineMissing = errors.New("render engine missing")
	// ErrProjectUnavailable indicates the template project could not be
	// loaded or imported. Fatal for the pipeline.
	ErrProjectUnavailable = errors.New("project unavailable")
	// ErrUploadInterrupted indicates the storage service permanently rejected
	// the upload after per-chunk retries.
	ErrUploadInterrupted = errors.New("upload interrupted")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether an error should move the pipeline to its terminal
// failed state rather than being retried locally.
func Fatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrAttachExhausted),
		errors.Is(err, ErrEngineMissing),
		errors.Is(err, ErrProjectUnavailable),
		errors.Is(err, ErrUploadInterrupted),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrValidation):
		return true
	default:
		return false
	}
}

// Cause extracts the human-readable cause shown to the wizard when the
// pipeline fails.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
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
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
