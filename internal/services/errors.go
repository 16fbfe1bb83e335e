package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTransient marks upstream hiccups (network, timeout, rate limit)
	// that are safe to retry with backoff.
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks failures that retrying cannot fix (malformed
	// input, unsupported language, upstream policy rejection).
	ErrPermanent = errors.New("permanent failure")
	// ErrValidation marks community rule violations surfaced for human triage.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or inconsistent configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups against unknown entries or communities.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks an adapter call that exceeded its attempt deadline.
	ErrTimeout = errors.New("timeout")
	// ErrInvalidState marks operations whose entry-status precondition no
	// longer holds. The pipeline treats these as benign no-ops.
	ErrInvalidState = errors.New("invalid state")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later retry classification. The marker should
// be one of the exported sentinel errors above.
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

// IsTransient reports whether the pipeline should retry the failed job.
// Timeouts and context deadline expiry count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanent) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConfiguration) || errors.Is(err, ErrNotFound) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// NeedsReview reports whether the failure should flag the entry for human
// triage rather than silent retry exhaustion.
func NeedsReview(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrPermanent) ||
		errors.Is(err, ErrConfiguration)
}

// MarkerForHTTPStatus classifies an upstream HTTP status into the sentinel
// appropriate for retry decisions. Rate limits and server errors are
// transient; other client errors are permanent.
func MarkerForHTTPStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrTransient
	case status >= http.StatusInternalServerError:
		return ErrTransient
	case status == http.StatusRequestTimeout:
		return ErrTimeout
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= http.StatusBadRequest:
		return ErrPermanent
	default:
		return ErrTransient
	}
}

// Message extracts the human-readable portion of a wrapped stage error,
// stripping the sentinel prefix so it can be stored as a failure annotation.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrTransient, ErrPermanent, ErrValidation, ErrConfiguration, ErrNotFound, ErrTimeout, ErrInvalidState} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
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
