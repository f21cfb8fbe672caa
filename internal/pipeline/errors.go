package pipeline

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes fatal pipeline errors. Match and resolution
// failures are data, not errors - only genuinely unexpected internal
// faults surface through this type, and they abort the run.
type ErrorCode string

const (
	// ErrCodeAccountingBreach indicates the count invariant
	// |sends| == |enriched| + |failures| did not hold at the end of a run.
	ErrCodeAccountingBreach ErrorCode = "ACCOUNTING_BREACH"

	// ErrCodeRegistryCorrupt indicates the org registry's forward and
	// reverse mappings diverged.
	ErrCodeRegistryCorrupt ErrorCode = "REGISTRY_CORRUPT"
)

// PipelineError is a fatal error detected during pipeline execution.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Details map[string]string
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsAccountingBreach reports whether err is an accounting invariant
// violation. Uses errors.As to handle wrapped errors.
func IsAccountingBreach(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeAccountingBreach
	}
	return false
}

// IsRegistryCorrupt reports whether err is a registry consistency fault.
func IsRegistryCorrupt(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeRegistryCorrupt
	}
	return false
}

func newAccountingError(sends, enriched, failures int) *PipelineError {
	return &PipelineError{
		Code: ErrCodeAccountingBreach,
		Message: fmt.Sprintf("record accounting does not balance: %d sends != %d enriched + %d failures",
			sends, enriched, failures),
		Details: map[string]string{
			"sends":    fmt.Sprintf("%d", sends),
			"enriched": fmt.Sprintf("%d", enriched),
			"failures": fmt.Sprintf("%d", failures),
		},
	}
}

func newRegistryError(forward, reverse int) *PipelineError {
	return &PipelineError{
		Code: ErrCodeRegistryCorrupt,
		Message: fmt.Sprintf("org registry mappings diverged: %d forward entries, %d reverse entries",
			forward, reverse),
		Details: map[string]string{
			"forward": fmt.Sprintf("%d", forward),
			"reverse": fmt.Sprintf("%d", reverse),
		},
	}
}
