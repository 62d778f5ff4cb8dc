// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"
	"fmt"

	"github.com/pdiddy/content-engine/pkg/types"
)

var (
	// ErrInvalidRequest is returned for requests the pipeline cannot start.
	ErrInvalidRequest = errors.New("invalid content request")

	// ErrPolicy matches every *PolicyViolationError.
	ErrPolicy = errors.New("seo edit policy violated")
)

// Failure reasons reported on StageError and in metrics.
const (
	ReasonBackend = "backend"
	ReasonFormat  = "format"
	ReasonPolicy  = "policy"
	ReasonPrompt  = "prompt"
)

// StageError reports the stage at which a run stopped.
type StageError struct {
	Stage  types.Stage
	Reason string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Reason, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// PolicyViolationError reports an SEO output that changed more than the
// stage is allowed to touch.
type PolicyViolationError struct {
	Reason string
}

func (e *PolicyViolationError) Error() string {
	return "seo edit policy: " + e.Reason
}

// Is reports whether target is ErrPolicy.
func (e *PolicyViolationError) Is(target error) bool { return target == ErrPolicy }

func reasonFor(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ReasonBackend
}
