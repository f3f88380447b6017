// Package summarize turns staged diffs into commit messages and commit
// histories into changelogs, chunking large inputs and summarizing the
// pieces in parallel before combining them.
package summarize

import "fmt"

// Phase identifies the pipeline stage an error belongs to.
type Phase string

// Pipeline phases.
const (
	PhaseInit   Phase = "init"
	PhaseDirect Phase = "direct"
	PhaseMap    Phase = "map"
	PhaseReduce Phase = "reduce"
)

// PipelineError tags a failure with the phase it occurred in. Map-phase
// chunk failures are absorbed as placeholders and never surface as a
// PipelineError unless every chunk fails.
type PipelineError struct {
	phase Phase
	err   error
}

// NewPipelineError creates a PipelineError.
func NewPipelineError(phase Phase, err error) *PipelineError {
	return &PipelineError{phase: phase, err: err}
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("summarization failed in %s phase: %v", e.phase, e.err)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error { return e.err }

// Phase returns the failed phase.
func (e *PipelineError) Phase() Phase { return e.phase }
