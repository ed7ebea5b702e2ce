package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Step is one unit of a multi-step write. Compensate, when set, undoes Run
// and is invoked only for steps that completed.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

type StepFailure struct {
	Name string
	Err  error
}

// StepReport records how far a Steps execution got.
type StepReport struct {
	Completed   []string
	Failed      []StepFailure
	Compensated []string
}

// StepError is returned when at least one step fails. It carries the report
// so callers can tell exactly what was left applied.
type StepError struct {
	Report          StepReport
	CompensationErr error
}

func (e *StepError) Error() string {
	failed := make([]string, 0, len(e.Report.Failed))
	for _, f := range e.Report.Failed {
		failed = append(failed, fmt.Sprintf("%s: %v", f.Name, f.Err))
	}
	msg := "step failed: " + strings.Join(failed, "; ")
	if len(e.Report.Completed) > 0 {
		msg += fmt.Sprintf(" (completed: %s)", strings.Join(e.Report.Completed, ", "))
	}
	if e.CompensationErr != nil {
		msg += fmt.Sprintf("; compensation failed: %v", e.CompensationErr)
	}
	return msg
}

func (e *StepError) Unwrap() []error {
	errs := make([]error, 0, len(e.Report.Failed)+1)
	for _, f := range e.Report.Failed {
		errs = append(errs, f.Err)
	}
	if e.CompensationErr != nil {
		errs = append(errs, e.CompensationErr)
	}
	return errs
}

// FirstFailure returns the name of the first failed step.
func (e *StepError) FirstFailure() string {
	if len(e.Report.Failed) == 0 {
		return ""
	}
	return e.Report.Failed[0].Name
}

// Steps runs a list of steps in order.
type Steps struct {
	steps []Step

	// RunAll keeps going after a failure so every result is collected.
	RunAll bool
	// Compensate reverses completed steps, newest first, after a failure.
	Compensate bool
}

func (s *Steps) Add(name string, run func(ctx context.Context) error) *Steps {
	return s.AddStep(Step{Name: name, Run: run})
}

func (s *Steps) AddStep(step Step) *Steps {
	s.steps = append(s.steps, step)
	return s
}

func (s *Steps) Len() int { return len(s.steps) }

func (s *Steps) Execute(ctx context.Context) (StepReport, error) {
	var report StepReport
	var done []Step

	for _, step := range s.steps {
		if err := step.Run(ctx); err != nil {
			report.Failed = append(report.Failed, StepFailure{Name: step.Name, Err: err})
			if !s.RunAll {
				break
			}
			continue
		}
		report.Completed = append(report.Completed, step.Name)
		done = append(done, step)
	}

	if len(report.Failed) == 0 {
		return report, nil
	}

	stepErr := &StepError{}
	if s.Compensate {
		report.Compensated, stepErr.CompensationErr = compensate(ctx, done)
	}
	stepErr.Report = report
	return report, stepErr
}

func compensate(ctx context.Context, done []Step) ([]string, error) {
	var names []string
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
			continue
		}
		names = append(names, step.Name)
	}
	return names, errors.Join(errs...)
}
