package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type Policy int

const (
	// Primary steps must all succeed or the delivery is reported failed.
	Primary Policy = iota
	// BestEffort step failures are logged and collected; the saga continues.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best_effort"
	}
	return "primary"
}

type Step struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

type StepFailure struct {
	Step string
	Err  error
}

type SagaReport struct {
	Completed []string
	Failures  []StepFailure
}

// StepError is returned when a primary step fails. Completed lists the steps
// that had already succeeded and were not compensated.
type StepError struct {
	Step      string
	Completed []string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Saga runs ordered steps without a surrounding transaction.
type Saga struct {
	log   *zap.Logger
	steps []Step
}

func NewSaga(log *zap.Logger) *Saga {
	return &Saga{log: log}
}

func (s *Saga) Primary(name string, run func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Policy: Primary, Run: run})
	return s
}

func (s *Saga) BestEffort(name string, run func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Policy: BestEffort, Run: run})
	return s
}

func (s *Saga) Run(ctx context.Context) (SagaReport, error) {
	var report SagaReport
	for _, step := range s.steps {
		err := step.Run(ctx)
		if err == nil {
			report.Completed = append(report.Completed, step.Name)
			continue
		}

		if step.Policy == Primary {
			return report, &StepError{
				Step:      step.Name,
				Completed: append([]string(nil), report.Completed...),
				Err:       err,
			}
		}

		s.log.Warn("best-effort step failed",
			zap.String("step", step.Name),
			zap.Error(err),
		)
		report.Failures = append(report.Failures, StepFailure{Step: step.Name, Err: err})
	}
	return report, nil
}
