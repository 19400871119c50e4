package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/urlscan/internal/model"
)

// canceledMessage is the row error for URLs cut short by cancellation.
const canceledMessage = "canceled"

// Step is one stage of a per-URL pipeline.
type Step interface {
	// Do runs the step on scan. Failures of the URL itself are recorded
	// with scan.AddError and nil is returned; a non-nil error means the
	// step could not run at all.
	Do(ctx context.Context, scan *model.URLScan) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline executes steps in order on a single URLScan.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps running later steps after one returns an error.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError runs the remaining steps after a step error.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps on scan. The context is checked before each
// step; when it is done and nothing has been recorded yet, the row is
// marked canceled.
//
// Step errors are recorded on scan as well as returned.
func (p *Pipeline) Execute(ctx context.Context, scan *model.URLScan) error {
	var firstErr error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Debug("pipeline canceled",
				"step", step.Name(),
				"url", scan.URL,
				"reason", err,
			)
			if !scan.Failed() {
				scan.AddError(canceledMessage)
			}
			return err
		}

		if err := step.Do(ctx, scan); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"url", scan.URL,
				"error", err,
			)
			scan.AddError(err.Error())
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"url", scan.URL,
		)
	}

	return firstErr
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
