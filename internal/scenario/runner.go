package scenario

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/retry"
)

// FailureHook is called after a case or setup fails, e.g. to capture a screenshot
type FailureHook func(ctx context.Context, scenario, name string, err error)

// Runner executes scenarios sequentially. The browser session behind the steps
// is owned by the running scenario, so scenarios never overlap.
type Runner struct {
	logger    arbor.ILogger
	policy    retry.Policy
	filter    *regexp.Regexp
	onFailure FailureHook
}

// Option configures a Runner
type Option func(*Runner)

// WithFilter only runs scenarios whose name matches re
func WithFilter(re *regexp.Regexp) Option {
	return func(r *Runner) { r.filter = re }
}

// WithFailureHook registers a hook called on every failure
func WithFailureHook(hook FailureHook) Option {
	return func(r *Runner) { r.onFailure = hook }
}

// NewRunner creates a runner polling eventual checks under policy
func NewRunner(logger arbor.ILogger, policy retry.Policy, opts ...Option) *Runner {
	r := &Runner{
		logger: logger,
		policy: policy,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSetup executes steps strictly in order and aborts on the first failure.
// No rollback is attempted; scenarios re-establish state from scratch.
func (r *Runner) RunSetup(ctx context.Context, steps []Step) error {
	return r.runSteps(ctx, r.logger, nil, steps)
}

func (r *Runner) runSteps(ctx context.Context, logger arbor.ILogger, res *Result, steps []Step) error {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return &SetupError{Step: step.Name, Err: err}
		}
		if res != nil {
			if step.Renders {
				res.enter(StateRendering)
			} else {
				res.enter(StateConfiguring)
			}
		}

		if step.Run == nil {
			return &SetupError{Step: step.Name, Err: ErrNoAction}
		}

		logger.Debug().Int("index", i).Str("step", step.Name).Msg("Running step")
		if err := step.Run(ctx); err != nil {
			logger.Warn().Err(err).Str("step", step.Name).Msg("Step failed")
			return &SetupError{Step: step.Name, Err: err}
		}
	}
	return nil
}

// Run executes one scenario: setup, then each case's steps and check.
// A setup failure skips every case. A failing case does not stop later cases.
func (r *Runner) Run(ctx context.Context, sc Scenario) *Result {
	res := &Result{
		RunID:    uuid.New().String(),
		Scenario: sc.Name,
		Started:  time.Now(),
	}
	res.enter(StateInit)
	logger := r.logger.WithCorrelationId(res.RunID)

	logger.Info().Str("scenario", sc.Name).Int("cases", len(sc.Cases)).Msg("Scenario started")

	if err := r.runSteps(ctx, logger, res, sc.Setup); err != nil {
		res.Err = err
		res.Error = err.Error()
		res.Duration = time.Since(res.Started)
		r.failed(ctx, sc.Name, "setup", err)
		logger.Error().Err(err).Str("scenario", sc.Name).Msg("Scenario setup failed")
		return res
	}

	res.Passed = true
	for _, c := range sc.Cases {
		cr := r.runCase(ctx, logger, res, c)
		if !cr.Passed {
			res.Passed = false
			r.failed(ctx, sc.Name, c.Name, cr.Err)
		}
		res.Cases = append(res.Cases, cr)
	}
	res.Duration = time.Since(res.Started)

	logger.Info().
		Str("scenario", sc.Name).
		Bool("passed", res.Passed).
		Str("duration", res.Duration.Round(time.Millisecond).String()).
		Msg("Scenario finished")
	return res
}

func (r *Runner) runCase(ctx context.Context, logger arbor.ILogger, res *Result, c Case) CaseResult {
	start := time.Now()
	cr := CaseResult{Name: c.Name}

	err := r.runSteps(ctx, logger, res, c.Steps)
	if err == nil {
		err = r.check(ctx, logger, res, c.Check)
	}

	cr.Duration = time.Since(start)
	if err != nil {
		cr.Err = err
		cr.Error = err.Error()
		logger.Warn().Err(err).Str("case", c.Name).Msg("Case failed")
		return cr
	}
	cr.Passed = true
	logger.Info().Str("case", c.Name).Msg("Case passed")
	return cr
}

func (r *Runner) check(ctx context.Context, logger arbor.ILogger, res *Result, chk Check) error {
	if chk.Run == nil {
		return fmt.Errorf("check %q: %w", chk.Name, ErrNoAction)
	}
	defer res.enter(StateAsserted)

	if !chk.Eventually {
		return chk.Run(ctx)
	}
	res.enter(StatePolling)

	policy := r.policy
	policy.Notify = func(attempt int, err error) {
		logger.Debug().Int("attempt", attempt).Str("check", chk.Name).Err(err).Msg("Check not satisfied yet")
	}
	return retry.Do(ctx, policy, chk.Run)
}

func (r *Runner) failed(ctx context.Context, scenario, name string, err error) {
	if r.onFailure != nil {
		r.onFailure(ctx, scenario, name, err)
	}
}

// RunAll runs the scenarios one after another and aggregates a report
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) *Report {
	report := &Report{
		RunID:   uuid.New().String(),
		Started: time.Now(),
	}

	for _, sc := range scenarios {
		if r.filter != nil && !r.filter.MatchString(sc.Name) {
			r.logger.Debug().Str("scenario", sc.Name).Msg("Scenario skipped by filter")
			continue
		}
		res := r.Run(ctx, sc)
		report.Results = append(report.Results, res)
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	report.Duration = time.Since(report.Started)

	r.logger.Info().
		Int("passed", report.Passed).
		Int("failed", report.Failed).
		Msg("Run complete")
	return report
}
