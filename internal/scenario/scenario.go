// Package scenario runs scripted setup-then-assert flows against a browser session.
//
// A Scenario is an ordered list of setup steps followed by cases. Each case may
// perform further steps before its check. Setup steps are assumed deterministic
// and are never retried; only checks marked Eventually are polled.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is a scenario lifecycle state
type State string

const (
	StateInit        State = "INIT"
	StateConfiguring State = "CONFIGURING"
	StateRendering   State = "RENDERING"
	StatePolling     State = "POLLING"
	StateAsserted    State = "ASSERTED"
)

var (
	// ErrSetup is matched by every setup step failure
	ErrSetup = errors.New("setup failed")
	// ErrNoAction marks a step or check built without a function
	ErrNoAction = errors.New("no action to run")
)

// SetupError reports the step that aborted a scenario
type SetupError struct {
	Step string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s at step %q: %v", ErrSetup, e.Step, e.Err)
}

func (e *SetupError) Unwrap() []error {
	return []error{ErrSetup, e.Err}
}

// Step is one setup action
type Step struct {
	Name    string
	Renders bool // the step triggers a chart render
	Run     func(ctx context.Context) error
}

// Configure returns a step that changes editor state
func Configure(name string, run func(ctx context.Context) error) Step {
	return Step{Name: name, Run: run}
}

// Render returns a step that triggers a chart render
func Render(name string, run func(ctx context.Context) error) Step {
	return Step{Name: name, Renders: true, Run: run}
}

// Check is the assertion at the end of a case
type Check struct {
	Name       string
	Eventually bool // poll under the retry policy instead of reading once
	Run        func(ctx context.Context) error
}

// Eventually returns a check polled until it passes or the retry budget runs out
func Eventually(name string, run func(ctx context.Context) error) Check {
	return Check{Name: name, Eventually: true, Run: run}
}

// Immediately returns a check evaluated exactly once
func Immediately(name string, run func(ctx context.Context) error) Check {
	return Check{Name: name, Run: run}
}

// Case is a named test within a scenario
type Case struct {
	Name  string
	Steps []Step
	Check Check
}

// Scenario is one setup-then-assert flow
type Scenario struct {
	Name  string
	Setup []Step
	Cases []Case
}

// CaseResult is the outcome of a single case
type CaseResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Result is the outcome of a scenario
type Result struct {
	RunID    string        `json:"run_id"`
	Scenario string        `json:"scenario"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	States   []State       `json:"states"`
	Cases    []CaseResult  `json:"cases"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Failures returns the errors of the scenario, setup first
func (r *Result) Failures() []error {
	var errs []error
	if r.Err != nil {
		errs = append(errs, r.Err)
	}
	for _, c := range r.Cases {
		if c.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, c.Err))
		}
	}
	return errs
}

func (r *Result) enter(s State) {
	if n := len(r.States); n > 0 && r.States[n-1] == s {
		return
	}
	r.States = append(r.States, s)
}

// Report aggregates the results of a run
type Report struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Results  []*Result     `json:"results"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
}

// OK reports whether every scenario passed
func (r *Report) OK() bool {
	return r.Failed == 0
}
