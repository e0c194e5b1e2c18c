// Copyright Project TinyLB Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scenario sequences the steps of one end-to-end verification
// run. Steps execute strictly in order, one at a time; the first
// failure halts the pipeline; cleanup runs unconditionally afterwards.
// The suite is single-flow on purpose: concurrent polling would only
// add non-determinism to a correctness check.
package scenario

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Step is one named unit of the pipeline. Run either completes the
// step or returns the error that ends the scenario.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// StepOutcome records how one step went. Diagnostics carries the
// failure detail, one line per message, so a batch of invariant
// violations survives into the summary intact. Skipped marks steps
// that never ran: everything after a failure, and cleanup when it was
// skipped by request.
type StepOutcome struct {
	Name        string
	Duration    time.Duration
	Passed      bool
	Skipped     bool
	Diagnostics []string
}

// Result is the ordered log of a scenario run, one outcome per
// configured step. Steps the run never reached appear as skipped, and
// cleanup's outcome is always present, whether the run passed,
// failed, or was interrupted.
type Result struct {
	Steps      []StepOutcome
	Passed     bool
	FailedStep string
	Reason     string
}

// cleanupTimeout bounds the best-effort cleanup attempt so an
// interrupted run still exits promptly.
const cleanupTimeout = 2 * time.Minute

// Pipeline runs a fixed step sequence followed by an unconditional
// cleanup step.
type Pipeline struct {
	Log logrus.FieldLogger

	Steps   []Step
	Cleanup Step

	// SkipCleanup records the cleanup step as skipped instead of
	// running it. The step still appears in the result so a summary
	// never silently omits it.
	SkipCleanup bool
}

// Run executes the pipeline. A step failure or an interrupt stops the
// main sequence immediately; cleanup is then attempted on a fresh
// context so it is not starved by the cancellation that stopped the
// run. Cleanup failures are logged and recorded but never change the
// scenario verdict.
func (p *Pipeline) Run(ctx context.Context) Result {
	result := Result{Passed: true}

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			p.Log.WithField("step", step.Name).Warn("interrupted before step")
			result.Passed = false
			result.FailedStep = step.Name
			result.Reason = err.Error()
			result.Steps = append(result.Steps, p.unreachedFrom(i)...)
			break
		}

		p.Log.WithField("step", step.Name).Info("running step")
		start := time.Now()
		err := step.Run(ctx)
		outcome := StepOutcome{
			Name:     step.Name,
			Duration: time.Since(start),
			Passed:   err == nil,
		}
		if err != nil {
			outcome.Diagnostics = strings.Split(err.Error(), "\n")
			result.Steps = append(result.Steps, outcome)
			result.Passed = false
			result.FailedStep = step.Name
			result.Reason = err.Error()
			p.Log.WithField("step", step.Name).WithError(err).Error("step failed")
			result.Steps = append(result.Steps, p.unreachedFrom(i+1)...)
			break
		}
		result.Steps = append(result.Steps, outcome)
		p.Log.WithFields(logrus.Fields{
			"step":     step.Name,
			"duration": outcome.Duration.Round(time.Millisecond),
		}).Info("step passed")
	}

	result.Steps = append(result.Steps, p.runCleanup())
	return result
}

// unreachedFrom records the steps a halted run never executed, so the
// summary always shows the full pipeline.
func (p *Pipeline) unreachedFrom(i int) []StepOutcome {
	outcomes := make([]StepOutcome, 0, len(p.Steps)-i)
	for _, step := range p.Steps[i:] {
		outcomes = append(outcomes, StepOutcome{Name: step.Name, Skipped: true})
	}
	return outcomes
}

func (p *Pipeline) runCleanup() StepOutcome {
	if p.Cleanup.Run == nil {
		return StepOutcome{Name: "Cleanup", Passed: true, Skipped: true}
	}

	if p.SkipCleanup {
		p.Log.WithField("step", p.Cleanup.Name).Warn("cleanup skipped by request, resources left behind")
		return StepOutcome{Name: p.Cleanup.Name, Passed: true, Skipped: true}
	}

	// Cleanup must run even when the scenario context was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	p.Log.WithField("step", p.Cleanup.Name).Info("running cleanup")
	start := time.Now()
	err := p.Cleanup.Run(ctx)
	outcome := StepOutcome{
		Name:     p.Cleanup.Name,
		Duration: time.Since(start),
		Passed:   err == nil,
	}
	if err != nil {
		// Best effort only: log it, record it, move on.
		outcome.Diagnostics = strings.Split(err.Error(), "\n")
		p.Log.WithField("step", p.Cleanup.Name).WithError(err).Warn("cleanup failed")
	}
	return outcome
}
