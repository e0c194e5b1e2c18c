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

// Package poll implements the bounded wait-until-converged primitive
// shared by every wait helper in the suite. A step distinguishes
// "not there yet" (retried until the deadline) from hard failure
// (surfaced immediately, never retried).
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Step inspects the world once. It returns done=true when the awaited
// condition holds. When done=false, reason describes what is still
// missing and the step is retried on the target's interval. A non-nil
// error aborts the poll immediately; absence of the awaited resource
// is expected and must be reported as done=false, not as an error.
type Step func(ctx context.Context) (done bool, reason string, err error)

// Target describes one bounded wait: what to check, how often, and for
// how long. Targets are built fresh per wait and discarded afterwards.
type Target struct {
	// Name identifies the target in errors and logs, e.g.
	// "route tinylb-test-gateway-istio".
	Name string

	// Interval is the fixed delay between attempts. No backoff; the
	// timeouts in play are short enough that a constant cadence keeps
	// failure timing predictable.
	Interval time.Duration

	// Timeout bounds the total wait, measured from the first attempt.
	Timeout time.Duration

	Step Step
}

// TimeoutError reports that a target did not converge before its
// deadline. LastReason carries the most recent not-yet reason so the
// failure is diagnosable without re-running.
type TimeoutError struct {
	Target     string
	Attempts   int
	LastReason string
}

func (e *TimeoutError) Error() string {
	if e.LastReason == "" {
		return fmt.Sprintf("timed out waiting for %s after %d attempts", e.Target, e.Attempts)
	}
	return fmt.Sprintf("timed out waiting for %s after %d attempts: %s", e.Target, e.Attempts, e.LastReason)
}

// fatalError marks a condition that is structurally incapable of
// becoming true, as opposed to one that has not become true yet.
type fatalError struct {
	reason string
}

func (e *fatalError) Error() string { return e.reason }

// Fatal wraps reason as a non-retryable step error. Use it when
// continuing to poll cannot possibly succeed, for example when a
// correlated object exists but names a different owner.
func Fatal(format string, args ...any) error {
	return &fatalError{reason: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err was produced by Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// Until runs target.Step until it reports done, returns an error, or
// the timeout elapses. The first attempt is made immediately, so a
// target that is already converged returns without sleeping. Step
// errors propagate unwrapped and end the poll at the attempt that
// raised them.
func Until(ctx context.Context, target Target) error {
	if target.Step == nil {
		return fmt.Errorf("poll target %q has no step", target.Name)
	}
	if target.Timeout <= 0 {
		return fmt.Errorf("poll target %q has non-positive timeout %s", target.Name, target.Timeout)
	}
	if target.Interval <= 0 || target.Interval > target.Timeout {
		return fmt.Errorf("poll target %q has interval %s outside (0, %s]", target.Name, target.Interval, target.Timeout)
	}

	var (
		attempts   int
		lastReason string
		stepErr    error
	)

	err := wait.PollUntilContextTimeout(ctx, target.Interval, target.Timeout, true, func(ctx context.Context) (bool, error) {
		attempts++
		done, reason, err := target.Step(ctx)
		if err != nil {
			stepErr = err
			return false, err
		}
		if !done {
			lastReason = reason
		}
		return done, nil
	})
	if err == nil {
		return nil
	}
	if stepErr != nil {
		return stepErr
	}
	// The wait package reports both cancellation and deadline expiry
	// as an interruption; an interrupt from the caller's context is
	// not a convergence timeout.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if wait.Interrupted(err) {
		return &TimeoutError{
			Target:     target.Name,
			Attempts:   attempts,
			LastReason: lastReason,
		}
	}
	return err
}
