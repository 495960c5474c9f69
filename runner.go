package hivesim

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-hivesim/metrics"
	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

const noFailureMessage = "test failed without a failure message"

// runTest registers a test, runs its body in isolation and reports the result.
// Tests which do not match the test pattern are skipped without registration unless
// they are marked as AlwaysRun. In collect-only mode, tests are registered but only
// AlwaysRun bodies are executed.
func (sim *Simulation) runTest(ctx context.Context, suiteID types.SuiteID, suite Suite, info testInfo, body func(*T)) error {
	if !info.alwaysRun && !sim.matcher().Match(suite.Name, info.name) {
		sim.log.Debug("Skipping test", "suite", suite.Name, "test", info.name)
		sim.summary.recordSkip(suite.Name, info.name)
		return nil
	}

	testID, err := sim.api.StartTest(ctx, suiteID, types.TestRequest{Name: info.name, Description: info.desc})
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to start test %q: %w", info.name, err))
	}
	t := newT(ctx, sim, suiteID, testID, suite, info.name)
	t.log.Info("Test started")

	if sim.cfg.CollectOnly && !info.alwaysRun {
		body = func(*T) {}
	}
	start := time.Now()
	result := execute(t, body)
	duration := time.Since(start)

	t.log.Info("Test finished", "pass", result.Pass, "duration", duration)
	metrics.RecordTest(sim.runID, suite.Name, result.Pass, duration)
	sim.summary.recordResult(suite.Name, info.name, result, duration)

	if err := sim.api.EndTest(ctx, suiteID, testID, result); err != nil {
		return NewRuntimeError(fmt.Errorf("failed to report result of test %q: %w", info.name, err))
	}
	return nil
}

// execute runs body on its own goroutine and waits for it. A panic in the body, or
// an early exit through FailNow, fails the test instead of crashing the simulator.
func execute(t *T, body func(*T)) types.TestResult {
	done := make(chan struct{})
	go func() {
		defer close(done)
		completed := false
		defer func() {
			if completed {
				return
			}
			if r := recover(); r != nil {
				t.failPanic(r, debug.Stack())
				return
			}
			// runtime.Goexit, usually through FailNow.
			t.Fail()
		}()
		body(t)
		completed = true
	}()
	<-done
	return t.Result()
}

// panicMessage extracts a description from a recovered panic value.
func panicMessage(v any) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("unexpected panic value of type %T", v)
		}
	}()
	switch v := v.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("unexpected panic value of type %T: %v", v, v)
	}
}

// finalize enforces that failed results carry details.
func finalize(r types.TestResult) types.TestResult {
	if !r.Pass && strings.TrimSpace(r.Details) == "" {
		r.Details = noFailureMessage
	}
	return r
}
