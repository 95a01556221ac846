package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/jsondb/internal/events"
	"github.com/roach88/jsondb/internal/record"
	"github.com/roach88/jsondb/internal/store"
	"github.com/roach88/jsondb/internal/testutil"
)

// Harness executes one scenario against its own engine.
type Harness struct {
	engine   *store.Engine
	keys     *testutil.SequenceGenerator
	recorder *testutil.EventRecorder
	seq      int64
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation:
//  1. Open the database with the scenario's indexes and create the table
//  2. Execute setup steps, failing on any error
//  3. Execute flow steps and check their expect clauses
//  4. Evaluate assertions against the final database and event log
//
// Step results render as follows: set and update produce "", push the
// generated key, delete and exists "true" or "false", get the document
// text ("" when absent), and lookup the matching ids joined by ",".
//
// The returned error reports problems running the scenario at all;
// expectation and assertion failures are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h := &Harness{
		keys:     testutil.NewSequenceGenerator(scenario.KeyPrefix),
		recorder: testutil.NewEventRecorder(),
	}

	engine, err := store.Open(ctx, ":memory:", store.Options{
		Indexes: scenario.Indexes,
		Bus:     h.recorder,
		Keys:    h.keys,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer engine.Close()
	h.engine = engine

	if err := engine.CreateTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	result := NewResult()

	for i, step := range scenario.Setup {
		ev, stepErr := h.execute(ctx, "setup", step)
		result.AddStep(ev, h.drain())
		if stepErr != nil {
			return nil, fmt.Errorf("setup[%d] %s %s failed: %w", i, step.Op, step.Path, stepErr)
		}
	}

	for i, step := range scenario.Flow {
		ev, stepErr := h.execute(ctx, "flow", step)
		result.AddStep(ev, h.drain())
		if msg := checkExpect(step, ev, stepErr); msg != "" {
			result.AddError(fmt.Sprintf("flow[%d] %s %s: %s", i, step.Op, ev.Path, msg))
		}
	}

	for i, assertion := range scenario.Assertions {
		if err := h.evaluate(ctx, result, assertion); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return result, nil
}

// drain returns and forgets the events recorded since the last call.
func (h *Harness) drain() []events.Event {
	evs := h.recorder.Events()
	h.recorder.Reset()
	return evs
}

func (h *Harness) execute(ctx context.Context, phase string, step Step) (TraceEvent, error) {
	h.seq++
	ev := TraceEvent{Seq: h.seq, Phase: phase, Op: step.Op, Path: step.Path}
	if step.Op == OpLookup {
		ev.Path = step.Collection + "#" + step.Property + "=" + step.Value
	}

	result, err := h.apply(ctx, step)
	if err != nil {
		ev.Error = errorCode(err)
		return ev, err
	}
	ev.Result = result
	return ev, nil
}

func (h *Harness) apply(ctx context.Context, step Step) (string, error) {
	switch step.Op {
	case OpSet:
		return "", h.engine.Set(ctx, step.Path, strings.NewReader(step.Doc))
	case OpUpdate:
		return "", h.engine.Update(ctx, step.Path, strings.NewReader(step.Doc))
	case OpPush:
		return h.engine.Push(ctx, step.Path, strings.NewReader(step.Doc))
	case OpDelete:
		removed, err := h.engine.Delete(ctx, step.Path)
		return strconv.FormatBool(removed), err
	case OpExists:
		found, err := h.engine.Exists(ctx, step.Path)
		return strconv.FormatBool(found), err
	case OpGet:
		opts, err := step.Options.GetOptions()
		if err != nil {
			return "", err
		}
		doc, _, err := h.engine.Get(ctx, step.Path, opts)
		return string(doc), err
	case OpLookup:
		ids, err := h.engine.FetchIDsByPropertyValue(ctx, step.Collection, step.Property, step.Value)
		return strings.Join(ids, ","), err
	default:
		return "", fmt.Errorf("unknown op %q", step.Op)
	}
}

func errorCode(err error) string {
	if code := record.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

// checkExpect returns a description of the mismatch, or "".
func checkExpect(step Step, ev TraceEvent, err error) string {
	want := step.Expect
	if want == nil {
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
		return ""
	}
	if want.Error != "" {
		if err == nil {
			return fmt.Sprintf("expected error %s, got result %q", want.Error, ev.Result)
		}
		if ev.Error != want.Error {
			return fmt.Sprintf("expected error %s, got %s", want.Error, ev.Error)
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("unexpected error: %v", err)
	}
	if ev.Result != *want.Result {
		return fmt.Sprintf("expected result %q, got %q", *want.Result, ev.Result)
	}
	return ""
}
