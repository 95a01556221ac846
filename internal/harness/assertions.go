package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/jsondb/internal/record"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		line := fmt.Sprintf("  [%d] %s %s", event.Seq, event.Op, event.Path)
		if event.Error != "" {
			line += " ! " + event.Error
		} else if event.Result != "" {
			line += " => " + event.Result
		}
		fmt.Fprintln(&buf, line)
	}

	return buf.String()
}

func (h *Harness) evaluate(ctx context.Context, result *Result, a Assertion) error {
	switch a.Type {
	case AssertDocument, AssertAbsent:
		return h.assertDocument(ctx, result.Trace, a)
	case AssertEventCount:
		return assertEventCount(result, a)
	case AssertEventOrder:
		return assertEventOrder(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertDocument reads the document at a.Path and compares its exact text.
// For absent, nothing may be stored there.
func (h *Harness) assertDocument(ctx context.Context, trace []TraceEvent, a Assertion) error {
	doc, ok, err := h.engine.Get(ctx, a.Path, record.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", a.Path, err)
	}

	if a.Type == AssertAbsent {
		if !ok {
			return nil
		}
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("nothing at %s", a.Path),
			Actual:   string(doc),
			Trace:    trace,
		}
	}

	actual := string(doc)
	if !ok {
		actual = "absent"
	}
	if !ok || actual != a.Expect {
		return &AssertionError{
			Type:     AssertDocument,
			Expected: fmt.Sprintf("%s at %s", a.Expect, a.Path),
			Actual:   actual,
			Trace:    trace,
		}
	}
	return nil
}

// assertEventCount checks that a.Topic was published exactly a.Count times.
func assertEventCount(result *Result, a Assertion) error {
	n := 0
	for _, e := range result.Events {
		if e.Topic == a.Topic {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%s published %d times", a.Topic, a.Count),
			Actual:   fmt.Sprintf("published %d times", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertEventOrder checks the payloads of all events, in publication order.
func assertEventOrder(result *Result, a Assertion) error {
	payloads := make([]string, len(result.Events))
	for i, e := range result.Events {
		payloads[i] = e.Payload
	}
	if !slices.Equal(payloads, a.Payloads) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("%v", a.Payloads),
			Actual:   fmt.Sprintf("%v", payloads),
			Trace:    result.Trace,
		}
	}
	return nil
}
