package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/docsql/internal/collection"
	"github.com/roach88/docsql/internal/doc"
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

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			args, _ := json.Marshal(event.Args)
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Op, args)
		}
	}

	return buf.String()
}

// assertCount checks how many documents match the assertion filter.
func assertCount(ctx context.Context, coll *collection.Collection, assertion Assertion) error {
	filter, err := nodeValue(&assertion.Filter)
	if err != nil {
		return fmt.Errorf("count filter: %w", err)
	}
	docs, err := coll.Find(filter, nil).ToArray(ctx)
	if err != nil {
		return fmt.Errorf("count query: %w", err)
	}

	if len(docs) != assertion.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d documents matching %s", assertion.Count, describe(filter)),
			Actual:   fmt.Sprintf("%d documents", len(docs)),
		}
	}
	return nil
}

// assertContains checks that some document matching the filter carries the
// expected fields.
func assertContains(ctx context.Context, coll *collection.Collection, assertion Assertion) error {
	filter, err := nodeValue(&assertion.Filter)
	if err != nil {
		return fmt.Errorf("contains filter: %w", err)
	}
	want, err := nodeDocument(&assertion.Document)
	if err != nil {
		return fmt.Errorf("contains document: %w", err)
	}
	expected, err := normalize(want)
	if err != nil {
		return fmt.Errorf("contains document: %w", err)
	}

	docs, err := coll.Find(filter, nil).ToArray(ctx)
	if err != nil {
		return fmt.Errorf("contains query: %w", err)
	}

	for _, d := range docs {
		if matchFields(d, expected) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertContains,
		Expected: fmt.Sprintf("a document matching %s with %s", describe(filter), describe(expected)),
		Actual:   fmt.Sprintf("%d matching documents, none with those fields", len(docs)),
	}
}

// assertTraceCount checks if the op appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks if ops appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected op
	positions := make(map[string]int)
	for i, event := range trace {
		for _, op := range assertion.Ops {
			if event.Op == op && positions[op] == 0 {
				positions[op] = i + 1 // 1-indexed for readability
			}
		}
	}

	// Step 2: Verify all ops found
	for _, op := range assertion.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", assertion.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Ops); i++ {
		prev := assertion.Ops[i-1]
		curr := assertion.Ops[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// matchFields checks if actual contains all expected fields with equal
// values. Extra fields in actual are OK (subset match).
func matchFields(actual, expected doc.M) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// describe renders a spec value as compact JSON for messages.
func describe(v any) string {
	if v == nil {
		return "{}"
	}
	text, err := doc.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return text
}

// EvaluateAssertions evaluates all assertions against the result and the
// collection's final contents.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, coll *collection.Collection) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCount:
			err = assertCount(ctx, coll, assertion)
		case AssertContains:
			err = assertContains(ctx, coll, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
