package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docsql/internal/collection"
	"github.com/roach88/docsql/internal/doc"
	"github.com/roach88/docsql/internal/store"
	"github.com/roach88/docsql/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenario steps against one collection with deterministic ids.
type Harness struct {
	coll   *collection.Collection
	logger *slog.Logger
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes step and statement logs to l. Logs are discarded by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with
// sequential ids so traces are reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database and table
// 2. Execute steps, validating each expect clause
// 3. Evaluate assertions against the final table and the trace
// 4. Return result with pass/fail, trace, and errors
//
// A step that fails or mismatches its expect clause is recorded in
// Result.Errors. The returned error is reserved for scenarios that cannot be
// executed at all.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(ctx, store.Config{
		Driver: "sqlite3",
		DSN:    ":memory:",
		Table:  scenario.Table,
		Logger: o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		coll: collection.New(st,
			collection.WithIDGenerator(testutil.NewSequentialIDs(scenario.IDPrefix)),
			collection.WithLogger(o.logger),
		),
		logger: o.logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, errMsg := range EvaluateAssertions(ctx, result, scenario.Assertions, h.coll) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep runs one step, records it in the trace and checks its expect
// clause. Errors are returned only for steps whose YAML cannot be converted.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	args, err := stepArgs(step)
	if err != nil {
		return err
	}
	spec := args.Map()

	var outcome any
	switch step.Op {
	case OpInsertOne:
		outcome, err = h.coll.InsertOne(ctx, spec["document"])
	case OpFind:
		cur := h.coll.Find(spec["filter"], spec["projection"]).Limit(step.Limit)
		if s, ok := spec["sort"]; ok {
			cur = cur.Sort(s)
		}
		outcome, err = cur.ToArray(ctx)
	case OpUpdateOne:
		outcome, err = h.coll.UpdateOne(ctx, spec["filter"], spec["update"], collection.UpdateOptions{Upsert: step.Upsert})
	case OpUpdateMany:
		outcome, err = h.coll.UpdateMany(ctx, spec["filter"], spec["update"], collection.UpdateOptions{Upsert: step.Upsert})
	case OpDeleteOne:
		outcome, err = h.coll.DeleteOne(ctx, spec["filter"])
	case OpDeleteMany:
		outcome, err = h.coll.DeleteMany(ctx, spec["filter"])
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	event := TraceEvent{Op: step.Op, Args: args}
	if err != nil {
		event.Error = collection.ErrorCode(err)
	} else {
		event.Result = outcome
	}
	result.AddTrace(event)

	h.logger.Info("step completed",
		"step", i,
		"op", step.Op,
		"error", event.Error,
	)

	for _, msg := range checkExpect(step, outcome, err) {
		result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Op, msg))
	}
	return nil
}

// stepArgs collects the present spec fields of a step in a fixed order.
func stepArgs(step Step) (doc.D, error) {
	args := doc.D{}
	fields := []struct {
		name string
		node *yaml.Node
	}{
		{"document", &step.Document},
		{"filter", &step.Filter},
		{"projection", &step.Projection},
		{"sort", &step.Sort},
		{"update", &step.Update},
	}
	for _, f := range fields {
		if isAbsent(f.node) {
			continue
		}
		v, err := nodeValue(f.node)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		args = append(args, doc.E{Key: f.name, Value: v})
	}
	if step.Limit != 0 {
		args = append(args, doc.E{Key: "limit", Value: step.Limit})
	}
	if step.Upsert {
		args = append(args, doc.E{Key: "upsert", Value: true})
	}
	return args, nil
}

// checkExpect compares a step outcome with its expect clause and returns
// the mismatches.
func checkExpect(step Step, outcome any, err error) []string {
	exp := step.Expect
	if exp == nil || exp.Error == "" {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
	}
	if exp == nil {
		return nil
	}

	if exp.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected error %s, got success", exp.Error)}
		}
		if code := collection.ErrorCode(err); code != exp.Error {
			return []string{fmt.Sprintf("expected error %s, got %s (%v)", exp.Error, code, err)}
		}
		return nil
	}

	var mismatches []string
	if exp.Result != nil {
		mismatches = append(mismatches, compareResult(exp.Result, outcome)...)
	}
	if !isAbsent(&exp.Docs) {
		docs, _ := outcome.([]doc.M)
		if msg := compareDocs(&exp.Docs, docs, !isAbsent(&step.Sort)); msg != "" {
			mismatches = append(mismatches, msg)
		}
	}
	return mismatches
}

// compareResult checks expected result fields against the operation result
// (subset match).
func compareResult(expected map[string]any, outcome any) []string {
	want, err := normalize(expected)
	if err != nil {
		return []string{fmt.Sprintf("invalid expected result: %v", err)}
	}
	got, err := normalize(outcome)
	if err != nil {
		return []string{fmt.Sprintf("cannot encode result: %v", err)}
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		if !reflect.DeepEqual(want[k], got[k]) {
			mismatches = append(mismatches, fmt.Sprintf("result %s: expected %v, got %v", k, want[k], got[k]))
		}
	}
	return mismatches
}

// compareDocs checks the exact documents a find returned. Without a sort,
// both lists are compared in canonical order.
func compareDocs(expected *yaml.Node, got []doc.M, ordered bool) string {
	want, err := nodeDocuments(expected)
	if err != nil {
		return fmt.Sprintf("invalid expected docs: %v", err)
	}
	if want == nil {
		want = []doc.M{}
	}
	if got == nil {
		got = []doc.M{}
	}

	if !ordered {
		want = canonicalOrder(want)
		got = canonicalOrder(got)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		return fmt.Sprintf("docs mismatch (-want +got):\n%s", diff)
	}
	return ""
}

func canonicalOrder(docs []doc.M) []doc.M {
	keyed := make([]struct {
		key string
		doc doc.M
	}, len(docs))
	for i, d := range docs {
		text, _ := doc.Encode(d)
		keyed[i].key, keyed[i].doc = text, d
	}
	sort.Slice(keyed, func(i, j int) bool { return keyed[i].key < keyed[j].key })

	out := make([]doc.M, len(docs))
	for i, k := range keyed {
		out[i] = k.doc
	}
	return out
}
