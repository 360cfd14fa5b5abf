package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docsql/internal/querysql"
)

// Scenario defines a conformance test scenario.
// A scenario runs a list of collection operations against a fresh table,
// checks each step's expectations, and asserts on the final table contents
// and the recorded trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Table is the document table name. Defaults to "documents".
	Table string `yaml:"table,omitempty"`

	// IDPrefix prefixes generated ids ("<prefix>-1", ...). Defaults to "doc".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// Steps are the operations to execute, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final table contents and the trace.
	// Supported types: count, contains, trace_count, trace_order
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is a single collection operation.
//
// Document-valued fields are kept as YAML nodes so that key order survives
// decoding; sort specs depend on it.
type Step struct {
	// Op is one of insert_one, find, update_one, update_many, delete_one,
	// delete_many.
	Op string `yaml:"op"`

	// Document is the document to insert (insert_one).
	Document yaml.Node `yaml:"document,omitempty"`

	// Filter selects documents (all ops except insert_one).
	Filter yaml.Node `yaml:"filter,omitempty"`

	// Projection, Sort and Limit shape a find.
	Projection yaml.Node `yaml:"projection,omitempty"`
	Sort       yaml.Node `yaml:"sort,omitempty"`
	Limit      int64     `yaml:"limit,omitempty"`

	// Update is the update document (update_one, update_many).
	Update yaml.Node `yaml:"update,omitempty"`

	// Upsert inserts a document when an update matches nothing.
	Upsert bool `yaml:"upsert,omitempty"`

	// Expect validates the step outcome. If nil, the step must not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Result contains expected result fields (insertedId, deletedCount,
	// matchedCount, modifiedCount, upsertedId).
	// This is a subset match - only specified fields are validated.
	Result map[string]any `yaml:"result,omitempty"`

	// Docs is the exact list of documents a find returns. Order is checked
	// only when the step has a sort.
	Docs yaml.Node `yaml:"docs,omitempty"`

	// Error is the expected failure code: a ParseError code such as
	// INVALID_OPERATOR, or DUPLICATE_KEY or UNSAFE_UPSERT.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "count": Find(filter) returns exactly Count documents
	// - "contains": some document matching filter has the Document fields
	// - "trace_count": Op appears exactly Count times in the trace
	// - "trace_order": Ops appear in the trace in this order
	Type string `yaml:"type"`

	// Filter selects documents (count, contains). Empty matches all.
	Filter yaml.Node `yaml:"filter,omitempty"`

	// Document contains expected field values (contains).
	// Subset match - only specified fields are validated.
	Document yaml.Node `yaml:"document,omitempty"`

	// Count is the expected number of documents or trace entries.
	Count int `yaml:"count,omitempty"`

	// Op is the operation name (trace_count).
	Op string `yaml:"op,omitempty"`

	// Ops is the expected operation order (trace_order).
	Ops []string `yaml:"ops,omitempty"`
}

// Step operation names.
const (
	OpInsertOne  = "insert_one"
	OpFind       = "find"
	OpUpdateOne  = "update_one"
	OpUpdateMany = "update_many"
	OpDeleteOne  = "delete_one"
	OpDeleteMany = "delete_many"
)

// Assertion type constants.
const (
	AssertCount      = "count"
	AssertContains   = "contains"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file
// name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Table != "" {
		if err := querysql.ValidateTable(s.Table); err != nil {
			return err
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step carries the fields its op needs.
func validateStep(index int, s *Step) error {
	switch s.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpInsertOne:
		if isAbsent(&s.Document) {
			return fmt.Errorf("steps[%d]: document is required for insert_one", index)
		}
	case OpUpdateOne, OpUpdateMany:
		if isAbsent(&s.Update) {
			return fmt.Errorf("steps[%d]: update is required for %s", index, s.Op)
		}
	case OpFind, OpDeleteOne, OpDeleteMany:
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}

	if s.Op != OpFind {
		if !isAbsent(&s.Projection) || !isAbsent(&s.Sort) || s.Limit != 0 {
			return fmt.Errorf("steps[%d]: projection, sort and limit only apply to find", index)
		}
	}
	if s.Upsert && s.Op != OpUpdateOne && s.Op != OpUpdateMany {
		return fmt.Errorf("steps[%d]: upsert only applies to updates", index)
	}

	if s.Expect != nil {
		if s.Expect.Error != "" && (s.Expect.Result != nil || !isAbsent(&s.Expect.Docs)) {
			return fmt.Errorf("steps[%d].expect: error excludes result and docs", index)
		}
		if !isAbsent(&s.Expect.Docs) && s.Op != OpFind {
			return fmt.Errorf("steps[%d].expect: docs only applies to find", index)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertContains:
		if isAbsent(&a.Document) {
			return fmt.Errorf("assertions[%d]: document is required for contains", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
