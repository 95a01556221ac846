package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/jsondb/internal/record"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Indexes are declared on the engine before any step runs.
	Indexes []record.Index `yaml:"indexes,omitempty"`

	// Setup establishes initial state. A failing setup step fails the
	// scenario.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main list of operations.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state and the published events.
	Assertions []Assertion `yaml:"assertions"`

	// KeyPrefix names the keys generated by push. Defaults to "key".
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

// Step is one store operation.
type Step struct {
	// Op is set, update, push, delete, get, exists or lookup.
	Op string `yaml:"op"`

	// Path is the logical path the operation targets. Lookups use
	// Collection instead.
	Path string `yaml:"path,omitempty"`

	// Doc is the JSON body of set, update and push.
	Doc string `yaml:"doc,omitempty"`

	// Options apply to get.
	Options *GetStep `yaml:"options,omitempty"`

	// Collection, Property and Value are the lookup arguments.
	Collection string `yaml:"collection,omitempty"`
	Property   string `yaml:"property,omitempty"`
	Value      string `yaml:"value,omitempty"`

	// Expect validates the step outcome. If nil the step must not fail.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// GetStep mirrors record.GetOptions in scenario form.
type GetStep struct {
	Order      string `yaml:"order,omitempty"`
	StartAt    string `yaml:"start_at,omitempty"`
	StartAfter string `yaml:"start_after,omitempty"`
	EndAt      string `yaml:"end_at,omitempty"`
	EndBefore  string `yaml:"end_before,omitempty"`
	Depth      int    `yaml:"depth,omitempty"`
	Limit      int    `yaml:"limit,omitempty"`
	Pretty     bool   `yaml:"pretty,omitempty"`
	Callback   string `yaml:"callback,omitempty"`
}

// GetOptions converts the step options.
func (g *GetStep) GetOptions() (record.GetOptions, error) {
	if g == nil {
		return record.GetOptions{}, nil
	}
	order, err := record.ParseOrder(g.Order)
	if err != nil {
		return record.GetOptions{}, err
	}
	return record.GetOptions{
		Order:        order,
		StartAt:      g.StartAt,
		StartAfter:   g.StartAfter,
		EndAt:        g.EndAt,
		EndBefore:    g.EndBefore,
		Depth:        g.Depth,
		LimitToFirst: g.Limit,
		PrettyPrint:  g.Pretty,
		Callback:     g.Callback,
	}, nil
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Result is the exact textual result of the step. See Run for the
	// rendering of each operation.
	Result *string `yaml:"result,omitempty"`

	// Error is the expected record.ErrorCode.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates final state or published events.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Path is the document checked by document and absent.
	Path string `yaml:"path,omitempty"`

	// Expect is the exact document text for document.
	Expect string `yaml:"expect,omitempty"`

	// Topic and Count are used by event_count.
	Topic string `yaml:"topic,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Payloads is the expected event payload order for event_order.
	Payloads []string `yaml:"payloads,omitempty"`
}

// Assertion type constants.
const (
	AssertDocument   = "document"
	AssertAbsent     = "absent"
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
)

// Step operations.
const (
	OpSet    = "set"
	OpUpdate = "update"
	OpPush   = "push"
	OpDelete = "delete"
	OpGet    = "get"
	OpExists = "exists"
	OpLookup = "lookup"
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
	// Strict decoding catches typos like "assertion:" vs "assertions:".
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, idx := range s.Indexes {
		if idx.Field == "" {
			return fmt.Errorf("indexes[%d]: field is required", i)
		}
	}
	for i, step := range s.Setup {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(&assertion); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(s *Step) error {
	switch s.Op {
	case OpSet, OpUpdate, OpPush:
		if s.Doc == "" {
			return fmt.Errorf("doc is required for %s", s.Op)
		}
	case OpDelete, OpGet, OpExists:
	case OpLookup:
		if s.Property == "" {
			return fmt.Errorf("property is required for lookup")
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	if s.Options != nil && s.Op != OpGet {
		return fmt.Errorf("options are only valid for get")
	}
	if s.Expect != nil && s.Expect.Result == nil && s.Expect.Error == "" {
		return fmt.Errorf("expect: result or error is required")
	}
	return nil
}

func validateAssertion(a *Assertion) error {
	switch a.Type {
	case AssertDocument:
		if a.Expect == "" {
			return fmt.Errorf("expect is required for document")
		}
	case AssertAbsent:
	case AssertEventCount:
		if a.Topic == "" {
			return fmt.Errorf("topic is required for event_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for event_count")
		}
	case AssertEventOrder:
		if len(a.Payloads) == 0 {
			return fmt.Errorf("payloads list is required for event_order")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
