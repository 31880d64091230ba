// Package jobspec implements the jobspec model (spec.md §6.1, "J"): the
// YAML-encoded resource-request tree, task list, and system attributes a
// caller submits to be matched against the resource graph.
//
// Grounded on the teacher's YAML-driven config loading idiom (viper +
// yaml.v3 used the same way in internal/config) and on
// original_source/resource/libjobspec's jobspec.cpp shape for the
// resources/tasks/attributes top-level layout and the count-operator
// grammar — that file lives under original_source but wasn't included
// among the files filtered into the retrieval pack, so the operator
// semantics below are taken directly from spec.md §6.1.
package jobspec

import (
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/khryptorgraphics/gridmatch/pkg/constraint"
	"github.com/khryptorgraphics/gridmatch/pkg/rgerrors"
)

// CountOperator is the arithmetic relating a Resource's count to its
// parent's multiplicity when the graph is expanded (spec.md §6.1, §9).
type CountOperator string

const (
	OpAdd CountOperator = "+"
	OpMul CountOperator = "*"
	OpPow CountOperator = "^"
)

// Count is the fully-normalized form of a Resource's count field: a plain
// integer n normalizes to {Min: n, Max: n, Operator: OpAdd, Operand: 1}.
type Count struct {
	Min      int64
	Max      int64
	Operator CountOperator
	Operand  int64
}

// Resource is one node of the resource-request tree.
type Resource struct {
	Type      string
	Count     Count
	Unit      string
	Label     string
	ID        string
	Exclusive bool
	With      []Resource
}

// TaskCount is a task's optional one-entry count override, e.g. {"node": 2}.
type TaskCount map[string]int64

// Task is one entry of the jobspec's task list.
type Task struct {
	Command      []string
	Slot         string
	Count        TaskCount
	Distribution string
	Attributes   map[string]interface{}
}

// SystemAttributes is attributes.system: duration, queue metadata, and the
// constraint tree that prunes candidate resources during traversal.
type SystemAttributes struct {
	Duration    float64
	Queue       string
	Cwd         string
	Environment map[string]string
	Constraints constraint.Constraint
	Optional    map[string]interface{}
}

// Jobspec is the parsed top-level document.
type Jobspec struct {
	Version    int
	Resources  []Resource
	Tasks      []Task
	Attributes SystemAttributes
}

// rawDoc mirrors the exactly-four-key top-level mapping before semantic
// validation and count normalization.
type rawDoc struct {
	Version   int                    `yaml:"version"`
	Resources []rawResource          `yaml:"resources"`
	Tasks     []rawTask              `yaml:"tasks"`
	Attrs     map[string]interface{} `yaml:"attributes"`
}

type rawResource struct {
	Type      string        `yaml:"type"`
	Count     interface{}   `yaml:"count"`
	Unit      string        `yaml:"unit"`
	Label     string        `yaml:"label"`
	ID        string        `yaml:"id"`
	Exclusive *bool         `yaml:"exclusive"`
	With      []rawResource `yaml:"with"`
}

type rawTask struct {
	Command      []string               `yaml:"command"`
	Slot         string                 `yaml:"slot"`
	Count        map[string]int64       `yaml:"count"`
	Distribution string                 `yaml:"distribution"`
	Attributes   map[string]interface{} `yaml:"attributes"`
}

// Parse decodes and validates a YAML-encoded jobspec document.
func Parse(data []byte) (*Jobspec, error) {
	var raw rawDoc
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, rgerrors.Wrap("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, err)
	}
	if raw.Version < 1 || raw.Version > 9999 {
		return nil, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "version must be in [1, 9999]")
	}
	if len(raw.Resources) == 0 {
		return nil, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "resources must not be empty")
	}

	resources := make([]Resource, 0, len(raw.Resources))
	for _, rr := range raw.Resources {
		r, err := parseResource(rr)
		if err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}

	tasks := make([]Task, 0, len(raw.Tasks))
	for _, rt := range raw.Tasks {
		tasks = append(tasks, Task{
			Command:      rt.Command,
			Slot:         rt.Slot,
			Count:        TaskCount(rt.Count),
			Distribution: rt.Distribution,
			Attributes:   rt.Attributes,
		})
	}

	attrs, err := parseSystemAttributes(raw.Attrs)
	if err != nil {
		return nil, err
	}

	return &Jobspec{
		Version:    raw.Version,
		Resources:  resources,
		Tasks:      tasks,
		Attributes: attrs,
	}, nil
}

func parseResource(rr rawResource) (Resource, error) {
	if rr.Type == "" {
		return Resource{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "resource.type is required")
	}
	if rr.Type == "slot" && rr.Label == "" {
		return Resource{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "slot resources require a label")
	}

	count, err := parseCount(rr.Count)
	if err != nil {
		return Resource{}, err
	}

	with := make([]Resource, 0, len(rr.With))
	for _, child := range rr.With {
		c, err := parseResource(child)
		if err != nil {
			return Resource{}, err
		}
		with = append(with, c)
	}

	exclusive := false
	if rr.Exclusive != nil {
		exclusive = *rr.Exclusive
	}

	return Resource{
		Type:      rr.Type,
		Count:     count,
		Unit:      rr.Unit,
		Label:     rr.Label,
		ID:        rr.ID,
		Exclusive: exclusive,
		With:      with,
	}, nil
}

func parseCount(raw interface{}) (Count, error) {
	switch v := raw.(type) {
	case nil:
		return Count{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "count is required")
	case int:
		return normalizePlainCount(int64(v))
	case int64:
		return normalizePlainCount(v)
	case map[string]interface{}:
		return parseCountMap(v)
	default:
		return Count{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "count must be an integer or a mapping")
	}
}

func normalizePlainCount(n int64) (Count, error) {
	if n < 0 {
		return Count{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "count must be nonnegative")
	}
	return Count{Min: n, Max: n, Operator: OpAdd, Operand: 1}, nil
}

func parseCountMap(m map[string]interface{}) (Count, error) {
	min, err := toInt64(m["min"])
	if err != nil || min < 1 {
		return Count{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "count.min must be >= 1")
	}
	max, err := toInt64(m["max"])
	if err != nil || max < min {
		return Count{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "count.max must be >= count.min")
	}
	opRaw, _ := m["operator"].(string)
	op := CountOperator(opRaw)
	if op == "" {
		op = OpAdd
	}
	operand, err := toInt64(m["operand"])
	if err != nil {
		operand = 1
	}
	switch op {
	case OpAdd:
		if operand < 1 {
			return Count{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "operand must be >= 1 for '+'")
		}
	case OpMul:
		if operand < 2 {
			return Count{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "operand must be >= 2 for '*'")
		}
	case OpPow:
		if operand < 2 {
			return Count{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "operand must be >= 2 for '^'")
		}
		if min < 2 {
			return Count{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "count.min must be >= 2 for '^'")
		}
	default:
		return Count{}, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "count.operator must be one of +, *, ^")
	}
	return Count{Min: min, Max: max, Operator: op, Operand: operand}, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, rgerrors.New("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, "expected an integer")
	}
}

func parseSystemAttributes(attrs map[string]interface{}) (SystemAttributes, error) {
	sys, _ := attrs["system"].(map[string]interface{})
	if sys == nil {
		return SystemAttributes{}, nil
	}

	out := SystemAttributes{}
	if d, ok := sys["duration"]; ok {
		switch v := d.(type) {
		case float64:
			out.Duration = v
		case int:
			out.Duration = float64(v)
		}
	}
	out.Queue, _ = sys["queue"].(string)
	out.Cwd, _ = sys["cwd"].(string)

	if env, ok := sys["environment"].(map[string]interface{}); ok {
		var typed map[string]string
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &typed,
		})
		if err != nil {
			return SystemAttributes{}, rgerrors.Wrap("jobspec.Parse", rgerrors.Internal, rgerrors.CodeEINTERNAL, err)
		}
		if err := decoder.Decode(env); err != nil {
			return SystemAttributes{}, rgerrors.Wrap("jobspec.Parse", rgerrors.InvalidInput, rgerrors.CodeEINVAL, err)
		}
		out.Environment = typed
	}

	if raw, ok := sys["constraints"].(map[string]interface{}); ok {
		c, err := constraint.Parse(raw)
		if err != nil {
			return SystemAttributes{}, err
		}
		out.Constraints = c
	}

	optional := make(map[string]interface{}, len(sys))
	for k, v := range sys {
		switch k {
		case "duration", "queue", "cwd", "environment", "constraints":
			continue
		default:
			optional[k] = v
		}
	}
	out.Optional = optional

	return out, nil
}
