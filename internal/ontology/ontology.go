// Package ontology holds the static attribute definitions that perceptions
// are collected against. The set is loaded once at startup and is append-only
// afterwards: existing definitions never change, new ones may be registered.
package ontology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AttributeType is a closed tag: the value comparator switches exhaustively
// over these cases.
type AttributeType string

const (
	TypeFreeText     AttributeType = "free_text"
	TypeSingleChoice AttributeType = "single_choice"
	TypeInteger      AttributeType = "integer"
	TypeReal         AttributeType = "real"
	TypeBoolean      AttributeType = "boolean"
	TypeDate         AttributeType = "date"
)

func (t AttributeType) Valid() bool {
	switch t {
	case TypeFreeText, TypeSingleChoice, TypeInteger, TypeReal, TypeBoolean, TypeDate:
		return true
	}
	return false
}

// EntityKind scopes which entities an attribute applies to.
type EntityKind string

const (
	KindTask   EntityKind = "task"
	KindPerson EntityKind = "person"
)

type Definition struct {
	Name          string        `yaml:"name"`
	Label         string        `yaml:"label"`
	Type          AttributeType `yaml:"type"`
	AllowedValues []string      `yaml:"allowed_values,omitempty"`
	Important     bool          `yaml:"important,omitempty"`
	AppliesTo     EntityKind    `yaml:"applies_to"`
}

type Registry struct {
	defs  map[string]Definition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Re-registering an existing name is rejected:
// definitions are immutable once loaded.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("attribute definition requires a name")
	}
	if !def.Type.Valid() {
		return fmt.Errorf("attribute %q has unknown type %q", def.Name, def.Type)
	}
	if def.Type == TypeSingleChoice && len(def.AllowedValues) == 0 {
		return fmt.Errorf("single-choice attribute %q requires allowed values", def.Name)
	}
	if def.AppliesTo != KindTask && def.AppliesTo != KindPerson {
		return fmt.Errorf("attribute %q has unknown applicability %q", def.Name, def.AppliesTo)
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("attribute %q is already defined", def.Name)
	}

	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// ForKind returns the definitions applicable to an entity kind, in
// registration order. Callers rely on this order being stable.
func (r *Registry) ForKind(kind EntityKind) []Definition {
	var defs []Definition
	for _, name := range r.order {
		if def := r.defs[name]; def.AppliesTo == kind {
			defs = append(defs, def)
		}
	}
	return defs
}

func (r *Registry) Len() int {
	return len(r.order)
}

type ontologyFile struct {
	Attributes []Definition `yaml:"attributes"`
}

// LoadFile reads attribute definitions from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology file: %w", err)
	}

	var file ontologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse ontology file: %w", err)
	}
	if len(file.Attributes) == 0 {
		return nil, fmt.Errorf("ontology file %s defines no attributes", path)
	}

	r := NewRegistry()
	for _, def := range file.Attributes {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns the built-in ontology used when no file is configured.
func Default() *Registry {
	r := NewRegistry()
	defs := []Definition{
		{Name: "status", Label: "Status", Type: TypeSingleChoice, AllowedValues: []string{"Not Started", "In Progress", "Blocked", "Done"}, Important: true, AppliesTo: KindTask},
		{Name: "priority", Label: "Priority", Type: TypeSingleChoice, AllowedValues: []string{"Critical", "High", "Medium", "Low"}, Important: true, AppliesTo: KindTask},
		{Name: "main_goal", Label: "Main goal", Type: TypeFreeText, Important: true, AppliesTo: KindTask},
		{Name: "current_state", Label: "Current state", Type: TypeFreeText, AppliesTo: KindTask},
		{Name: "estimated_days", Label: "Estimated days remaining", Type: TypeReal, AppliesTo: KindTask},
		{Name: "due_date", Label: "Due date", Type: TypeDate, AppliesTo: KindTask},
		{Name: "is_blocking", Label: "Blocking other work", Type: TypeBoolean, AppliesTo: KindTask},
		{Name: "focus", Label: "Current focus", Type: TypeFreeText, Important: true, AppliesTo: KindPerson},
		{Name: "workload", Label: "Workload (1-5)", Type: TypeInteger, AppliesTo: KindPerson},
		{Name: "availability_date", Label: "Next available", Type: TypeDate, AppliesTo: KindPerson},
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}
