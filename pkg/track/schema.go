// Package track records writes to the tracked fields of an entity tree so
// that a full snapshot or a minimal diff of the tree can be produced for a
// passive mirror.
package track

import (
	"fmt"
	"sort"
)

// Kind describes how a tracked field participates in snapshots and diffs
type Kind int

const (
	// KindScalar fields hold strings, numbers, bools or any other leaf value
	KindScalar Kind = iota
	// KindEntity fields hold a nested *Entity whose changes surface as nested diffs
	KindEntity
	// KindSequence fields hold an ordered list of scalars or entities
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindEntity:
		return "entity"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field declares a tracked attribute of an entity type
type Field struct {
	Key  string
	Kind Kind

	// Default is the initial value of a scalar or sequence field. A nil
	// default leaves the field unset.
	Default any

	// Elem is the schema of the nested entity (Entity kind) or of the
	// sequence elements (Sequence kind, nil for scalar elements).
	Elem *Schema

	// Nullable entity fields start out nil instead of Elem.New().
	Nullable bool
}

// Schema is the static, ordered set of tracked fields of an entity type.
// It is shared by every instance of the type and never changes once built.
type Schema struct {
	name   string
	fields []Field
	index  map[string]int
}

// NewSchema builds the schema of an entity type. It panics on duplicate
// keys and on entity fields without an element schema, since both are
// mistakes in the type definition itself.
func NewSchema(name string, fields ...Field) *Schema {
	s := &Schema{
		name:   name,
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Key == "" {
			panic(fmt.Sprintf("track: schema %s: field %d has no key", name, i))
		}
		if _, dup := s.index[f.Key]; dup {
			panic(fmt.Sprintf("track: schema %s: duplicate field %q", name, f.Key))
		}
		if f.Kind == KindEntity && f.Elem == nil {
			panic(fmt.Sprintf("track: schema %s: entity field %q has no element schema", name, f.Key))
		}
		if f.Kind == KindSequence && f.Elem != nil && f.Default != nil {
			panic(fmt.Sprintf("track: schema %s: entity sequence %q cannot have a default", name, f.Key))
		}
		s.fields[i] = f
		s.index[f.Key] = i
	}
	return s
}

// Name returns the type name of the schema
func (s *Schema) Name() string {
	return s.name
}

// Keys returns the tracked keys in declaration order
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.Key
	}
	return keys
}

// Field looks up the declaration of a tracked key
func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// New creates an instance with every field set to its declared default
// and an empty mutation log.
func (s *Schema) New() *Entity {
	e := &Entity{
		schema: s,
		values: make(map[string]any, len(s.fields)),
	}
	for _, f := range s.fields {
		switch f.Kind {
		case KindEntity:
			if !f.Nullable {
				e.values[f.Key] = f.Elem.New()
			}
		case KindSequence:
			if f.Default != nil {
				e.values[f.Key] = normalizeSequence(s.name, f, f.Default)
			}
		default:
			e.values[f.Key] = f.Default
		}
	}
	return e
}

// registry is the process-wide table of entity types keyed by name. It is
// filled from package-level variable declarations and init functions and
// is read-only afterwards, so it carries no lock.
var registry = make(map[string]*Schema)

// Register adds a schema to the process-wide registry and returns it, so
// types can be declared as package-level variables.
func Register(s *Schema) *Schema {
	if _, exists := registry[s.name]; exists {
		panic(fmt.Sprintf("track: schema %s registered twice", s.name))
	}
	registry[s.name] = s
	return s
}

// Lookup finds a registered schema by type name
func Lookup(name string) (*Schema, bool) {
	s, ok := registry[name]
	return s, ok
}

// Registered returns the names of all registered types, sorted
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
