package track

import (
	"fmt"
	"reflect"
)

// Event is a single recorded write of a tracked field
type Event struct {
	Key   string
	Value any
}

// Entity is an instance of a tracked type. It owns its field values and the
// log of writes made since the last ClearUpdates.
//
// An Entity performs no locking. Callers sharing one across goroutines must
// serialize access to the whole tree themselves.
type Entity struct {
	schema *Schema
	values map[string]any
	log    []Event
}

// Schema returns the type of the entity
func (e *Entity) Schema() *Schema {
	return e.schema
}

// Get returns the current value of a tracked field. Unset fields and keys
// outside the schema return nil.
func (e *Entity) Get(key string) any {
	return e.values[key]
}

// Child returns the nested entity held by an entity field, or nil
func (e *Entity) Child(key string) *Entity {
	child, _ := e.values[key].(*Entity)
	return child
}

// Set records a write in the mutation log and stores the value. Every call
// appends an event, even when the value is unchanged.
//
// Writing a key that is not tracked, or a value that cannot be held by the
// field's kind, panics.
func (e *Entity) Set(key string, value any) {
	f, ok := e.schema.Field(key)
	if !ok {
		panic(fmt.Sprintf("track: %s has no tracked field %q", e.schema.name, key))
	}

	switch f.Kind {
	case KindEntity:
		value = checkEntity(e.schema.name, f, value)
	case KindSequence:
		if value != nil {
			value = normalizeSequence(e.schema.name, f, value)
		}
	default:
		if _, nested := value.(*Entity); nested {
			panic(fmt.Sprintf("track: %s.%s is a scalar field, got an entity", e.schema.name, key))
		}
	}

	e.log = append(e.log, Event{Key: key, Value: value})
	e.values[key] = value
}

// Log returns a copy of the writes recorded since the last clear
func (e *Entity) Log() []Event {
	out := make([]Event, len(e.log))
	copy(out, e.log)
	return out
}

// Dirty reports whether the entity or any entity below it has pending writes
func (e *Entity) Dirty() bool {
	if len(e.log) > 0 {
		return true
	}
	for _, f := range e.schema.fields {
		switch f.Kind {
		case KindEntity:
			if child := e.Child(f.Key); child != nil && child.Dirty() {
				return true
			}
		case KindSequence:
			if f.Elem != nil && sequenceDirty(e.values[f.Key]) {
				return true
			}
		}
	}
	return false
}

func sequenceDirty(v any) bool {
	seq, _ := v.([]any)
	for _, elem := range seq {
		if child, ok := elem.(*Entity); ok && child != nil && child.Dirty() {
			return true
		}
	}
	return false
}

func checkEntity(typeName string, f Field, value any) any {
	if value == nil {
		return nil
	}
	child, ok := value.(*Entity)
	if !ok {
		panic(fmt.Sprintf("track: %s.%s holds a %s entity, got %T", typeName, f.Key, f.Elem.name, value))
	}
	if child == nil {
		return nil
	}
	if child.schema != f.Elem {
		panic(fmt.Sprintf("track: %s.%s holds a %s entity, got %s", typeName, f.Key, f.Elem.name, child.schema.name))
	}
	return child
}

// normalizeSequence converts any slice or array into the []any form stored
// for sequence fields, checking element shapes against the field.
func normalizeSequence(typeName string, f Field, value any) []any {
	var seq []any
	switch v := value.(type) {
	case []any:
		seq = make([]any, len(v))
		copy(seq, v)
	case []*Entity:
		seq = make([]any, len(v))
		for i, elem := range v {
			seq[i] = elem
		}
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			panic(fmt.Sprintf("track: %s.%s is a sequence field, got %T", typeName, f.Key, value))
		}
		seq = make([]any, rv.Len())
		for i := range seq {
			seq[i] = rv.Index(i).Interface()
		}
	}

	for i, elem := range seq {
		child, nested := elem.(*Entity)
		switch {
		case f.Elem == nil && nested:
			panic(fmt.Sprintf("track: %s.%s[%d] is a scalar element, got an entity", typeName, f.Key, i))
		case f.Elem != nil && (!nested || child == nil || child.schema != f.Elem):
			panic(fmt.Sprintf("track: %s.%s[%d] must be a %s entity, got %T", typeName, f.Key, i, f.Elem.name, elem))
		}
	}
	return seq
}
