package track

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnknownField is returned by Assign for keys outside the schema
	ErrUnknownField = errors.New("unknown tracked field")
	// ErrFieldKind is returned by Assign when a value does not fit the field kind
	ErrFieldKind = errors.New("value does not match field kind")
)

// Assign writes a diff-shaped map onto an entity through Set. Nested maps
// are assigned into nested entities, creating them when the field is nil,
// and maps inside sequences of entities become new elements. Writes that
// would not change the stored value are skipped so they do not show up in
// the next diff.
//
// The whole map is checked against the schema before anything is written.
// On error the entity and its log are left as they were.
func Assign(e *Entity, values map[string]any) error {
	if err := validate(e.schema, values, ""); err != nil {
		return err
	}
	assign(e, values)
	return nil
}

func validate(s *Schema, values map[string]any, prefix string) error {
	for _, key := range sortedKeys(values) {
		v := values[key]
		path := joinPath(prefix, key)

		f, ok := s.Field(key)
		if !ok {
			return fmt.Errorf("%s: %w", path, ErrUnknownField)
		}
		if v == nil {
			continue
		}

		switch f.Kind {
		case KindEntity:
			nested, ok := asMap(v)
			if !ok {
				return fmt.Errorf("%s: %s field needs an object, got %T: %w", path, f.Kind, v, ErrFieldKind)
			}
			if err := validate(f.Elem, nested, path); err != nil {
				return err
			}

		case KindSequence:
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
				return fmt.Errorf("%s: %s field needs a list, got %T: %w", path, f.Kind, v, ErrFieldKind)
			}
			for i := 0; i < rv.Len(); i++ {
				elem := rv.Index(i).Interface()
				elemPath := fmt.Sprintf("%s[%d]", path, i)
				if f.Elem == nil {
					if !isLeaf(elem) {
						return fmt.Errorf("%s: scalar element cannot hold an object: %w", elemPath, ErrFieldKind)
					}
					continue
				}
				m, ok := asMap(elem)
				if !ok {
					return fmt.Errorf("%s: element needs an object, got %T: %w", elemPath, elem, ErrFieldKind)
				}
				if err := validate(f.Elem, m, elemPath); err != nil {
					return err
				}
			}

		default:
			if !isLeaf(v) {
				return fmt.Errorf("%s: %s field cannot hold an object: %w", path, f.Kind, ErrFieldKind)
			}
		}
	}
	return nil
}

// assign expects values that passed validate
func assign(e *Entity, values map[string]any) {
	for _, key := range sortedKeys(values) {
		v := values[key]
		f, _ := e.schema.Field(key)

		switch f.Kind {
		case KindEntity:
			if v == nil {
				if e.Child(key) != nil {
					e.Set(key, nil)
				}
				continue
			}
			nested, _ := asMap(v)
			child := e.Child(key)
			if child == nil {
				child = f.Elem.New()
				assign(child, nested)
				// A new child is sent whole, its own log is redundant
				child.ClearUpdates()
				e.Set(key, child)
				continue
			}
			assign(child, nested)

		case KindSequence:
			if v == nil {
				if e.values[key] != nil {
					e.Set(key, nil)
				}
				continue
			}
			seq := buildSequence(f, v)
			if wireEqual(wireValue(f, seq), wireValue(f, e.values[key])) {
				continue
			}
			e.Set(key, seq)

		default:
			if scalarEqual(e.values[key], v) {
				continue
			}
			e.Set(key, v)
		}
	}
}

func buildSequence(f Field, v any) []any {
	rv := reflect.ValueOf(v)
	seq := make([]any, rv.Len())
	for i := range seq {
		elem := rv.Index(i).Interface()
		if f.Elem == nil {
			seq[i] = elem
			continue
		}
		m, _ := asMap(elem)
		child := f.Elem.New()
		assign(child, m)
		child.ClearUpdates()
		seq[i] = child
	}
	return seq
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func isLeaf(v any) bool {
	switch v.(type) {
	case map[string]any, *Entity:
		return false
	default:
		return true
	}
}

// wireEqual compares two values in snapshot shape, using scalarEqual for
// the leaves.
func wireEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || !wireEqual(x, y) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !wireEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return scalarEqual(a, b)
	}
}

// scalarEqual compares two leaf values, treating numbers of different Go
// types as equal when they hold the same value. Decoded JSON yields float64
// where the authoritative side may hold an int.
func scalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
