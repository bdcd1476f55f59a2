package track

// Serialize returns the full current state of every tracked field. Nested
// entities are serialized recursively and sequences element by element.
// Unset fields are present with a nil value.
func (e *Entity) Serialize() map[string]any {
	out := make(map[string]any, len(e.schema.fields))
	for _, f := range e.schema.fields {
		out[f.Key] = wireValue(f, e.values[f.Key])
	}
	return out
}

// GetUpdates returns the fields written since the last ClearUpdates, folded
// so that the last write of each key wins. Nested entities contribute their
// own diffs as nested maps. The log is left untouched, so calling it again
// before a clear returns the same result.
func (e *Entity) GetUpdates() map[string]any {
	last := make(map[string]any, len(e.log))
	for _, ev := range e.log {
		last[ev.Key] = ev.Value
	}

	out := make(map[string]any, len(last))
	for key, v := range last {
		f, _ := e.schema.Field(key)
		out[key] = wireValue(f, v)
	}

	for _, f := range e.schema.fields {
		if _, written := out[f.Key]; written {
			// A replaced child or sequence is already sent whole
			continue
		}
		switch f.Kind {
		case KindEntity:
			child := e.Child(f.Key)
			if child == nil {
				continue
			}
			if nested := child.GetUpdates(); len(nested) > 0 {
				out[f.Key] = nested
			}
		case KindSequence:
			if f.Elem != nil && sequenceDirty(e.values[f.Key]) {
				out[f.Key] = wireValue(f, e.values[f.Key])
			}
		}
	}

	return out
}

// ClearUpdates empties the mutation log of the entity and of every entity
// below it, including sequence elements.
func (e *Entity) ClearUpdates() {
	e.log = nil
	for _, f := range e.schema.fields {
		switch f.Kind {
		case KindEntity:
			if child := e.Child(f.Key); child != nil {
				child.ClearUpdates()
			}
		case KindSequence:
			seq, _ := e.values[f.Key].([]any)
			for _, elem := range seq {
				if child, ok := elem.(*Entity); ok && child != nil {
					child.ClearUpdates()
				}
			}
		}
	}
}

// wireValue renders a stored value into its snapshot shape
func wireValue(f Field, v any) any {
	switch f.Kind {
	case KindEntity:
		child, _ := v.(*Entity)
		if child == nil {
			return nil
		}
		return child.Serialize()
	case KindSequence:
		seq, ok := v.([]any)
		if !ok {
			return nil
		}
		out := make([]any, len(seq))
		for i, elem := range seq {
			if child, ok := elem.(*Entity); ok && child != nil {
				out[i] = child.Serialize()
			} else {
				out[i] = elem
			}
		}
		return out
	default:
		return v
	}
}
