// Package mirror applies snapshots and diffs produced by package track onto
// plain, untracked containers on the consuming side.
package mirror

import (
	"log/slog"
	"sort"
	"strings"
)

// Node is a mirror container: a plain attribute map with no tracking.
// Nested containers are Nodes created on demand by the Applier.
type Node map[string]any

// Lookup resolves a dotted path such as "weapon.test" below the node
func (n Node) Lookup(path string) (any, bool) {
	var cur any = n
	for _, part := range strings.Split(path, ".") {
		container, ok := asContainer(cur)
		if !ok {
			return nil, false
		}
		cur, ok = container[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// NotifyFunc is called once for every leaf value the Applier assigns, with
// the root-relative dotted path of the leaf.
type NotifyFunc func(path string, value any)

// Applier walks a diff and writes it into a mirror tree
type Applier struct {
	notify NotifyFunc
	logger *slog.Logger
}

// Option configures an Applier
type Option func(*Applier)

// WithLogger sets the logger used for conflict warnings
func WithLogger(logger *slog.Logger) Option {
	return func(a *Applier) {
		a.logger = logger
	}
}

// NewApplier creates an Applier. A nil notify function is allowed.
func NewApplier(notify NotifyFunc, opts ...Option) *Applier {
	a := &Applier{
		notify: notify,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply writes diff into root and returns the number of leaves assigned.
//
// Nested maps descend into child containers, which are created when absent
// and never replaced when present. Every other value is assigned as a leaf
// and reported to the notify function. A nested map in the diff cannot be
// told apart from a nested diff; both are descended into. Keys are visited
// in sorted order at every level.
func (a *Applier) Apply(root Node, diff map[string]any) int {
	return a.apply(root, diff, "")
}

func (a *Applier) apply(target Node, diff map[string]any, prefix string) int {
	keys := make([]string, 0, len(diff))
	for k := range diff {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	leaves := 0
	for _, key := range keys {
		value := diff[key]
		path := joinPath(prefix, key)

		if nested, ok := asContainer(value); ok {
			child, exists := asContainer(target[key])
			if !exists {
				if current, present := target[key]; present && current != nil {
					a.logger.Warn("Replacing leaf with container", "path", path, "value", current)
				}
				child = make(Node)
				target[key] = child
			}
			leaves += a.apply(child, nested, path)
			continue
		}

		target[key] = value
		leaves++
		if a.notify != nil {
			a.notify(path, value)
		}
	}
	return leaves
}

// asContainer accepts both Node and the map[string]any produced by track
// and by JSON decoding.
func asContainer(v any) (Node, bool) {
	switch m := v.(type) {
	case Node:
		return m, m != nil
	case map[string]any:
		return Node(m), m != nil
	default:
		return nil, false
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
