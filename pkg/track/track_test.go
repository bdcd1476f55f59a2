package track

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	gemSchema = NewSchema("test.gem",
		Field{Key: "color", Default: "red"},
	)
	weaponSchema = NewSchema("test.weapon",
		Field{Key: "atk", Default: 10},
		Field{Key: "test", Default: 100},
		Field{Key: "gem", Kind: KindEntity, Elem: gemSchema},
	)
	playerSchema = NewSchema("test.player",
		Field{Key: "name", Default: "NoName"},
		Field{Key: "def", Default: 10},
		Field{Key: "weapon", Kind: KindEntity, Elem: weaponSchema},
		Field{Key: "tags", Kind: KindSequence},
		Field{Key: "bag", Kind: KindSequence, Elem: weaponSchema},
		Field{Key: "pet", Kind: KindEntity, Elem: gemSchema, Nullable: true},
		Field{Key: "title"},
	)
)

func TestSchemaKeysKeepDeclarationOrder(t *testing.T) {
	assert.Equal(t, []string{"name", "def", "weapon", "tags", "bag", "pet", "title"}, playerSchema.Keys())
	assert.Equal(t, "test.player", playerSchema.Name())

	f, ok := playerSchema.Field("weapon")
	require.True(t, ok)
	assert.Equal(t, KindEntity, f.Kind)

	_, ok = playerSchema.Field("missing")
	assert.False(t, ok)
}

func TestSchemaRejectsBadDeclarations(t *testing.T) {
	assert.Panics(t, func() {
		NewSchema("dup", Field{Key: "a"}, Field{Key: "a"})
	})
	assert.Panics(t, func() {
		NewSchema("noelem", Field{Key: "child", Kind: KindEntity})
	})
	assert.Panics(t, func() {
		NewSchema("nokey", Field{})
	})
	assert.Panics(t, func() {
		NewSchema("seqdefault", Field{Key: "s", Kind: KindSequence, Elem: gemSchema, Default: []any{}})
	})
}

func TestRegistry(t *testing.T) {
	s := Register(NewSchema("test.registry.item", Field{Key: "n"}))

	found, ok := Lookup("test.registry.item")
	require.True(t, ok)
	assert.Same(t, s, found)
	assert.Contains(t, Registered(), "test.registry.item")

	_, ok = Lookup("test.registry.none")
	assert.False(t, ok)

	assert.Panics(t, func() {
		Register(NewSchema("test.registry.item"))
	})
}

func TestNewStartsCleanWithDefaults(t *testing.T) {
	p := playerSchema.New()

	assert.Equal(t, "NoName", p.Get("name"))
	assert.Equal(t, 10, p.Get("def"))
	assert.Nil(t, p.Get("title"))
	assert.Nil(t, p.Child("pet"))
	require.NotNil(t, p.Child("weapon"))
	assert.Equal(t, 100, p.Child("weapon").Get("test"))
	assert.Empty(t, p.Log())
	assert.False(t, p.Dirty())
}

func TestInstancesDoNotShareStorage(t *testing.T) {
	a := playerSchema.New()
	b := playerSchema.New()

	a.Set("name", "Alice")
	a.Child("weapon").Set("atk", 99)

	assert.Equal(t, "NoName", b.Get("name"))
	assert.Equal(t, 10, b.Child("weapon").Get("atk"))
	assert.NotSame(t, a.Child("weapon"), b.Child("weapon"))
	assert.Empty(t, b.Log())
}

func TestSetAppendsEveryWrite(t *testing.T) {
	p := playerSchema.New()
	p.Set("def", 11)
	p.Set("def", 11)
	p.Set("name", "x")

	assert.Equal(t, []Event{
		{Key: "def", Value: 11},
		{Key: "def", Value: 11},
		{Key: "name", Value: "x"},
	}, p.Log())
	assert.Equal(t, 11, p.Get("def"))
}

func TestSetPanicsOnMisuse(t *testing.T) {
	p := playerSchema.New()

	assert.Panics(t, func() { p.Set("nope", 1) })
	assert.Panics(t, func() { p.Set("weapon", 1) })
	assert.Panics(t, func() { p.Set("weapon", gemSchema.New()) })
	assert.Panics(t, func() { p.Set("name", gemSchema.New()) })
	assert.Panics(t, func() { p.Set("tags", 3) })
	assert.Panics(t, func() { p.Set("tags", []any{gemSchema.New()}) })
	assert.Panics(t, func() { p.Set("bag", []any{"sword"}) })
}

func TestSetNormalizesSequences(t *testing.T) {
	p := playerSchema.New()
	p.Set("tags", []string{"a", "b"})
	assert.Equal(t, []any{"a", "b"}, p.Get("tags"))

	w := weaponSchema.New()
	p.Set("bag", []*Entity{w})
	assert.Equal(t, []any{w}, p.Get("bag"))
}

func TestSerializeRoundTripScenario(t *testing.T) {
	p := playerSchema.New()

	want := map[string]any{
		"name": "NoName",
		"def":  10,
		"weapon": map[string]any{
			"atk":  10,
			"test": 100,
			"gem":  map[string]any{"color": "red"},
		},
		"tags":  nil,
		"bag":   nil,
		"pet":   nil,
		"title": nil,
	}
	if diff := cmp.Diff(want, p.Serialize()); diff != "" {
		t.Errorf("Serialize() mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeSequences(t *testing.T) {
	p := playerSchema.New()
	sword := weaponSchema.New()
	sword.Set("atk", 3)
	p.Set("bag", []*Entity{sword})
	p.Set("tags", []any{"x", 1})

	got := p.Serialize()
	assert.Equal(t, []any{"x", 1}, got["tags"])
	assert.Equal(t, []any{map[string]any{
		"atk":  3,
		"test": 100,
		"gem":  map[string]any{"color": "red"},
	}}, got["bag"])
}

func TestSerializeEmptySchema(t *testing.T) {
	e := NewSchema("test.empty").New()
	assert.Equal(t, map[string]any{}, e.Serialize())
	assert.Equal(t, map[string]any{}, e.GetUpdates())
	e.ClearUpdates()
}

func TestSerializeIgnoresHistory(t *testing.T) {
	p := playerSchema.New()
	p.Set("name", "a")
	p.Set("name", "b")
	before := p.Serialize()
	p.ClearUpdates()
	assert.Equal(t, before, p.Serialize())
	assert.Equal(t, "b", before["name"])
}

func TestGetUpdatesEmptyWithoutWrites(t *testing.T) {
	p := playerSchema.New()
	assert.Empty(t, p.GetUpdates())
}

func TestGetUpdatesLastWriteWins(t *testing.T) {
	p := playerSchema.New()
	p.Set("def", 1)
	p.Set("name", "x")
	p.Set("def", 2)

	assert.Equal(t, map[string]any{"def": 2, "name": "x"}, p.GetUpdates())
}

func TestIncrementalScenario(t *testing.T) {
	p := playerSchema.New()
	p.Serialize()
	p.ClearUpdates()

	p.Child("weapon").Set("test", 1)

	assert.Equal(t, map[string]any{
		"weapon": map[string]any{"test": 1},
	}, p.GetUpdates())
}

func TestGetUpdatesIsIdempotent(t *testing.T) {
	p := playerSchema.New()
	p.Set("name", "x")
	p.Child("weapon").Set("test", 1)
	p.Child("weapon").Child("gem").Set("color", "blue")

	first := p.GetUpdates()
	second := p.GetUpdates()
	assert.Equal(t, first, second)
	assert.Len(t, p.Log(), 1)
	assert.Equal(t, map[string]any{
		"name": "x",
		"weapon": map[string]any{
			"test": 1,
			"gem":  map[string]any{"color": "blue"},
		},
	}, second)
}

func TestGetUpdatesReplacedChildIsSentWhole(t *testing.T) {
	p := playerSchema.New()
	w := weaponSchema.New()
	w.Set("atk", 50)
	p.Set("weapon", w)

	assert.Equal(t, map[string]any{
		"weapon": map[string]any{
			"atk":  50,
			"test": 100,
			"gem":  map[string]any{"color": "red"},
		},
	}, p.GetUpdates())

	p.Set("weapon", nil)
	assert.Equal(t, map[string]any{"weapon": nil}, p.GetUpdates())
}

func TestGetUpdatesSequenceElementChange(t *testing.T) {
	p := playerSchema.New()
	sword := weaponSchema.New()
	p.Set("bag", []*Entity{sword})
	p.ClearUpdates()
	require.Empty(t, p.GetUpdates())

	sword.Set("atk", 7)
	got := p.GetUpdates()
	require.Contains(t, got, "bag")
	bag := got["bag"].([]any)
	require.Len(t, bag, 1)
	assert.Equal(t, 7, bag[0].(map[string]any)["atk"])
}

func TestClearUpdatesResetsDeepTree(t *testing.T) {
	p := playerSchema.New()
	sword := weaponSchema.New()
	p.Set("bag", []*Entity{sword})
	p.Set("name", "x")
	p.Child("weapon").Set("atk", 1)
	p.Child("weapon").Child("gem").Set("color", "green")
	sword.Set("test", 5)
	require.True(t, p.Dirty())

	p.ClearUpdates()

	assert.Empty(t, p.GetUpdates())
	assert.False(t, p.Dirty())
	assert.Empty(t, p.Child("weapon").Child("gem").Log())

	p.ClearUpdates()
	assert.Empty(t, p.GetUpdates())
}
