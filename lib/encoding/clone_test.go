package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type item struct {
	Name   string
	Tags   []string
	Nested *item
	hidden []int
}

func TestCloneMapsAndSlices(t *testing.T) {
	orig := map[string]any{
		"list":  []any{1, map[string]any{"a": 1}},
		"inner": map[string]int{"x": 1},
	}
	cp := Clone(orig).(map[string]any)

	cp["list"].([]any)[1].(map[string]any)["a"] = 2
	cp["inner"].(map[string]int)["x"] = 2
	cp["added"] = true

	assert.Equal(t, 1, orig["list"].([]any)[1].(map[string]any)["a"])
	assert.Equal(t, 1, orig["inner"].(map[string]int)["x"])
	assert.NotContains(t, orig, "added")
}

func TestCloneStructs(t *testing.T) {
	orig := &item{
		Name:   "a",
		Tags:   []string{"x"},
		Nested: &item{Name: "b"},
		hidden: []int{1},
	}
	cp := Clone(orig).(*item)

	cp.Tags[0] = "y"
	cp.Nested.Name = "c"

	assert.Equal(t, "x", orig.Tags[0])
	assert.Equal(t, "b", orig.Nested.Name)
	assert.Equal(t, orig.hidden, cp.hidden, "unexported fields are copied")
}

func TestCloneCycles(t *testing.T) {
	orig := &item{Name: "a", Tags: []string{"x"}}
	orig.Nested = orig

	cp := Clone(orig).(*item)
	cp.Name = "b"
	cp.Tags[0] = "y"

	assert.Same(t, cp, cp.Nested)
	assert.NotSame(t, orig, cp)
	assert.Equal(t, "a", orig.Name)
	assert.Equal(t, "x", orig.Tags[0])
}

func TestClonePassThrough(t *testing.T) {
	assert.Nil(t, Clone(nil))
	assert.Equal(t, 42, Clone(42))
	assert.Equal(t, "s", Clone("s"))

	var nilMap map[string]int
	assert.Nil(t, Clone(nilMap))

	fn := func() int { return 1 }
	assert.Equal(t, 1, Clone(fn).(func() int)())
}
