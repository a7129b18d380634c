package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_EmptyPathReturnsRoot(t *testing.T) {
	root := map[string]interface{}{"a": 1.0}
	v, ok := Get(root, "")
	require.True(t, ok)
	assert.Equal(t, root, v)
}

func TestGet_DottedPath(t *testing.T) {
	root := map[string]interface{}{
		"a": map[string]interface{}{"b": "hello"},
	}
	v, ok := Get(root, "a.b")
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestGet_BracketIndex(t *testing.T) {
	root := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"name": "first"},
			map[string]interface{}{"name": "second"},
		},
	}
	v, ok := Get(root, "items[1].name")
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestGet_OutOfRangeIndexIsAbsent(t *testing.T) {
	root := map[string]interface{}{"items": []interface{}{1.0}}
	_, ok := Get(root, "items[5]")
	assert.False(t, ok)
}

func TestGet_KeyIntoNonMappingIsAbsent(t *testing.T) {
	root := map[string]interface{}{"a": "not a map"}
	_, ok := Get(root, "a.b")
	assert.False(t, ok)
}

func TestGet_IndexIntoNonSequenceIsAbsent(t *testing.T) {
	root := map[string]interface{}{"a": "not a list"}
	_, ok := Get(root, "a[0]")
	assert.False(t, ok)
}

func TestGet_MissingKeyIsAbsent(t *testing.T) {
	root := map[string]interface{}{"a": 1.0}
	_, ok := Get(root, "b")
	assert.False(t, ok)
}

func TestGet_NilValueIsPresent(t *testing.T) {
	root := map[string]interface{}{"a": nil}
	v, ok := Get(root, "a")
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestRender_SubstitutesResolvedPaths(t *testing.T) {
	ctx := map[string]interface{}{
		"user": map[string]interface{}{"name": "Ada"},
	}
	out := Render("hello {user.name}", ctx)
	assert.Equal(t, "hello Ada", out)
}

func TestRender_LeavesUnresolvedPlaceholderLiteral(t *testing.T) {
	ctx := map[string]interface{}{}
	out := Render("hello {missing.path}", ctx)
	assert.Equal(t, "hello {missing.path}", out)
}

func TestRender_IsIdempotentOnAlreadyRenderedString(t *testing.T) {
	ctx := map[string]interface{}{"x": "1"}
	once := Render("value={x}", ctx)
	twice := Render(once, ctx)
	assert.Equal(t, once, twice)
}

func TestRender_WalksNestedContainers(t *testing.T) {
	ctx := map[string]interface{}{"id": "wf-1"}
	input := map[string]interface{}{
		"name": "{id}",
		"tags": []interface{}{"{id}", "static"},
	}
	out := Render(input, ctx).(map[string]interface{})
	assert.Equal(t, "wf-1", out["name"])
	assert.Equal(t, []interface{}{"wf-1", "static"}, out["tags"])
}

func TestRender_NonStringScalarPassesThrough(t *testing.T) {
	out := Render(42.0, map[string]interface{}{})
	assert.Equal(t, 42.0, out)
}
