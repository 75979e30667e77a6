package macro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func callMacro(t *testing.T, macros starlark.StringDict, name string, args ...starlark.Value) string {
	t.Helper()
	fn, ok := macros[name]
	require.True(t, ok, "macro %q not registered", name)
	thread := &starlark.Thread{Name: "test"}
	result, err := starlark.Call(thread, fn, starlark.Tuple(args), nil)
	require.NoError(t, err)
	s, ok := starlark.AsString(result)
	require.True(t, ok, "macro %q did not return a string", name)
	return s
}

func TestBuiltins(t *testing.T) {
	macros := Builtins()

	assert.Equal(t, "COALESCE(SUM(active_hours), 0)",
		callMacro(t, macros, "agg_sum", starlark.String("active_hours")))
	assert.Equal(t, "COALESCE(LOGICAL_OR(is_default), FALSE)",
		callMacro(t, macros, "agg_any", starlark.String("is_default")))
	assert.Equal(t, "COUNT(submission_date)",
		callMacro(t, macros, "agg_count", starlark.String("submission_date")))
	assert.Equal(t, "COUNT(*)", callMacro(t, macros, "agg_count"))
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	err := r.Register("agg_max", starlark.String("placeholder"))
	require.NoError(t, err)

	err = r.Register("agg_max", starlark.String("again"))
	assert.ErrorContains(t, err, "already registered")

	for _, reserved := range ReservedNames {
		err := r.Register(reserved, starlark.String("x"))
		assert.ErrorContains(t, err, "reserved", "name %q", reserved)
	}

	assert.Equal(t, []string{"agg_any", "agg_count", "agg_max", "agg_sum"}, r.Names())
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `
def _quote(s):
    return "'" + s + "'"

def agg_max(expr):
    return "MAX(" + expr + ")"

def agg_sum_positive(expr):
    return agg_sum(expr) + " /* clamped */"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.star"), []byte(src), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadDir(dir))

	macros := r.StringDict()
	assert.Equal(t, "MAX(active_hours)",
		callMacro(t, macros, "agg_max", starlark.String("active_hours")))
	assert.Equal(t, "COALESCE(SUM(x), 0) /* clamped */",
		callMacro(t, macros, "agg_sum_positive", starlark.String("x")),
		"user macros can compose builtins")
	assert.NotContains(t, macros, "_quote", "underscore names stay private")
}

func TestRegistry_LoadDir_Missing(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadDir(filepath.Join(t.TempDir(), "nope")))
	assert.Equal(t, []string{"agg_any", "agg_count", "agg_sum"}, r.Names())
}

func TestRegistry_LoadDir_ShadowingBuiltinFails(t *testing.T) {
	dir := t.TempDir()
	src := `
def agg_sum(expr):
    return "SUM(" + expr + ")"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shadow.star"), []byte(src), 0o644))

	err := NewRegistry().LoadDir(dir)
	assert.ErrorContains(t, err, "reserved")
}
