// Package macro provides the aggregation helpers available to metric select
// expressions. Builtin helpers are implemented in Go; additional helpers can
// be loaded from .star files and participate under the same namespace.
// Every helper is a pure string-to-SQL function: macros emit SQL text, they
// never touch a database.
package macro

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ReservedNames may not be shadowed by user macros. "experiment" is the
// context struct injected at render time.
var ReservedNames = []string{"agg_sum", "agg_any", "agg_count", "experiment"}

// Builtins returns the built-in aggregation helpers.
func Builtins() starlark.StringDict {
	return starlark.StringDict{
		"agg_sum":   starlark.NewBuiltin("agg_sum", aggSum),
		"agg_any":   starlark.NewBuiltin("agg_any", aggAny),
		"agg_count": starlark.NewBuiltin("agg_count", aggCount),
	}
}

// aggSum emits a NULL-safe sum over a column or expression.
func aggSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var expr string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expr", &expr); err != nil {
		return nil, err
	}
	return starlark.String(fmt.Sprintf("COALESCE(SUM(%s), 0)", expr)), nil
}

// aggAny emits a NULL-safe any-match over a boolean predicate.
func aggAny(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var expr string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expr", &expr); err != nil {
		return nil, err
	}
	return starlark.String(fmt.Sprintf("COALESCE(LOGICAL_OR(%s), FALSE)", expr)), nil
}

// aggCount emits a row count, over an expression when one is given.
func aggCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	expr := "*"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expr?", &expr); err != nil {
		return nil, err
	}
	return starlark.String(fmt.Sprintf("COUNT(%s)", expr)), nil
}

// Registry holds all macros visible to template rendering.
type Registry struct {
	macros starlark.StringDict
}

// NewRegistry creates a registry seeded with the builtin helpers.
func NewRegistry() *Registry {
	return &Registry{macros: Builtins()}
}

// Register adds a user macro. Reserved and already-registered names are
// rejected so a .star file cannot silently shadow a builtin.
func (r *Registry) Register(name string, fn starlark.Value) error {
	for _, reserved := range ReservedNames {
		if name == reserved {
			return fmt.Errorf("macro %q shadows a reserved name", name)
		}
	}
	if _, ok := r.macros[name]; ok {
		return fmt.Errorf("macro %q already registered", name)
	}
	r.macros[name] = fn
	return nil
}

// Names returns registered macro names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.macros))
	for name := range r.macros {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StringDict returns the macros as Starlark globals for rendering.
func (r *Registry) StringDict() starlark.StringDict {
	out := make(starlark.StringDict, len(r.macros))
	for name, fn := range r.macros {
		out[name] = fn
	}
	return out
}

// LoadDir executes every .star file in dir and registers its exported
// functions. Names starting with "_" are private to their file. A missing
// directory is fine; macros are optional.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading macros directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".star") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := r.loadFile(path); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) loadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading macro file: %w", err)
	}

	thread := &starlark.Thread{Name: path}
	opts := &syntax.FileOptions{}
	// Builtins are predeclared so user macros can compose them.
	globals, err := starlark.ExecFileOptions(opts, thread, path, src, Builtins())
	if err != nil {
		return fmt.Errorf("executing macro file %s: %w", path, err)
	}

	exported := make([]string, 0, len(globals))
	for name := range globals {
		if !strings.HasPrefix(name, "_") {
			exported = append(exported, name)
		}
	}
	sort.Strings(exported)

	for _, name := range exported {
		if err := r.Register(name, globals[name]); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
