// Package template substitutes {{ ... }} expression spans in SQL text.
// Expressions are evaluated as Starlark against a fixed set of globals: the
// aggregation macros and the experiment context struct. The output contract
// is a fully-specified SQL string: any unresolved variable, unknown macro,
// or dangling placeholder is an error, never a silent default.
package template

import (
	"strings"

	"github.com/leapstack-labs/expsql/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Context carries the globals available to template expressions. Contexts
// are immutable after construction and safe for concurrent use.
type Context struct {
	globals starlark.StringDict
}

// NewContext builds a rendering context from macro globals plus an optional
// experiment struct. A nil experiment leaves the "experiment" name
// undefined, so expressions referencing it fail with a missing-variable
// error instead of rendering empty strings.
func NewContext(macros starlark.StringDict, experiment starlark.Value) *Context {
	globals := make(starlark.StringDict, len(macros)+1)
	for name, value := range macros {
		globals[name] = value
	}
	if experiment != nil {
		globals["experiment"] = experiment
	}
	return &Context{globals: globals}
}

// ExperimentValue exposes experiment context variables as a Starlark struct
// accessible as experiment.slug, experiment.start_date_str, and
// experiment.last_enrollment_date_str.
func ExperimentValue(slug, startDateStr, lastEnrollmentDateStr string) starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("experiment"), starlark.StringDict{
		"slug":                     starlark.String(slug),
		"start_date_str":           starlark.String(startDateStr),
		"last_enrollment_date_str": starlark.String(lastEnrollmentDateStr),
	})
}

// Render substitutes every {{ expr }} span in text. The filename is used in
// Starlark error positions only.
func (c *Context) Render(text, filename string) (string, error) {
	var out strings.Builder
	rest := text

	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			break
		}
		out.WriteString(rest[:start])
		rest = rest[start+len(openDelim):]

		end := strings.Index(rest, closeDelim)
		if end < 0 {
			return "", &core.MissingTemplateVariableError{
				Expression: openDelim + rest,
				Cause:      errUnterminated,
			}
		}
		expr := strings.TrimSpace(rest[:end])
		rest = rest[end+len(closeDelim):]

		rendered, err := c.eval(expr, filename)
		if err != nil {
			return "", err
		}
		out.WriteString(rendered)
	}
	out.WriteString(rest)

	result := out.String()
	// A macro must not smuggle an unexpanded placeholder into the output.
	if strings.Contains(result, openDelim) {
		return "", &core.MissingTemplateVariableError{
			Expression: result[strings.Index(result, openDelim):],
			Cause:      errDangling,
		}
	}
	return result, nil
}

func (c *Context) eval(expr, filename string) (string, error) {
	thread := &starlark.Thread{Name: filename}
	value, err := starlark.Eval(thread, filename, expr, c.globals) //nolint:staticcheck // SA1019: EvalOptions migration pending
	if err != nil {
		return "", &core.MissingTemplateVariableError{Expression: expr, Cause: err}
	}
	switch v := value.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.NoneType:
		return "", nil
	default:
		return value.String(), nil
	}
}

type renderError string

func (e renderError) Error() string { return string(e) }

const (
	errUnterminated renderError = "unterminated template expression"
	errDangling     renderError = "dangling placeholder after rendering"
)
