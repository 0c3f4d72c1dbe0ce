// Package engine renders CloudFormation templates offline: it resolves
// parameters against their declared constraints, evaluates conditions,
// walks intrinsic-function nodes and assembles the rendered stack, without
// ever contacting a backend.
package engine

import (
	"github.com/cfnscope/cfnscope/pkg/hooks"
	"github.com/cfnscope/cfnscope/pkg/lookup"
	"github.com/cfnscope/cfnscope/pkg/pseudo"
	"github.com/cfnscope/cfnscope/pkg/stack"
	"github.com/cfnscope/cfnscope/pkg/template"
)

// Engine renders one template. The template is read-only; Render may be
// called many times with different parameters and regions, each call
// producing an independent stack.
type Engine struct {
	tpl     *template.Template
	lookups lookup.Tables
	pseudo  pseudo.Values
	hooks   *hooks.Engine
}

// Option configures an Engine.
type Option func(*Engine)

// WithLookups supplies the external value tables consulted by
// Fn::ImportValue, dynamic references and SSM-backed parameter types.
func WithLookups(tables lookup.Tables) Option {
	return func(e *Engine) { e.lookups = tables }
}

// WithImports is shorthand for a lookup table of export name -> value.
func WithImports(imports map[string]interface{}) Option {
	return func(e *Engine) { e.lookups.SetImports(imports) }
}

// WithPseudo replaces the default pseudo-parameter values.
func WithPseudo(values pseudo.Values) Option {
	return func(e *Engine) { e.pseudo = values }
}

// WithHooks attaches a hook engine whose resource hooks run on every
// render and whose template hooks run from Validate.
func WithHooks(h *hooks.Engine) Option {
	return func(e *Engine) { e.hooks = h }
}

// New creates an engine for the given template.
func New(tpl *template.Template, opts ...Option) *Engine {
	e := &Engine{
		tpl:     tpl,
		lookups: lookup.New(),
		pseudo:  pseudo.Defaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render resolves parameters, evaluates conditions and functions, prunes
// conditionally excluded entities and runs resource hooks. region overrides
// the pseudo region for this render only; empty keeps the engine's value.
func (e *Engine) Render(params map[string]interface{}, region string) (*stack.Stack, error) {
	values := e.pseudo
	if region != "" {
		values = values.WithRegion(region)
	}

	resolved, err := resolveParameters(e.tpl, params, e.lookups)
	if err != nil {
		return nil, err
	}

	ctx := &evalContext{
		tpl:     e.tpl,
		params:  resolved,
		pseudo:  values,
		lookups: e.lookups,
	}
	ctx.conds = newConditionEvaluator(ctx)

	if err := ctx.conds.evalAll(); err != nil {
		return nil, err
	}

	st, err := ctx.buildStack()
	if err != nil {
		return nil, err
	}

	if e.hooks != nil {
		if err := e.hooks.RunResourceHooks(st, e.tpl); err != nil {
			return nil, err
		}
	}

	return st, nil
}

// RunTemplateHooks runs template-level hooks against the raw template.
func (e *Engine) RunTemplateHooks() error {
	if e.hooks == nil {
		return nil
	}
	return e.hooks.RunTemplateHooks(e.tpl)
}

// Validate runs template hooks, then renders (resource hooks included).
func (e *Engine) Validate(params map[string]interface{}, region string) (*stack.Stack, error) {
	if err := e.RunTemplateHooks(); err != nil {
		return nil, err
	}
	return e.Render(params, region)
}
