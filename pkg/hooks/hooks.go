// Package hooks runs caller- and provider-supplied compliance checks
// against a loaded template and against each rendered resource. Hooks are
// pure validation: they never mutate what they inspect.
package hooks

import (
	"github.com/cfnscope/cfnscope/pkg/errors"
	"github.com/cfnscope/cfnscope/pkg/stack"
	"github.com/cfnscope/cfnscope/pkg/template"
)

// TemplateHook checks the raw template before any rendering happens.
type TemplateHook struct {
	Name  string
	Check func(*template.Template) error
}

// Context is handed to a resource hook: the rendered resource, the stack it
// belongs to and the template it came from. Built per invocation.
type Context struct {
	LogicalID string
	Resource  *stack.Resource
	Stack     *stack.Stack
	Template  *template.Template
}

// ResourceHook checks one rendered resource of the type it is keyed under.
type ResourceHook struct {
	Name  string
	Check func(*Context) error
}

// Engine holds the locally configured hooks. Provider-registered hooks are
// merged in at run time: local hooks run first and win name collisions.
type Engine struct {
	TemplateHooks []TemplateHook
	ResourceHooks map[string][]ResourceHook
}

// NewEngine creates an empty hook engine.
func NewEngine() *Engine {
	return &Engine{ResourceHooks: map[string][]ResourceHook{}}
}

// AddTemplateHook appends a locally configured template hook.
func (e *Engine) AddTemplateHook(h TemplateHook) {
	e.TemplateHooks = append(e.TemplateHooks, h)
}

// AddResourceHook appends a locally configured hook for a resource type.
func (e *Engine) AddResourceHook(resourceType string, h ResourceHook) {
	if e.ResourceHooks == nil {
		e.ResourceHooks = map[string][]ResourceHook{}
	}
	e.ResourceHooks[resourceType] = append(e.ResourceHooks[resourceType], h)
}

// RunTemplateHooks runs every template hook not named in the template's
// suppression list. The first failure aborts the rest.
func (e *Engine) RunTemplateHooks(tpl *template.Template) error {
	skip := nameSet(tpl.SkipHooks())

	for _, h := range e.mergedTemplateHooks() {
		if skip[h.Name] {
			continue
		}
		if err := h.Check(tpl); err != nil {
			return errors.HookViolation(h.Name, err)
		}
	}
	return nil
}

// RunResourceHooks runs the hooks keyed under each rendered resource's type.
// Suppression lists are read per resource before any of its hooks run; a
// failing hook aborts the remaining hooks for that resource and the
// resources after it in declaration order.
func (e *Engine) RunResourceHooks(st *stack.Stack, tpl *template.Template) error {
	for _, res := range st.Resources() {
		hooks := e.mergedResourceHooks(res.Type)
		if len(hooks) == 0 {
			continue
		}

		skip := map[string]bool{}
		if def, ok := tpl.Resource(res.LogicalID); ok {
			skip = nameSet(def.SkipHooks())
		}

		ctx := &Context{
			LogicalID: res.LogicalID,
			Resource:  res,
			Stack:     st,
			Template:  tpl,
		}
		for _, h := range hooks {
			if skip[h.Name] {
				continue
			}
			if err := h.Check(ctx); err != nil {
				return errors.HookViolation(h.Name, err)
			}
		}
	}
	return nil
}

// mergedTemplateHooks returns local hooks followed by provider hooks in
// registration order, dropping provider hooks whose name a local hook
// already claims.
func (e *Engine) mergedTemplateHooks() []TemplateHook {
	merged := append([]TemplateHook{}, e.TemplateHooks...)
	taken := map[string]bool{}
	for _, h := range merged {
		taken[h.Name] = true
	}
	for _, p := range registeredProviders() {
		for _, h := range p.TemplateHooks {
			if taken[h.Name] {
				continue
			}
			taken[h.Name] = true
			merged = append(merged, h)
		}
	}
	return merged
}

func (e *Engine) mergedResourceHooks(resourceType string) []ResourceHook {
	merged := append([]ResourceHook{}, e.ResourceHooks[resourceType]...)
	taken := map[string]bool{}
	for _, h := range merged {
		taken[h.Name] = true
	}
	for _, p := range registeredProviders() {
		for _, h := range p.ResourceHooks[resourceType] {
			if taken[h.Name] {
				continue
			}
			taken[h.Name] = true
			merged = append(merged, h)
		}
	}
	return merged
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
