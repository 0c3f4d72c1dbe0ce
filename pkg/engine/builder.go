package engine

import (
	"fmt"

	"github.com/cfnscope/cfnscope/pkg/errors"
	"github.com/cfnscope/cfnscope/pkg/pseudo"
	"github.com/cfnscope/cfnscope/pkg/stack"
	"github.com/cfnscope/cfnscope/pkg/template"
)

// buildStack assembles the rendered stack in a single pass: resources in
// declaration order, then outputs. An entity whose condition is false is
// omitted entirely; a condition name that was never declared is a
// reference error, not a silent skip.
func (ctx *evalContext) buildStack() (*stack.Stack, error) {
	st := stack.New(ctx.pseudo.Region, ctx.params)

	for _, id := range ctx.tpl.ResourceOrder() {
		res, _ := ctx.tpl.Resource(id)

		keep, err := ctx.entityIncluded(res.Condition)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}

		rendered, err := ctx.renderResource(res)
		if err != nil {
			return nil, err
		}
		st.AddResource(rendered)
	}

	for _, id := range ctx.tpl.OutputOrder() {
		out, _ := ctx.tpl.Output(id)

		keep, err := ctx.entityIncluded(out.Condition)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}

		rendered, err := ctx.renderOutput(out)
		if err != nil {
			return nil, err
		}
		if rendered != nil {
			st.AddOutput(rendered)
		}
	}

	return st, nil
}

// entityIncluded resolves the optional Condition attribute of a resource or
// output. An empty name means unconditional.
func (ctx *evalContext) entityIncluded(condition string) (bool, error) {
	if condition == "" {
		return true, nil
	}
	return ctx.conds.value(condition)
}

func (ctx *evalContext) renderResource(res *template.Resource) (*stack.Resource, error) {
	props, err := ctx.evalMapping(res.Properties)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", res.LogicalID, err)
	}

	meta, err := ctx.evalMapping(res.Metadata)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", res.LogicalID, err)
	}

	return &stack.Resource{
		LogicalID:           res.LogicalID,
		Type:                res.Type,
		DeletionPolicy:      res.DeletionPolicy,
		UpdateReplacePolicy: res.UpdateReplacePolicy,
		Properties:          props,
		Metadata:            meta,
	}, nil
}

// renderOutput resolves an output's value and export name. A value that
// resolves to the no-value sentinel drops the whole output.
func (ctx *evalContext) renderOutput(out *template.Output) (*stack.Output, error) {
	value, err := ctx.eval(out.Value)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", out.LogicalID, err)
	}
	if pseudo.IsNoValue(value) {
		return nil, nil
	}

	rendered := &stack.Output{
		LogicalID:   out.LogicalID,
		Description: out.Description,
		Value:       value,
	}

	if out.HasExport {
		name, err := ctx.eval(out.Export)
		if err != nil {
			return nil, fmt.Errorf("output %q export: %w", out.LogicalID, err)
		}
		rendered.ExportName = name
		rendered.HasExport = true
	}

	return rendered, nil
}

// evalMapping evaluates a top-level Properties or Metadata block. Keys
// whose value resolves to the no-value sentinel are dropped.
func (ctx *evalContext) evalMapping(m map[string]interface{}) (map[string]interface{}, error) {
	if m == nil {
		return nil, nil
	}
	v, err := ctx.eval(m)
	if err != nil {
		return nil, err
	}
	out, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.Reference(fmt.Sprintf("mapping evaluated to %T, want map", v))
	}
	return out, nil
}
