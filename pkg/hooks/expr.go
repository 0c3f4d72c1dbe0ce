package hooks

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// NewExprResourceHook compiles src into a boolean expression evaluated
// against each matching resource. The expression sees:
//
//	id             logical id
//	type           resource type
//	properties     rendered property tree
//	deletionPolicy deletion policy string ("" when unset)
//	metadata       rendered metadata block
//	region         region the stack was rendered for
//
// Anything other than a true result is a violation.
func NewExprResourceHook(name, src string) (ResourceHook, error) {
	program, err := expr.Compile(src, expr.Env(map[string]interface{}{}), expr.AsBool())
	if err != nil {
		return ResourceHook{}, fmt.Errorf("hook %q: %w", name, err)
	}
	return ResourceHook{
		Name:  name,
		Check: func(ctx *Context) error { return runExprCheck(program, src, ctx) },
	}, nil
}

func runExprCheck(program *vm.Program, src string, ctx *Context) error {
	env := map[string]interface{}{
		"id":             ctx.LogicalID,
		"type":           ctx.Resource.Type,
		"properties":     ctx.Resource.Properties,
		"deletionPolicy": ctx.Resource.DeletionPolicy,
		"metadata":       ctx.Resource.Metadata,
		"region":         ctx.Stack.Region(),
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return err
	}
	if ok, _ := out.(bool); !ok {
		return fmt.Errorf("resource %q failed check %q", ctx.LogicalID, src)
	}
	return nil
}
