package engine

import (
	"fmt"

	"github.com/cfnscope/cfnscope/pkg/errors"
)

// conditionEvaluator resolves declared conditions lazily, memoizing each
// result. Conditions may reference each other; the in-progress chain is
// tracked so a cycle reports the exact path instead of blowing the stack.
type conditionEvaluator struct {
	ctx    *evalContext
	values map[string]bool
	chain  []string
	active map[string]bool
}

func newConditionEvaluator(ctx *evalContext) *conditionEvaluator {
	return &conditionEvaluator{
		ctx:    ctx,
		values: map[string]bool{},
		active: map[string]bool{},
	}
}

// evalAll materializes every declared condition.
func (c *conditionEvaluator) evalAll() error {
	for _, name := range c.ctx.tpl.ConditionOrder() {
		if _, err := c.value(name); err != nil {
			return err
		}
	}
	return nil
}

// value returns the boolean value of a named condition, evaluating it on
// first reference.
func (c *conditionEvaluator) value(name string) (bool, error) {
	if v, ok := c.values[name]; ok {
		return v, nil
	}

	expr, ok := c.ctx.tpl.Condition(name)
	if !ok {
		return false, errors.Reference(fmt.Sprintf("condition %q not found in template", name))
	}

	if c.active[name] {
		return false, errors.ConditionCycle(append(append([]string{}, c.chain...), name))
	}

	c.active[name] = true
	c.chain = append(c.chain, name)

	result, err := c.evalExpr(expr)

	c.chain = c.chain[:len(c.chain)-1]
	delete(c.active, name)

	if err != nil {
		return false, err
	}
	c.values[name] = result
	return result, nil
}

// evalExpr evaluates a boolean condition expression. Nested functions run
// through the full function evaluator with the same context, so Fn::Equals
// operands may themselves contain Refs, FindInMaps and so on.
func (c *conditionEvaluator) evalExpr(expr interface{}) (bool, error) {
	v, err := c.ctx.eval(expr)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("condition expression evaluated to %T, want bool", v)
	}
	return b, nil
}
