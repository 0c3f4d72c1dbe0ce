package engine

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/cfnscope/cfnscope/pkg/lookup"
	"github.com/cfnscope/cfnscope/pkg/pseudo"
	"github.com/cfnscope/cfnscope/pkg/template"
)

// evalContext is the immutable evaluation state for one render: resolved
// parameters, the condition evaluator, pseudo values and lookup tables.
// It is threaded through every call; nothing here is process-global.
type evalContext struct {
	tpl     *template.Template
	params  map[string]interface{}
	pseudo  pseudo.Values
	lookups lookup.Tables
	conds   *conditionEvaluator
}

// dynamicRef matches {{resolve:service:key}} scalar strings. The key may
// itself contain colons (secretsmanager references do).
var dynamicRef = regexp.MustCompile(`\{\{resolve:([a-zA-Z0-9-]+):([^}]+)\}\}`)

// eval resolves any node into a concrete value. Function arguments are
// evaluated eagerly, depth first; sequence elements and mapping values that
// come back as the no-value sentinel are omitted from their container.
func (ctx *evalContext) eval(node interface{}) (interface{}, error) {
	switch n := node.(type) {
	case map[string]interface{}:
		tag, args, isFn, err := parseFunctionNode(n)
		if err != nil {
			return nil, err
		}
		if isFn {
			return ctx.apply(tag, args)
		}
		out := make(map[string]interface{}, len(n))
		for key, value := range n {
			ev, err := ctx.eval(value)
			if err != nil {
				return nil, err
			}
			if pseudo.IsNoValue(ev) {
				continue
			}
			out[key] = ev
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, 0, len(n))
		for _, item := range n {
			ev, err := ctx.eval(item)
			if err != nil {
				return nil, err
			}
			if pseudo.IsNoValue(ev) {
				continue
			}
			out = append(out, ev)
		}
		return out, nil
	case string:
		return ctx.evalString(n)
	default:
		return node, nil
	}
}

// evalString resolves dynamic references embedded in a scalar. A string
// that is exactly one reference keeps the looked-up value's shape; embedded
// references are stringified in place.
func (ctx *evalContext) evalString(s string) (interface{}, error) {
	if !dynamicRef.MatchString(s) {
		return s, nil
	}

	if m := dynamicRef.FindStringSubmatch(s); m != nil && m[0] == s {
		return ctx.lookups.Resolve(m[1], m[2])
	}

	var resolveErr error
	replaced := dynamicRef.ReplaceAllStringFunc(s, func(match string) string {
		m := dynamicRef.FindStringSubmatch(match)
		value, err := ctx.lookups.Resolve(m[1], m[2])
		if err != nil {
			if resolveErr == nil {
				resolveErr = err
			}
			return match
		}
		str, ok := scalarString(value)
		if !ok {
			if resolveErr == nil {
				resolveErr = fmt.Errorf("dynamic reference %s resolves to a non-scalar value", match)
			}
			return match
		}
		return str
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return replaced, nil
}

// scalarString canonicalizes a scalar value for comparison, joining and
// substitution.
func scalarString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	}
	return "", false
}

// equalValues implements Fn::Equals: scalars compare by canonical string
// identity, containers structurally.
func equalValues(a, b interface{}) bool {
	as, aok := scalarString(a)
	bs, bok := scalarString(b)
	if aok && bok {
		return as == bs
	}
	if aok != bok {
		return false
	}
	switch av := a.(type) {
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !equalValues(v, w) {
				return false
			}
		}
		return true
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalValues(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

// intValue converts an index-like argument (int, whole float, numeric
// string) into an int.
func intValue(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%T is not an integer", v)
}
