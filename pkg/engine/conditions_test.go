package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfnscope/cfnscope/pkg/errors"
	"github.com/cfnscope/cfnscope/pkg/lookup"
	"github.com/cfnscope/cfnscope/pkg/pseudo"
	"github.com/cfnscope/cfnscope/pkg/template"
)

func conditionContext(t *testing.T, conditions map[string]interface{}, params map[string]interface{}) *evalContext {
	t.Helper()
	tpl, err := template.New(map[string]interface{}{"Conditions": conditions})
	require.NoError(t, err)
	ctx := &evalContext{
		tpl:     tpl,
		params:  params,
		pseudo:  pseudo.Defaults(),
		lookups: lookup.New(),
	}
	ctx.conds = newConditionEvaluator(ctx)
	return ctx
}

func TestConditionChaining(t *testing.T) {
	ctx := conditionContext(t, map[string]interface{}{
		"IsProd": map[string]interface{}{
			"Fn::Equals": []interface{}{map[string]interface{}{"Ref": "Env"}, "prod"},
		},
		"IsNotProd": map[string]interface{}{
			"Fn::Not": []interface{}{map[string]interface{}{"Condition": "IsProd"}},
		},
	}, map[string]interface{}{"Env": "prod"})

	require.NoError(t, ctx.conds.evalAll())

	isProd, err := ctx.conds.value("IsProd")
	require.NoError(t, err)
	assert.True(t, isProd)

	isNotProd, err := ctx.conds.value("IsNotProd")
	require.NoError(t, err)
	assert.False(t, isNotProd)
}

func TestConditionCombinators(t *testing.T) {
	ctx := conditionContext(t, map[string]interface{}{
		"A": map[string]interface{}{"Fn::Equals": []interface{}{"x", "x"}},
		"B": map[string]interface{}{"Fn::Equals": []interface{}{"x", "y"}},
		"Both": map[string]interface{}{
			"Fn::And": []interface{}{
				map[string]interface{}{"Condition": "A"},
				map[string]interface{}{"Condition": "B"},
			},
		},
		"Either": map[string]interface{}{
			"Fn::Or": []interface{}{
				map[string]interface{}{"Condition": "A"},
				map[string]interface{}{"Condition": "B"},
			},
		},
	}, nil)

	require.NoError(t, ctx.conds.evalAll())

	both, err := ctx.conds.value("Both")
	require.NoError(t, err)
	assert.False(t, both)

	either, err := ctx.conds.value("Either")
	require.NoError(t, err)
	assert.True(t, either)
}

func TestConditionCycleDetected(t *testing.T) {
	ctx := conditionContext(t, map[string]interface{}{
		"First": map[string]interface{}{
			"Fn::Not": []interface{}{map[string]interface{}{"Condition": "Second"}},
		},
		"Second": map[string]interface{}{
			"Fn::Not": []interface{}{map[string]interface{}{"Condition": "First"}},
		},
	}, nil)

	err := ctx.conds.evalAll()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConditionCycle))
	assert.Contains(t, err.Error(), "First")
	assert.Contains(t, err.Error(), "Second")
}

func TestConditionSelfCycle(t *testing.T) {
	ctx := conditionContext(t, map[string]interface{}{
		"Loop": map[string]interface{}{
			"Fn::Not": []interface{}{map[string]interface{}{"Condition": "Loop"}},
		},
	}, nil)

	err := ctx.conds.evalAll()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConditionCycle))
}

func TestConditionUnknownName(t *testing.T) {
	ctx := conditionContext(t, map[string]interface{}{
		"Valid": map[string]interface{}{"Fn::Equals": []interface{}{"x", "x"}},
	}, nil)

	_, err := ctx.conds.value("Missing")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeReference))
	assert.Contains(t, err.Error(), "Missing")
}

func TestConditionNonBooleanExpression(t *testing.T) {
	ctx := conditionContext(t, map[string]interface{}{
		"Bad": map[string]interface{}{"Fn::Join": []interface{}{"-", []interface{}{"a", "b"}}},
	}, nil)

	err := ctx.conds.evalAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want bool")
}

func TestResourceWithUnknownCondition(t *testing.T) {
	tpl, err := template.New(map[string]interface{}{
		"Resources": map[string]interface{}{
			"Topic": map[string]interface{}{
				"Type":      "AWS::SNS::Topic",
				"Condition": "Missing",
			},
		},
	})
	require.NoError(t, err)

	_, err = New(tpl).Render(nil, "")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeReference))
}
