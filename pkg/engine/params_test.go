package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfnscope/cfnscope/pkg/errors"
	"github.com/cfnscope/cfnscope/pkg/lookup"
	"github.com/cfnscope/cfnscope/pkg/template"
)

func paramTemplate(t *testing.T, params map[string]interface{}) *template.Template {
	t.Helper()
	tpl, err := template.New(map[string]interface{}{"Parameters": params})
	require.NoError(t, err)
	return tpl
}

func TestResolveParametersDefaults(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"Env": map[string]interface{}{
			"Type":    "String",
			"Default": "dev",
		},
	})

	resolved, err := resolveParameters(tpl, nil, lookup.New())
	require.NoError(t, err)
	assert.Equal(t, "dev", resolved["Env"])

	resolved, err = resolveParameters(tpl, map[string]interface{}{"Env": "prod"}, lookup.New())
	require.NoError(t, err)
	assert.Equal(t, "prod", resolved["Env"])
}

func TestResolveParametersMissingRequired(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"Env": map[string]interface{}{"Type": "String"},
	})

	_, err := resolveParameters(tpl, nil, lookup.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMissingParameter))
	assert.Contains(t, err.Error(), "Env")
}

func TestResolveParametersRejectsUndeclared(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"Env": map[string]interface{}{"Type": "String", "Default": "dev"},
	})

	_, err := resolveParameters(tpl, map[string]interface{}{"Typo": "x"}, lookup.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeReference))
	assert.Contains(t, err.Error(), "Typo")
}

func TestResolveParametersNumberConstraints(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"Count": map[string]interface{}{
			"Type":     "Number",
			"MinValue": 1,
			"MaxValue": 10,
		},
	})

	cases := []struct {
		value      interface{}
		constraint errors.ErrorCode
	}{
		{5, ""},
		{"5", ""},
		{"2.5", ""},
		{0, errors.ErrCodeConstraintViolation},
		{11, errors.ErrCodeConstraintViolation},
		{"not-a-number", errors.ErrCodeConstraintViolation},
	}
	for _, tc := range cases {
		_, err := resolveParameters(tpl, map[string]interface{}{"Count": tc.value}, lookup.New())
		if tc.constraint == "" {
			require.NoError(t, err, "value %v", tc.value)
			continue
		}
		require.Error(t, err, "value %v", tc.value)
		assert.True(t, errors.HasCode(err, tc.constraint))
	}
}

func TestResolveParametersAllowedValues(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"Stage": map[string]interface{}{
			"Type":          "String",
			"AllowedValues": []interface{}{"dev", "prod"},
		},
	})

	_, err := resolveParameters(tpl, map[string]interface{}{"Stage": "prod"}, lookup.New())
	require.NoError(t, err)

	_, err = resolveParameters(tpl, map[string]interface{}{"Stage": "staging"}, lookup.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConstraintViolation))
}

func TestResolveParametersCommaDelimitedList(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"Subnets": map[string]interface{}{"Type": "CommaDelimitedList"},
	})

	resolved, err := resolveParameters(tpl, map[string]interface{}{
		"Subnets": "subnet-1,subnet-2",
	}, lookup.New())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"subnet-1", "subnet-2"}, resolved["Subnets"])
}

func TestResolveParametersListOfNumbers(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"Ports": map[string]interface{}{"Type": "List<Number>"},
	})

	resolved, err := resolveParameters(tpl, map[string]interface{}{"Ports": "80,443"}, lookup.New())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"80", "443"}, resolved["Ports"])

	_, err = resolveParameters(tpl, map[string]interface{}{"Ports": "80,http"}, lookup.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConstraintViolation))
}

func TestResolveParametersListLengthCountsElements(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"Subnets": map[string]interface{}{
			"Type":      "CommaDelimitedList",
			"MinLength": 2,
		},
	})

	_, err := resolveParameters(tpl, map[string]interface{}{"Subnets": "subnet-1"}, lookup.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConstraintViolation))

	_, err = resolveParameters(tpl, map[string]interface{}{"Subnets": "subnet-1,subnet-2"}, lookup.New())
	require.NoError(t, err)
}

func TestResolveParametersSSMBacked(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"AmiId": map[string]interface{}{
			"Type": "AWS::SSM::Parameter::Value<String>",
		},
		"Zones": map[string]interface{}{
			"Type": "AWS::SSM::Parameter::Value<List<String>>",
		},
	})

	lookups := lookup.New().
		Set(lookup.TableSSM, "/golden/ami", "ami-0abc").
		Set(lookup.TableSSM, "/network/zones", "us-east-1a,us-east-1b")

	resolved, err := resolveParameters(tpl, map[string]interface{}{
		"AmiId": "/golden/ami",
		"Zones": "/network/zones",
	}, lookups)
	require.NoError(t, err)
	assert.Equal(t, "ami-0abc", resolved["AmiId"])
	assert.Equal(t, []interface{}{"us-east-1a", "us-east-1b"}, resolved["Zones"])
}

func TestResolveParametersSSMKeyMissing(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"AmiId": map[string]interface{}{
			"Type": "AWS::SSM::Parameter::Value<String>",
		},
	})

	_, err := resolveParameters(tpl, map[string]interface{}{"AmiId": "/no/such/key"}, lookup.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLookupKeyNotFound))
	assert.Contains(t, err.Error(), "/no/such/key")
}

func TestResolveParametersSSMKeySyntax(t *testing.T) {
	tpl := paramTemplate(t, map[string]interface{}{
		"AmiId": map[string]interface{}{
			"Type": "AWS::SSM::Parameter::Value<String>",
		},
	})

	_, err := resolveParameters(tpl, map[string]interface{}{"AmiId": "bad key!"}, lookup.New())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConstraintViolation))
}

func TestResolveParametersDeclarationOrderFailFast(t *testing.T) {
	// template.New orders sections alphabetically, so Alpha fails first.
	tpl := paramTemplate(t, map[string]interface{}{
		"Alpha": map[string]interface{}{"Type": "String"},
		"Beta":  map[string]interface{}{"Type": "String"},
	})

	_, err := resolveParameters(tpl, nil, lookup.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Alpha")
}
