package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/cfnscope/cfnscope/pkg/errors"
	"github.com/cfnscope/cfnscope/pkg/lookup"
	"github.com/cfnscope/cfnscope/pkg/template"
)

// ssmKeyPattern is the accepted syntax for an SSM parameter name used as
// the value of an AWS::SSM::Parameter::Value<T> parameter.
var ssmKeyPattern = regexp.MustCompile(`\A[A-Za-z0-9_./-]+\z`)

// resolveParameters validates every declared parameter against its
// constraints and produces the name -> value mapping used by the rest of
// the render. Validation is fail-fast in declaration order; an undeclared
// supplied name fails first.
func resolveParameters(tpl *template.Template, supplied map[string]interface{}, lookups lookup.Tables) (map[string]interface{}, error) {
	var unknown []string
	for name := range supplied {
		if _, ok := tpl.Parameter(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.Reference(fmt.Sprintf("parameter %q is not declared in the template", unknown[0]))
	}

	resolved := make(map[string]interface{}, len(tpl.ParameterOrder()))
	for _, name := range tpl.ParameterOrder() {
		spec, _ := tpl.Parameter(name)

		value, ok := supplied[name]
		if !ok {
			if !spec.HasDefault {
				return nil, errors.MissingParameter(name)
			}
			value = spec.Default
		}

		final, err := resolveParameter(spec, value, lookups)
		if err != nil {
			return nil, err
		}
		resolved[name] = final
	}
	return resolved, nil
}

func resolveParameter(spec *template.ParameterSpec, value interface{}, lookups lookup.Tables) (interface{}, error) {
	if inner, ok := ssmBackedType(spec.Type); ok {
		return resolveSSMParameter(spec, value, inner, lookups)
	}

	if isListType(spec.Type) {
		return validateListValue(spec, value)
	}
	return validateScalarValue(spec, value)
}

// ssmBackedType reports whether the declared type resolves through the ssm
// lookup table, returning the inner type.
func ssmBackedType(t string) (string, bool) {
	const prefix = "AWS::SSM::Parameter::Value<"
	if !strings.HasPrefix(t, prefix) || !strings.HasSuffix(t, ">") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(t, prefix), ">"), true
}

func isListType(t string) bool {
	return t == "CommaDelimitedList" || strings.HasPrefix(t, "List<")
}

func resolveSSMParameter(spec *template.ParameterSpec, value interface{}, inner string, lookups lookup.Tables) (interface{}, error) {
	key, ok := scalarString(value)
	if !ok || !ssmKeyPattern.MatchString(key) {
		return nil, errors.ConstraintViolation(spec.Name, "Type", value)
	}

	resolved, err := lookups.Resolve(lookup.TableSSM, key)
	if err != nil {
		return nil, err
	}

	if isListType(inner) {
		s, ok := scalarString(resolved)
		if !ok {
			return splitOrKeepList(resolved)
		}
		return splitList(s), nil
	}
	return resolved, nil
}

func validateScalarValue(spec *template.ParameterSpec, value interface{}) (interface{}, error) {
	s, ok := scalarString(value)
	if !ok {
		return nil, errors.ConstraintViolation(spec.Name, "Type", value)
	}

	if spec.Type == "Number" {
		n, err := numericValue(s)
		if err != nil {
			return nil, errors.ConstraintViolation(spec.Name, "Type", value)
		}
		if spec.MinValue != nil && n < *spec.MinValue {
			return nil, errors.ConstraintViolation(spec.Name, "MinValue", value)
		}
		if spec.MaxValue != nil && n > *spec.MaxValue {
			return nil, errors.ConstraintViolation(spec.Name, "MaxValue", value)
		}
	}

	if spec.MinLength != nil && len(s) < *spec.MinLength {
		return nil, errors.ConstraintViolation(spec.Name, "MinLength", value)
	}
	if spec.MaxLength != nil && len(s) > *spec.MaxLength {
		return nil, errors.ConstraintViolation(spec.Name, "MaxLength", value)
	}

	if err := checkAllowedValues(spec, s, value); err != nil {
		return nil, err
	}

	if spec.AllowedPattern != "" {
		re, err := regexp.Compile(`\A(?:` + spec.AllowedPattern + `)\z`)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeParse,
				fmt.Sprintf("parameter %q has an invalid AllowedPattern", spec.Name), err)
		}
		if !re.MatchString(s) {
			return nil, errors.ConstraintViolation(spec.Name, "AllowedPattern", value)
		}
	}

	return value, nil
}

func validateListValue(spec *template.ParameterSpec, value interface{}) (interface{}, error) {
	var items []interface{}
	if s, ok := scalarString(value); ok {
		items = splitList(s)
	} else if list, ok := value.([]interface{}); ok {
		items = list
	} else {
		return nil, errors.ConstraintViolation(spec.Name, "Type", value)
	}

	if spec.Type == "List<Number>" {
		for _, item := range items {
			s, ok := scalarString(item)
			if !ok {
				return nil, errors.ConstraintViolation(spec.Name, "Type", value)
			}
			if _, err := numericValue(s); err != nil {
				return nil, errors.ConstraintViolation(spec.Name, "Type", value)
			}
		}
	}

	// Length constraints count elements for list types.
	if spec.MinLength != nil && len(items) < *spec.MinLength {
		return nil, errors.ConstraintViolation(spec.Name, "MinLength", value)
	}
	if spec.MaxLength != nil && len(items) > *spec.MaxLength {
		return nil, errors.ConstraintViolation(spec.Name, "MaxLength", value)
	}

	return items, nil
}

func checkAllowedValues(spec *template.ParameterSpec, s string, value interface{}) error {
	if len(spec.AllowedValues) == 0 {
		return nil
	}
	for _, allowed := range spec.AllowedValues {
		as, ok := scalarString(allowed)
		if ok && as == s {
			return nil
		}
	}
	return errors.ConstraintViolation(spec.Name, "AllowedValues", value)
}

// numericValue parses a Number parameter through cty's conversion rules, so
// anything cty accepts as a number (int, float, exponent form) validates.
func numericValue(s string) (float64, error) {
	v, err := convert.Convert(cty.StringVal(s), cty.Number)
	if err != nil {
		return 0, err
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

func splitList(s string) []interface{} {
	parts := strings.Split(s, ",")
	items := make([]interface{}, len(parts))
	for i, p := range parts {
		items[i] = p
	}
	return items
}

func splitOrKeepList(v interface{}) ([]interface{}, error) {
	if list, ok := v.([]interface{}); ok {
		return list, nil
	}
	return nil, fmt.Errorf("expected a list value, got %T", v)
}
