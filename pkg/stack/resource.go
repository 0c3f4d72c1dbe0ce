package stack

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ohler55/ojg/jp"

	"github.com/cfnscope/cfnscope/pkg/errors"
)

// DefaultTagsProperty is the property holding the tag list when none is
// named explicitly.
const DefaultTagsProperty = "Tags"

// Resource is one rendered entry of the Resources section. Its property
// tree is fully concrete: every intrinsic function has been evaluated.
type Resource struct {
	LogicalID           string
	Type                string
	DeletionPolicy      string
	UpdateReplacePolicy string
	Properties          map[string]interface{}
	Metadata            map[string]interface{}
}

// PropertyValue fetches a property by dotted path, e.g.
// "RedrivePolicy.deadLetterTargetArn" or "Subnets[1]".
func (r *Resource) PropertyValue(path string) (interface{}, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeReference, fmt.Sprintf("invalid property path %q", path), err)
	}
	results := expr.Get(r.Properties)
	if len(results) == 0 {
		return nil, errors.Reference(fmt.Sprintf("resource %q has no property at %q", r.LogicalID, path))
	}
	return results[0], nil
}

// HasProperty reports whether the dotted path resolves to a value.
func (r *Resource) HasProperty(path string) bool {
	_, err := r.PropertyValue(path)
	return err == nil
}

// AssertProperty checks that the property at path equals want. Scalars
// compare by canonical string form, so a yaml 5 matches a json 5.0.
func (r *Resource) AssertProperty(path string, want interface{}) error {
	got, err := r.PropertyValue(path)
	if err != nil {
		return err
	}
	if !looseEqual(got, want) {
		return fmt.Errorf("resource %q property %q is %v, want %v", r.LogicalID, path, got, want)
	}
	return nil
}

// MatchProperty checks that the property at path matches the pattern. The
// pattern is anchored to the full string.
func (r *Resource) MatchProperty(path string, pattern string) error {
	got, err := r.PropertyValue(path)
	if err != nil {
		return err
	}
	return matchValue(fmt.Sprintf("resource %q property %q", r.LogicalID, path), got, pattern)
}

// Tag fetches a tag value by tag key from the resource's tag-list property
// (a list of {Key, Value} mappings). The property name defaults to "Tags".
func (r *Resource) Tag(name string, tagsProperty ...string) (interface{}, error) {
	prop := DefaultTagsProperty
	if len(tagsProperty) > 0 {
		prop = tagsProperty[0]
	}
	raw, err := r.PropertyValue(prop)
	if err != nil {
		return nil, err
	}
	tags, ok := raw.([]interface{})
	if !ok {
		return nil, errors.Reference(fmt.Sprintf("resource %q property %q is not a tag list", r.LogicalID, prop))
	}
	for _, item := range tags {
		tag, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if tag["Key"] == name {
			return tag["Value"], nil
		}
	}
	return nil, errors.Reference(fmt.Sprintf("resource %q has no tag %q in %q", r.LogicalID, name, prop))
}

// AssertTag checks that the tag equals want.
func (r *Resource) AssertTag(name string, want interface{}, tagsProperty ...string) error {
	got, err := r.Tag(name, tagsProperty...)
	if err != nil {
		return err
	}
	if !looseEqual(got, want) {
		return fmt.Errorf("resource %q tag %q is %v, want %v", r.LogicalID, name, got, want)
	}
	return nil
}

// MatchTag checks that the tag matches the pattern.
func (r *Resource) MatchTag(name string, pattern string, tagsProperty ...string) error {
	got, err := r.Tag(name, tagsProperty...)
	if err != nil {
		return err
	}
	return matchValue(fmt.Sprintf("resource %q tag %q", r.LogicalID, name), got, pattern)
}

func matchValue(what string, got interface{}, pattern string) error {
	s, ok := scalarString(got)
	if !ok {
		return fmt.Errorf("%s is not a scalar, cannot match %q", what, pattern)
	}
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if !re.MatchString(s) {
		return fmt.Errorf("%s value %q does not match %q", what, s, pattern)
	}
	return nil
}

func looseEqual(got, want interface{}) bool {
	gs, gok := scalarString(got)
	ws, wok := scalarString(want)
	if gok && wok {
		return gs == ws
	}
	return deepEqual(got, want)
}

func deepEqual(got, want interface{}) bool {
	switch g := got.(type) {
	case map[string]interface{}:
		w, ok := want.(map[string]interface{})
		if !ok || len(g) != len(w) {
			return false
		}
		for k, gv := range g {
			wv, ok := w[k]
			if !ok || !looseEqual(gv, wv) {
				return false
			}
		}
		return true
	case []interface{}:
		w, ok := want.([]interface{})
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range g {
			if !looseEqual(g[i], w[i]) {
				return false
			}
		}
		return true
	}
	return got == want
}

// scalarString canonicalizes a scalar for comparison and pattern matching.
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
