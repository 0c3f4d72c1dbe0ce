// Package template models a CloudFormation template document and loads it
// from YAML or JSON into canonical long-form intrinsic functions.
package template

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/cfnscope/cfnscope/pkg/errors"
)

// MetadataKey is the reserved metadata namespace read by the engine. A
// template or resource Metadata block may carry a map under this key with:
//
//	ref:              literal to return for a Ref to the resource
//	attribute-values: map of attribute name -> value returned by Fn::GetAtt
//	skip-hooks:       list of hook names to skip for this entity
const MetadataKey = "CfnScope"

// Metadata subkeys.
const (
	MetadataRef             = "ref"
	MetadataAttributeValues = "attribute-values"
	MetadataSkipHooks       = "skip-hooks"
)

// knownTransforms are the macro names a template may declare in its
// Transform section. Anything else fails at load.
var knownTransforms = map[string]bool{
	"AWS::CodeDeployBlueGreen":        true,
	"AWS::Include":                    true,
	"AWS::LanguageExtensions":         true,
	"AWS::SecretsManager-2020-07-23":  true,
	"AWS::Serverless-2016-10-31":      true,
	"AWS::ServiceCatalog":             true,
}

// ParameterSpec declares a single template parameter and its constraints.
type ParameterSpec struct {
	Name           string
	Type           string
	Default        interface{}
	HasDefault     bool
	AllowedValues  []interface{}
	AllowedPattern string
	MinLength      *int
	MaxLength      *int
	MinValue       *float64
	MaxValue       *float64
	NoEcho         bool
	Description    string
}

// Resource is one entry of the Resources section. Properties and Metadata
// may contain intrinsic-function nodes in canonical form.
type Resource struct {
	LogicalID           string
	Type                string
	Condition           string
	DeletionPolicy      string
	UpdateReplacePolicy string
	DependsOn           []string
	Properties          map[string]interface{}
	Metadata            map[string]interface{}
}

// ScopeMetadata returns the resource's reserved metadata map, or nil.
func (r *Resource) ScopeMetadata() map[string]interface{} {
	return scopeMetadata(r.Metadata)
}

// RefOverride returns the metadata-declared Ref replacement value, if any.
func (r *Resource) RefOverride() (interface{}, bool) {
	meta := r.ScopeMetadata()
	if meta == nil {
		return nil, false
	}
	v, ok := meta[MetadataRef]
	return v, ok
}

// AttributeOverride returns the metadata-declared value for an attribute
// name, if any. The value may be any shape (scalar, list or mapping).
func (r *Resource) AttributeOverride(attr string) (interface{}, bool) {
	meta := r.ScopeMetadata()
	if meta == nil {
		return nil, false
	}
	values, ok := meta[MetadataAttributeValues].(map[string]interface{})
	if !ok {
		return nil, false
	}
	v, ok := values[attr]
	return v, ok
}

// SkipHooks returns the hook names suppressed for this resource.
func (r *Resource) SkipHooks() []string {
	return skipHooks(r.ScopeMetadata())
}

// Output is one entry of the Outputs section.
type Output struct {
	LogicalID   string
	Condition   string
	Description string
	Value       interface{}
	Export      interface{}
	HasExport   bool
}

// Template is the immutable raw document. The engine only reads it; a
// Template may be rendered many times with different parameters and regions.
type Template struct {
	description string
	transforms  []string
	parameters  map[string]*ParameterSpec
	paramOrder  []string
	mappings    map[string]interface{}
	conditions  map[string]interface{}
	condOrder   []string
	resources   map[string]*Resource
	resOrder    []string
	outputs     map[string]*Output
	outOrder    []string
	metadata    map[string]interface{}
}

// New builds a Template from a canonical-form document tree (long-form
// intrinsic functions only). Section entries are ordered alphabetically;
// use Load/LoadBytes to preserve the document's declaration order.
func New(doc map[string]interface{}) (*Template, error) {
	return build(doc, nil)
}

func build(doc map[string]interface{}, orders map[string][]string) (*Template, error) {
	t := &Template{
		parameters: map[string]*ParameterSpec{},
		mappings:   map[string]interface{}{},
		conditions: map[string]interface{}{},
		resources:  map[string]*Resource{},
		outputs:    map[string]*Output{},
	}

	if d, ok := doc["Description"].(string); ok {
		t.description = d
	}

	if raw, ok := doc["Transform"]; ok {
		transforms, err := parseTransforms(raw)
		if err != nil {
			return nil, err
		}
		t.transforms = transforms
	}

	if raw, ok := doc["Metadata"]; ok {
		meta, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, "Metadata section must be a mapping")
		}
		t.metadata = meta
	}

	if raw, ok := doc["Mappings"]; ok {
		maps, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, "Mappings section must be a mapping")
		}
		t.mappings = maps
	}

	if raw, ok := doc["Parameters"]; ok {
		section, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, "Parameters section must be a mapping")
		}
		t.paramOrder = sectionOrder(section, orders, "Parameters")
		for _, name := range t.paramOrder {
			spec, err := parseParameterSpec(name, section[name])
			if err != nil {
				return nil, err
			}
			t.parameters[name] = spec
		}
	}

	if raw, ok := doc["Conditions"]; ok {
		section, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, "Conditions section must be a mapping")
		}
		t.condOrder = sectionOrder(section, orders, "Conditions")
		t.conditions = section
	}

	if raw, ok := doc["Resources"]; ok {
		section, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, "Resources section must be a mapping")
		}
		t.resOrder = sectionOrder(section, orders, "Resources")
		for _, id := range t.resOrder {
			res, err := parseResource(id, section[id])
			if err != nil {
				return nil, err
			}
			t.resources[id] = res
		}
	}

	if raw, ok := doc["Outputs"]; ok {
		section, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, "Outputs section must be a mapping")
		}
		t.outOrder = sectionOrder(section, orders, "Outputs")
		for _, id := range t.outOrder {
			out, err := parseOutput(id, section[id])
			if err != nil {
				return nil, err
			}
			t.outputs[id] = out
		}
	}

	return t, nil
}

// Description returns the template description.
func (t *Template) Description() string { return t.description }

// Transforms returns the declared macro names.
func (t *Template) Transforms() []string { return t.transforms }

// HasTransform reports whether the template declares the named macro.
func (t *Template) HasTransform(name string) bool {
	for _, tr := range t.transforms {
		if tr == name {
			return true
		}
	}
	return false
}

// Parameter returns the declared spec for name.
func (t *Template) Parameter(name string) (*ParameterSpec, bool) {
	p, ok := t.parameters[name]
	return p, ok
}

// ParameterOrder returns declared parameter names in order.
func (t *Template) ParameterOrder() []string { return t.paramOrder }

// Mapping returns the named lookup table from the Mappings section.
func (t *Template) Mapping(name string) (interface{}, bool) {
	m, ok := t.mappings[name]
	return m, ok
}

// Condition returns the named condition expression.
func (t *Template) Condition(name string) (interface{}, bool) {
	c, ok := t.conditions[name]
	return c, ok
}

// ConditionOrder returns declared condition names in order.
func (t *Template) ConditionOrder() []string { return t.condOrder }

// Resource returns the named resource definition.
func (t *Template) Resource(id string) (*Resource, bool) {
	r, ok := t.resources[id]
	return r, ok
}

// ResourceOrder returns resource logical ids in declaration order.
func (t *Template) ResourceOrder() []string { return t.resOrder }

// Output returns the named output definition.
func (t *Template) Output(id string) (*Output, bool) {
	o, ok := t.outputs[id]
	return o, ok
}

// OutputOrder returns output logical ids in declaration order.
func (t *Template) OutputOrder() []string { return t.outOrder }

// Metadata returns the template Metadata section, or nil.
func (t *Template) Metadata() map[string]interface{} { return t.metadata }

// SkipHooks returns the hook names suppressed at the template level.
func (t *Template) SkipHooks() []string {
	return skipHooks(scopeMetadata(t.metadata))
}

func scopeMetadata(meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		return nil
	}
	scoped, _ := meta[MetadataKey].(map[string]interface{})
	return scoped
}

func skipHooks(meta map[string]interface{}) []string {
	if meta == nil {
		return nil
	}
	raw, ok := meta[MetadataSkipHooks].([]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, n := range raw {
		if s, ok := n.(string); ok {
			names = append(names, s)
		}
	}
	return names
}

func sectionOrder(section map[string]interface{}, orders map[string][]string, name string) []string {
	if orders != nil {
		if order, ok := orders[name]; ok {
			return order
		}
	}
	keys := make([]string, 0, len(section))
	for k := range section {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseTransforms(raw interface{}) ([]string, error) {
	var names []string
	switch v := raw.(type) {
	case string:
		names = []string{v}
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New(errors.ErrCodeParse, "Transform entries must be strings")
			}
			names = append(names, s)
		}
	default:
		return nil, errors.New(errors.ErrCodeParse, "Transform must be a string or list of strings")
	}
	for _, name := range names {
		if !knownTransforms[name] {
			return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("unknown transform %q", name))
		}
	}
	return names, nil
}

func parseParameterSpec(name string, raw interface{}) (*ParameterSpec, error) {
	def, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("parameter %q must be a mapping", name))
	}

	spec := &ParameterSpec{Name: name}

	pType, ok := def["Type"].(string)
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("parameter %q has no Type", name))
	}
	spec.Type = pType

	if d, ok := def["Default"]; ok {
		spec.Default = d
		spec.HasDefault = true
	}
	if av, ok := def["AllowedValues"].([]interface{}); ok {
		spec.AllowedValues = av
	}
	if ap, ok := def["AllowedPattern"].(string); ok {
		spec.AllowedPattern = ap
	}
	if desc, ok := def["Description"].(string); ok {
		spec.Description = desc
	}
	if ne, ok := def["NoEcho"].(bool); ok {
		spec.NoEcho = ne
	}

	var err error
	if spec.MinLength, err = intField(def, "MinLength", name); err != nil {
		return nil, err
	}
	if spec.MaxLength, err = intField(def, "MaxLength", name); err != nil {
		return nil, err
	}
	if spec.MinValue, err = floatField(def, "MinValue", name); err != nil {
		return nil, err
	}
	if spec.MaxValue, err = floatField(def, "MaxValue", name); err != nil {
		return nil, err
	}

	return spec, nil
}

func parseResource(id string, raw interface{}) (*Resource, error) {
	def, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("resource %q must be a mapping", id))
	}

	res := &Resource{LogicalID: id}

	rType, ok := def["Type"].(string)
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("resource %q has no Type", id))
	}
	res.Type = rType

	if c, ok := def["Condition"].(string); ok {
		res.Condition = c
	}
	if dp, ok := def["DeletionPolicy"].(string); ok {
		res.DeletionPolicy = dp
	}
	if urp, ok := def["UpdateReplacePolicy"].(string); ok {
		res.UpdateReplacePolicy = urp
	}
	if props, ok := def["Properties"].(map[string]interface{}); ok {
		res.Properties = props
	}
	if meta, ok := def["Metadata"].(map[string]interface{}); ok {
		res.Metadata = meta
	}

	switch dep := def["DependsOn"].(type) {
	case string:
		res.DependsOn = []string{dep}
	case []interface{}:
		for _, d := range dep {
			if s, ok := d.(string); ok {
				res.DependsOn = append(res.DependsOn, s)
			}
		}
	}

	return res, nil
}

func parseOutput(id string, raw interface{}) (*Output, error) {
	def, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("output %q must be a mapping", id))
	}

	out := &Output{LogicalID: id}

	value, ok := def["Value"]
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("output %q has no Value", id))
	}
	out.Value = value

	if c, ok := def["Condition"].(string); ok {
		out.Condition = c
	}
	if desc, ok := def["Description"].(string); ok {
		out.Description = desc
	}
	if export, ok := def["Export"].(map[string]interface{}); ok {
		name, ok := export["Name"]
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("output %q Export has no Name", id))
		}
		out.Export = name
		out.HasExport = true
	}

	return out, nil
}

func intField(def map[string]interface{}, field, param string) (*int, error) {
	raw, ok := def[field]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case int:
		return &v, nil
	case float64:
		n := int(v)
		return &n, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("parameter %q %s must be an integer", param, field))
		}
		return &n, nil
	}
	return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("parameter %q %s must be an integer", param, field))
}

func floatField(def map[string]interface{}, field, param string) (*float64, error) {
	raw, ok := def[field]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case int:
		f := float64(v)
		return &f, nil
	case float64:
		return &v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("parameter %q %s must be numeric", param, field))
		}
		return &f, nil
	}
	return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("parameter %q %s must be numeric", param, field))
}
