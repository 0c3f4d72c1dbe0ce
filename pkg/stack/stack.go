// Package stack holds the concrete result of rendering a template: the
// surviving resources and outputs, plus a read-only query and assertion
// surface for tests.
package stack

import (
	"fmt"

	"github.com/cfnscope/cfnscope/pkg/errors"
)

// Stack is one rendered template. It is created once per render call and
// never shared across renders.
type Stack struct {
	region     string
	parameters map[string]interface{}
	resources  map[string]*Resource
	resOrder   []string
	outputs    map[string]*Output
	outOrder   []string
}

// New creates an empty rendered stack. The engine populates it during a
// single build pass; callers treat it as immutable afterwards.
func New(region string, parameters map[string]interface{}) *Stack {
	return &Stack{
		region:     region,
		parameters: parameters,
		resources:  map[string]*Resource{},
		outputs:    map[string]*Output{},
	}
}

// AddResource appends a rendered resource. Used by the engine while
// assembling the stack.
func (s *Stack) AddResource(r *Resource) {
	s.resources[r.LogicalID] = r
	s.resOrder = append(s.resOrder, r.LogicalID)
}

// AddOutput appends a rendered output. Used by the engine while assembling
// the stack.
func (s *Stack) AddOutput(o *Output) {
	s.outputs[o.LogicalID] = o
	s.outOrder = append(s.outOrder, o.LogicalID)
}

// Region returns the region this stack was rendered for.
func (s *Stack) Region() string { return s.region }

// Parameters returns the resolved parameter mapping used for the render.
func (s *Stack) Parameters() map[string]interface{} { return s.parameters }

// Parameter returns one resolved parameter value.
func (s *Stack) Parameter(name string) (interface{}, bool) {
	v, ok := s.parameters[name]
	return v, ok
}

// HasResource reports whether the logical id survived the render.
func (s *Stack) HasResource(id string) bool {
	_, ok := s.resources[id]
	return ok
}

// Resource fetches a rendered resource by logical id. A resource pruned by
// its condition is an explicit not-found outcome.
func (s *Stack) Resource(id string) (*Resource, error) {
	r, ok := s.resources[id]
	if !ok {
		return nil, errors.Reference(fmt.Sprintf("resource %q not found in rendered stack", id))
	}
	return r, nil
}

// Resources returns all rendered resources in declaration order.
func (s *Stack) Resources() []*Resource {
	out := make([]*Resource, 0, len(s.resOrder))
	for _, id := range s.resOrder {
		out = append(out, s.resources[id])
	}
	return out
}

// ResourcesOfType returns all rendered resources of the given type, in
// declaration order.
func (s *Stack) ResourcesOfType(resourceType string) []*Resource {
	var out []*Resource
	for _, id := range s.resOrder {
		if s.resources[id].Type == resourceType {
			out = append(out, s.resources[id])
		}
	}
	return out
}

// HasOutput reports whether the output survived the render.
func (s *Stack) HasOutput(id string) bool {
	_, ok := s.outputs[id]
	return ok
}

// Output fetches a rendered output by logical id.
func (s *Stack) Output(id string) (*Output, error) {
	o, ok := s.outputs[id]
	if !ok {
		return nil, errors.Reference(fmt.Sprintf("output %q not found in rendered stack", id))
	}
	return o, nil
}

// Outputs returns all rendered outputs in declaration order.
func (s *Stack) Outputs() []*Output {
	out := make([]*Output, 0, len(s.outOrder))
	for _, id := range s.outOrder {
		out = append(out, s.outputs[id])
	}
	return out
}

// Output is one rendered entry of the Outputs section.
type Output struct {
	LogicalID   string
	Description string
	Value       interface{}
	ExportName  interface{}
	HasExport   bool
}
