package stack

import (
	"fmt"
	"sort"
)

// Convention describes what every rendered resource of one type must
// satisfy. Exactly one of Skip, Equals or Pattern applies; the value under
// test is the property at Path, or the tag named Tag when Tag is set.
type Convention struct {
	// Path is a dotted property path into the resource's properties.
	Path string

	// Tag names a tag instead of a property. TagsProperty overrides the
	// property holding the tag list (default "Tags").
	Tag          string
	TagsProperty string

	// Equals requires the value to equal this literal.
	Equals interface{}

	// Pattern requires the value to match this full-string regex.
	Pattern string

	// Skip exempts the type from checking while still marking it covered.
	Skip bool
}

// AssertConventions runs a bulk convention check: every rendered resource's
// type must be covered by the spec map, and every non-skipped resource must
// satisfy its type's convention. The first failure (in declaration order)
// is returned.
func (s *Stack) AssertConventions(specs map[string]Convention) error {
	var uncovered []string
	seen := map[string]bool{}

	for _, r := range s.Resources() {
		spec, ok := specs[r.Type]
		if !ok {
			if !seen[r.Type] {
				uncovered = append(uncovered, r.Type)
				seen[r.Type] = true
			}
			continue
		}
		if spec.Skip {
			continue
		}
		if err := checkConvention(r, spec); err != nil {
			return err
		}
	}

	if len(uncovered) > 0 {
		sort.Strings(uncovered)
		return fmt.Errorf("resource types not covered by conventions: %v", uncovered)
	}
	return nil
}

func checkConvention(r *Resource, spec Convention) error {
	switch {
	case spec.Tag != "" && spec.Pattern != "":
		if spec.TagsProperty != "" {
			return r.MatchTag(spec.Tag, spec.Pattern, spec.TagsProperty)
		}
		return r.MatchTag(spec.Tag, spec.Pattern)
	case spec.Tag != "":
		if spec.TagsProperty != "" {
			return r.AssertTag(spec.Tag, spec.Equals, spec.TagsProperty)
		}
		return r.AssertTag(spec.Tag, spec.Equals)
	case spec.Pattern != "":
		return r.MatchProperty(spec.Path, spec.Pattern)
	default:
		return r.AssertProperty(spec.Path, spec.Equals)
	}
}
