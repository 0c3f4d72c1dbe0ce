package template

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cfnscope/cfnscope/pkg/errors"
)

// Load parses a template from the given path. YAML and JSON are both
// accepted; shorthand tags (!Ref, !Sub, !GetAtt, ...) are normalized into
// canonical {"Fn::X": args} form before the engine sees them.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, fmt.Sprintf("failed to read %s", path), err)
	}
	return LoadBytes(data, path)
}

// LoadBytes parses a template from raw bytes. The source name is used in
// error messages only.
func LoadBytes(data []byte, source string) (*Template, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.ParseError(source, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("%s is empty", source))
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("%s must be a mapping at the top level", source))
	}

	tree, err := normalizeNode(doc)
	if err != nil {
		return nil, errors.ParseError(source, err)
	}

	docMap, ok := tree.(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("%s must be a mapping at the top level", source))
	}

	return build(docMap, topLevelOrders(doc))
}

// topLevelOrders records the key declaration order of the sections whose
// order is semantically meaningful (render order, first-failure order).
func topLevelOrders(doc *yaml.Node) map[string][]string {
	orders := map[string][]string{}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		section := doc.Content[i].Value
		value := doc.Content[i+1]
		switch section {
		case "Parameters", "Conditions", "Resources", "Outputs":
			if value.Kind != yaml.MappingNode {
				continue
			}
			keys := make([]string, 0, len(value.Content)/2)
			for j := 0; j+1 < len(value.Content); j += 2 {
				keys = append(keys, value.Content[j].Value)
			}
			orders[section] = keys
		}
	}
	return orders
}

// normalizeNode converts a yaml node into a generic tree, rewriting
// shorthand intrinsic tags into canonical long form.
func normalizeNode(n *yaml.Node) (interface{}, error) {
	if n.Kind == yaml.AliasNode {
		return normalizeNode(n.Alias)
	}

	if fn, ok := shorthandName(n.Tag); ok {
		return normalizeShorthand(fn, n)
	}

	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]interface{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			value, err := normalizeNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[key] = value
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]interface{}, 0, len(n.Content))
		for _, item := range n.Content {
			value, err := normalizeNode(item)
			if err != nil {
				return nil, err
			}
			s = append(s, value)
		}
		return s, nil
	case yaml.ScalarNode:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported yaml node kind %d at line %d", n.Kind, n.Line)
}

// shorthandName maps a "!X" tag to its function name, rejecting standard
// yaml tags ("!!str" and friends).
func shorthandName(tag string) (string, bool) {
	if !strings.HasPrefix(tag, "!") || strings.HasPrefix(tag, "!!") {
		return "", false
	}
	return strings.TrimPrefix(tag, "!"), true
}

func normalizeShorthand(fn string, n *yaml.Node) (interface{}, error) {
	// Strip the custom tag so the argument normalizes as plain yaml.
	arg := *n
	arg.Tag = ""
	arg.Style = 0
	if arg.Kind == yaml.ScalarNode {
		arg.Tag = "!!str"
	}

	value, err := normalizeNode(&arg)
	if err != nil {
		return nil, err
	}

	switch fn {
	case "Ref":
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("!Ref argument must be a string at line %d", n.Line)
		}
		return map[string]interface{}{"Ref": name}, nil
	case "Condition":
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("!Condition argument must be a string at line %d", n.Line)
		}
		return map[string]interface{}{"Condition": name}, nil
	case "GetAtt":
		// !GetAtt Logical.Attr.SubAttr splits on the first dot only.
		if s, ok := value.(string); ok {
			parts := strings.SplitN(s, ".", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("!GetAtt %q must be Resource.Attribute at line %d", s, n.Line)
			}
			return map[string]interface{}{"Fn::GetAtt": []interface{}{parts[0], parts[1]}}, nil
		}
		return map[string]interface{}{"Fn::GetAtt": value}, nil
	default:
		return map[string]interface{}{"Fn::" + fn: value}, nil
	}
}
