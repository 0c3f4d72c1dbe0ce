package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cfnscope/cfnscope/pkg/errors"
)

// LoadParameterFile reads a parameter document from disk. Two external
// formats are recognized, in YAML or JSON:
//
//	{"Parameters": {"Name": "value", ...}}
//	[{"ParameterKey": "Name", "ParameterValue": "value"}, ...]
//
// Both normalize to a plain name -> value mapping.
func LoadParameterFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, fmt.Sprintf("failed to read %s", path), err)
	}
	return ParseParameterDocument(data, path)
}

// ParseParameterDocument normalizes a parameter document from raw bytes.
func ParseParameterDocument(data []byte, source string) (map[string]interface{}, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ParseError(source, err)
	}

	switch v := doc.(type) {
	case map[string]interface{}:
		return parseNamedObjectForm(v, source)
	case []interface{}:
		return parsePairListForm(v, source)
	}
	return nil, errors.New(errors.ErrCodeParse,
		fmt.Sprintf("%s must be a Parameters object or a ParameterKey/ParameterValue list", source))
}

func parseNamedObjectForm(doc map[string]interface{}, source string) (map[string]interface{}, error) {
	raw, ok := doc["Parameters"]
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("%s has no Parameters key", source))
	}
	params, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("%s Parameters must be a mapping", source))
	}
	return params, nil
}

func parsePairListForm(doc []interface{}, source string) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(doc))
	for i, item := range doc {
		pair, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("%s entry %d must be a mapping", source, i))
		}
		key, ok := pair["ParameterKey"].(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("%s entry %d has no ParameterKey", source, i))
		}
		value, ok := pair["ParameterValue"]
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, fmt.Sprintf("%s entry %d has no ParameterValue", source, i))
		}
		params[key] = value
	}
	return params, nil
}
