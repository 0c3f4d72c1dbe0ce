package hooks

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cfnscope/cfnscope/pkg/errors"
)

// fileConfig is the on-disk hook configuration: expression hooks grouped
// by resource type.
//
//	resources:
//	  AWS::S3::Bucket:
//	    - name: bucket-encrypted
//	      check: properties?.BucketEncryption != nil
type fileConfig struct {
	Resources map[string][]exprHookConfig `yaml:"resources"`
}

type exprHookConfig struct {
	Name  string `yaml:"name"`
	Check string `yaml:"check"`
}

// LoadFile reads a hook configuration file and compiles its expression
// hooks into an engine.
func LoadFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ParseError(path, err)
	}
	return parseConfig(path, data)
}

func parseConfig(source string, data []byte) (*Engine, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.ParseError(source, err)
	}

	engine := NewEngine()
	for resourceType, entries := range cfg.Resources {
		for _, entry := range entries {
			if entry.Name == "" || entry.Check == "" {
				return nil, errors.New(errors.ErrCodeParse,
					fmt.Sprintf("hook for %q needs both name and check", resourceType))
			}
			hook, err := NewExprResourceHook(entry.Name, entry.Check)
			if err != nil {
				return nil, errors.ParseError(source, err)
			}
			engine.AddResourceHook(resourceType, hook)
		}
	}
	return engine, nil
}
