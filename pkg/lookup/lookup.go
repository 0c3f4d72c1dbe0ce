// Package lookup holds the caller-supplied value tables consulted by
// Fn::ImportValue, dynamic references and externally-backed parameter types.
// Tables are populated up front; nothing is ever fetched.
package lookup

import "github.com/cfnscope/cfnscope/pkg/errors"

// Well-known table names.
const (
	TableImports        = "imports"
	TableSSM            = "ssm"
	TableSecretsManager = "secretsmanager"
	TableAZs            = "azs"
)

// Tables maps a service/table name to a flat key -> value mapping.
type Tables map[string]map[string]interface{}

// New returns an empty table set.
func New() Tables {
	return Tables{}
}

// Set stores a value under the given table, creating the table if needed.
func (t Tables) Set(table, key string, value interface{}) Tables {
	if t[table] == nil {
		t[table] = map[string]interface{}{}
	}
	t[table][key] = value
	return t
}

// SetImports replaces the imports table with the given export name -> value map.
func (t Tables) SetImports(imports map[string]interface{}) Tables {
	t[TableImports] = imports
	return t
}

// Resolve looks up key in the named table. An absent table or key yields a
// LOOKUP_KEY_NOT_FOUND error carrying both names.
func (t Tables) Resolve(table, key string) (interface{}, error) {
	entries, ok := t[table]
	if !ok {
		return nil, errors.LookupKeyNotFound(table, key)
	}
	value, ok := entries[key]
	if !ok {
		return nil, errors.LookupKeyNotFound(table, key)
	}
	return value, nil
}

// Has reports whether the named table contains key.
func (t Tables) Has(table, key string) bool {
	_, err := t.Resolve(table, key)
	return err == nil
}

// Merge overlays other onto t, other winning on key collisions.
func (t Tables) Merge(other Tables) Tables {
	for table, entries := range other {
		for key, value := range entries {
			t.Set(table, key, value)
		}
	}
	return t
}
