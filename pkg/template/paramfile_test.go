package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParameterDocumentNamedObjectForm(t *testing.T) {
	doc := `{"Parameters": {"BucketPrefix": "testing", "KeepBucket": "TRUE"}}`

	params, err := ParseParameterDocument([]byte(doc), "params.json")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"BucketPrefix": "testing",
		"KeepBucket":   "TRUE",
	}, params)
}

func TestParseParameterDocumentPairListForm(t *testing.T) {
	doc := `
- ParameterKey: BucketPrefix
  ParameterValue: testing
- ParameterKey: KeepBucket
  ParameterValue: "FALSE"
`
	params, err := ParseParameterDocument([]byte(doc), "params.yaml")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"BucketPrefix": "testing",
		"KeepBucket":   "FALSE",
	}, params)
}

func TestParseParameterDocumentRejectsUnknownShapes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"scalar", `"just a string"`},
		{"missing parameters key", `{"Values": {}}`},
		{"pair without key", `[{"ParameterValue": "x"}]`},
		{"pair without value", `[{"ParameterKey": "x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParameterDocument([]byte(tt.doc), "params")
			require.Error(t, err)
		})
	}
}
