package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplate = `
Parameters:
  Env:
    Type: String
    Default: dev
Conditions:
  IsProd: !Equals [!Ref Env, prod]
Resources:
  Topic:
    Type: AWS::SNS::Topic
    Properties:
      TopicName: !Sub "${Env}-events"
  AlarmTopic:
    Type: AWS::SNS::Topic
    Condition: IsProd
Outputs:
  TopicRef:
    Value: !Ref Topic
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRenderCmd()
	if args[0] == "validate" {
		cmd = newValidateCmd()
	}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args[1:])
	err := cmd.Execute()
	return buf.String(), err
}

func TestRenderCommandYAML(t *testing.T) {
	path := writeTempFile(t, "template.yaml", testTemplate)

	out, err := runCommand(t, "render", "-t", path)
	require.NoError(t, err)
	assert.Contains(t, out, "TopicName: dev-events")
	assert.NotContains(t, out, "AlarmTopic")
}

func TestRenderCommandParamOverride(t *testing.T) {
	path := writeTempFile(t, "template.yaml", testTemplate)

	out, err := runCommand(t, "render", "-t", path, "--param", "Env=prod")
	require.NoError(t, err)
	assert.Contains(t, out, "TopicName: prod-events")
	assert.Contains(t, out, "AlarmTopic")
}

func TestRenderCommandJSON(t *testing.T) {
	path := writeTempFile(t, "template.yaml", testTemplate)

	out, err := runCommand(t, "render", "-t", path, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"TopicName": "dev-events"`)
}

func TestRenderCommandParameterFile(t *testing.T) {
	tplPath := writeTempFile(t, "template.yaml", testTemplate)
	paramPath := writeTempFile(t, "params.json", `{"Parameters": {"Env": "prod"}}`)

	out, err := runCommand(t, "render", "-t", tplPath, "-p", paramPath)
	require.NoError(t, err)
	assert.Contains(t, out, "prod-events")
}

func TestRenderCommandRejectsBadParamFlag(t *testing.T) {
	path := writeTempFile(t, "template.yaml", testTemplate)

	_, err := runCommand(t, "render", "-t", path, "--param", "no-equals-sign")
	require.Error(t, err)
}

func TestValidateCommandWithHooks(t *testing.T) {
	tplPath := writeTempFile(t, "template.yaml", testTemplate)
	hooksPath := writeTempFile(t, "hooks.yaml", `
resources:
  AWS::SNS::Topic:
    - name: named-topics
      check: properties.TopicName != nil
`)

	out, err := runCommand(t, "validate", "-t", tplPath, "--hooks", hooksPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Template is valid")
}

func TestValidateCommandHookViolation(t *testing.T) {
	tplPath := writeTempFile(t, "template.yaml", testTemplate)
	hooksPath := writeTempFile(t, "hooks.yaml", `
resources:
  AWS::SNS::Topic:
    - name: forbid-topics
      check: "false"
`)

	_, err := runCommand(t, "validate", "-t", tplPath, "--hooks", hooksPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbid-topics")
}
