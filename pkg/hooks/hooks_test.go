package hooks

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfnscope/cfnscope/pkg/errors"
	"github.com/cfnscope/cfnscope/pkg/stack"
	"github.com/cfnscope/cfnscope/pkg/template"
)

func bucketTemplate(t *testing.T, meta map[string]interface{}) *template.Template {
	t.Helper()
	doc := map[string]interface{}{
		"Resources": map[string]interface{}{
			"LogBucket": map[string]interface{}{
				"Type": "AWS::S3::Bucket",
			},
		},
	}
	if meta != nil {
		doc["Metadata"] = meta
	}
	tpl, err := template.New(doc)
	require.NoError(t, err)
	return tpl
}

func bucketStack() *stack.Stack {
	st := stack.New("us-east-1", nil)
	st.AddResource(&stack.Resource{
		LogicalID: "LogBucket",
		Type:      "AWS::S3::Bucket",
		Properties: map[string]interface{}{
			"BucketName": "logs",
		},
		DeletionPolicy: "Retain",
	})
	return st
}

func TestRunTemplateHooks(t *testing.T) {
	tpl := bucketTemplate(t, nil)

	var ran []string
	engine := NewEngine()
	engine.AddTemplateHook(TemplateHook{
		Name:  "has-resources",
		Check: func(tpl *template.Template) error { ran = append(ran, "has-resources"); return nil },
	})
	engine.AddTemplateHook(TemplateHook{
		Name:  "failing",
		Check: func(tpl *template.Template) error { return fmt.Errorf("no good") },
	})
	engine.AddTemplateHook(TemplateHook{
		Name:  "never-reached",
		Check: func(tpl *template.Template) error { ran = append(ran, "never-reached"); return nil },
	})

	err := engine.RunTemplateHooks(tpl)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeHookViolation))
	assert.Equal(t, []string{"has-resources"}, ran)
}

func TestTemplateHookSuppression(t *testing.T) {
	tpl := bucketTemplate(t, map[string]interface{}{
		template.MetadataKey: map[string]interface{}{
			template.MetadataSkipHooks: []interface{}{"failing"},
		},
	})

	engine := NewEngine()
	engine.AddTemplateHook(TemplateHook{
		Name:  "failing",
		Check: func(tpl *template.Template) error { return fmt.Errorf("no good") },
	})

	require.NoError(t, engine.RunTemplateHooks(tpl))
}

func TestRunResourceHooks(t *testing.T) {
	tpl := bucketTemplate(t, nil)
	st := bucketStack()

	var seen *Context
	engine := NewEngine()
	engine.AddResourceHook("AWS::S3::Bucket", ResourceHook{
		Name:  "record",
		Check: func(ctx *Context) error { seen = ctx; return nil },
	})
	engine.AddResourceHook("AWS::SQS::Queue", ResourceHook{
		Name:  "wrong-type",
		Check: func(ctx *Context) error { return fmt.Errorf("should not run") },
	})

	require.NoError(t, engine.RunResourceHooks(st, tpl))
	require.NotNil(t, seen)
	assert.Equal(t, "LogBucket", seen.LogicalID)
	assert.Equal(t, st, seen.Stack)
	assert.Equal(t, tpl, seen.Template)
}

func TestResourceHookSuppression(t *testing.T) {
	doc := map[string]interface{}{
		"Resources": map[string]interface{}{
			"LogBucket": map[string]interface{}{
				"Type": "AWS::S3::Bucket",
				"Metadata": map[string]interface{}{
					template.MetadataKey: map[string]interface{}{
						template.MetadataSkipHooks: []interface{}{"failing"},
					},
				},
			},
		},
	}
	tpl, err := template.New(doc)
	require.NoError(t, err)

	engine := NewEngine()
	engine.AddResourceHook("AWS::S3::Bucket", ResourceHook{
		Name:  "failing",
		Check: func(ctx *Context) error { return fmt.Errorf("no good") },
	})

	require.NoError(t, engine.RunResourceHooks(bucketStack(), tpl))
}

func TestResourceHookViolationCarriesCause(t *testing.T) {
	engine := NewEngine()
	engine.AddResourceHook("AWS::S3::Bucket", ResourceHook{
		Name:  "deny",
		Check: func(ctx *Context) error { return fmt.Errorf("bucket %q not allowed", ctx.LogicalID) },
	})

	err := engine.RunResourceHooks(bucketStack(), bucketTemplate(t, nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeHookViolation))
	assert.Contains(t, err.Error(), `bucket "LogBucket" not allowed`)
}

func TestProviderMerge(t *testing.T) {
	t.Cleanup(ResetRegistry)
	ResetRegistry()

	var ran []string
	record := func(name string) ResourceHook {
		return ResourceHook{
			Name:  name,
			Check: func(ctx *Context) error { ran = append(ran, name); return nil },
		}
	}

	Register(Provider{
		Name: "org-policies",
		ResourceHooks: map[string][]ResourceHook{
			"AWS::S3::Bucket": {record("provider-only"), record("shared")},
		},
	})

	engine := NewEngine()
	local := ResourceHook{
		Name:  "shared",
		Check: func(ctx *Context) error { ran = append(ran, "local-shared"); return nil },
	}
	engine.AddResourceHook("AWS::S3::Bucket", local)

	require.NoError(t, engine.RunResourceHooks(bucketStack(), bucketTemplate(t, nil)))

	// Local hooks run first; the provider's "shared" loses the collision.
	assert.Equal(t, []string{"local-shared", "provider-only"}, ran)
}

func TestProviderTemplateHooks(t *testing.T) {
	t.Cleanup(ResetRegistry)
	ResetRegistry()

	var ran []string
	Register(Provider{
		Name: "org-policies",
		TemplateHooks: []TemplateHook{{
			Name:  "from-provider",
			Check: func(tpl *template.Template) error { ran = append(ran, "from-provider"); return nil },
		}},
	})

	require.NoError(t, NewEngine().RunTemplateHooks(bucketTemplate(t, nil)))
	assert.Equal(t, []string{"from-provider"}, ran)
}

func TestExprResourceHook(t *testing.T) {
	hook, err := NewExprResourceHook("retain-policy", `deletionPolicy == "Retain"`)
	require.NoError(t, err)

	engine := NewEngine()
	engine.AddResourceHook("AWS::S3::Bucket", hook)
	require.NoError(t, engine.RunResourceHooks(bucketStack(), bucketTemplate(t, nil)))

	hook, err = NewExprResourceHook("named-logs", `properties.BucketName == "archive"`)
	require.NoError(t, err)

	engine = NewEngine()
	engine.AddResourceHook("AWS::S3::Bucket", hook)
	err = engine.RunResourceHooks(bucketStack(), bucketTemplate(t, nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeHookViolation))
}

func TestExprHookCompileError(t *testing.T) {
	_, err := NewExprResourceHook("broken", `deletionPolicy ==`)
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	engine, err := parseConfig("hooks.yaml", []byte(`
resources:
  AWS::S3::Bucket:
    - name: retain-policy
      check: deletionPolicy == "Retain"
`))
	require.NoError(t, err)
	require.Len(t, engine.ResourceHooks["AWS::S3::Bucket"], 1)
	require.NoError(t, engine.RunResourceHooks(bucketStack(), bucketTemplate(t, nil)))
}

func TestLoadConfigRejectsIncompleteHook(t *testing.T) {
	_, err := parseConfig("hooks.yaml", []byte(`
resources:
  AWS::S3::Bucket:
    - name: unnamed-check
`))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeParse))
}
