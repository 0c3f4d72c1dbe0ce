package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cfnscope/cfnscope/pkg/engine"
	"github.com/cfnscope/cfnscope/pkg/errors"
	"github.com/cfnscope/cfnscope/pkg/hooks"
	"github.com/cfnscope/cfnscope/pkg/lookup"
	"github.com/cfnscope/cfnscope/pkg/stack"
	"github.com/cfnscope/cfnscope/pkg/template"
)

// renderOptions collects the flags shared by render and validate.
type renderOptions struct {
	templatePath string
	paramsPath   string
	paramFlags   []string
	region       string
	importsPath  string
	lookupsPath  string
	format       string
}

func (o *renderOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.templatePath, "template", "t", "", "Path to the template file (required)")
	cmd.Flags().StringVarP(&o.paramsPath, "parameters", "p", "", "Path to a parameter file (named-object or key/value-pair form)")
	cmd.Flags().StringArrayVar(&o.paramFlags, "param", nil, "Parameter override (Name=Value), repeatable")
	cmd.Flags().StringVar(&o.region, "region", "", "Region to render for (default us-east-1)")
	cmd.Flags().StringVar(&o.importsPath, "imports", "", "YAML file of export name -> value for Fn::ImportValue")
	cmd.Flags().StringVar(&o.lookupsPath, "lookups", "", "YAML file of lookup tables (ssm, secretsmanager, azs, imports)")
	cmd.Flags().StringVarP(&o.format, "output", "o", "yaml", "Output format (yaml, json)")
	_ = cmd.MarkFlagRequired("template")
}

func newRenderCmd() *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a template into the stack it would create",
		Long: `Render a template offline with the given parameters and region.

Examples:
  cfnscope render -t template.yaml
  cfnscope render -t template.yaml -p params.json --region us-west-2
  cfnscope render -t template.yaml --param Env=prod -o json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.render(nil)
			if err != nil {
				return err
			}
			return writeStack(cmd, st, opts.format)
		},
	}

	opts.register(cmd)
	return cmd
}

// render loads everything the options name and runs one render. A non-nil
// hook engine switches the run to Validate.
func (o *renderOptions) render(hookEngine *hooks.Engine) (*stack.Stack, error) {
	logger := newLogger()

	tpl, err := template.Load(o.templatePath)
	if err != nil {
		return nil, err
	}

	params, err := o.parameters()
	if err != nil {
		return nil, err
	}

	lookups, err := o.lookups()
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{engine.WithLookups(lookups)}
	if hookEngine != nil {
		engineOpts = append(engineOpts, engine.WithHooks(hookEngine))
	}
	eng := engine.New(tpl, engineOpts...)

	var st *stack.Stack
	if hookEngine != nil {
		st, err = eng.Validate(params, o.region)
	} else {
		st, err = eng.Render(params, o.region)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("rendered template",
		"template", o.templatePath,
		"region", st.Region(),
		"resources", len(st.Resources()),
		"outputs", len(st.Outputs()))
	return st, nil
}

func (o *renderOptions) parameters() (map[string]interface{}, error) {
	params := map[string]interface{}{}
	if o.paramsPath != "" {
		fileParams, err := template.LoadParameterFile(o.paramsPath)
		if err != nil {
			return nil, err
		}
		params = fileParams
	}
	for _, kv := range o.paramFlags {
		name, value, found := strings.Cut(kv, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --param %q, want Name=Value", kv)
		}
		params[name] = value
	}
	return params, nil
}

func (o *renderOptions) lookups() (lookup.Tables, error) {
	tables := lookup.New()

	if o.lookupsPath != "" {
		data, err := os.ReadFile(o.lookupsPath)
		if err != nil {
			return nil, errors.ParseError(o.lookupsPath, err)
		}
		var raw map[string]map[string]interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.ParseError(o.lookupsPath, err)
		}
		tables = tables.Merge(lookup.Tables(raw))
	}

	if o.importsPath != "" {
		data, err := os.ReadFile(o.importsPath)
		if err != nil {
			return nil, errors.ParseError(o.importsPath, err)
		}
		var imports map[string]interface{}
		if err := yaml.Unmarshal(data, &imports); err != nil {
			return nil, errors.ParseError(o.importsPath, err)
		}
		tables = tables.SetImports(imports)
	}

	return tables, nil
}

func writeStack(cmd *cobra.Command, st *stack.Stack, format string) error {
	doc := stackDocument(st)

	switch format {
	case "json":
		cmd.Println(oj.JSON(doc, 2))
		return nil
	case "yaml", "":
		out, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		cmd.Print(string(out))
		return nil
	}
	return fmt.Errorf("unknown output format %q, want yaml or json", format)
}

// stackDocument flattens a rendered stack into a serializable tree in
// canonical long form.
func stackDocument(st *stack.Stack) map[string]interface{} {
	resources := map[string]interface{}{}
	for _, res := range st.Resources() {
		entry := map[string]interface{}{"Type": res.Type}
		if res.DeletionPolicy != "" {
			entry["DeletionPolicy"] = res.DeletionPolicy
		}
		if res.UpdateReplacePolicy != "" {
			entry["UpdateReplacePolicy"] = res.UpdateReplacePolicy
		}
		if res.Properties != nil {
			entry["Properties"] = res.Properties
		}
		if res.Metadata != nil {
			entry["Metadata"] = res.Metadata
		}
		resources[res.LogicalID] = entry
	}

	outputs := map[string]interface{}{}
	for _, out := range st.Outputs() {
		entry := map[string]interface{}{"Value": out.Value}
		if out.Description != "" {
			entry["Description"] = out.Description
		}
		if out.HasExport {
			entry["Export"] = map[string]interface{}{"Name": out.ExportName}
		}
		outputs[out.LogicalID] = entry
	}

	doc := map[string]interface{}{
		"Region":    st.Region(),
		"Resources": resources,
	}
	if len(outputs) > 0 {
		doc["Outputs"] = outputs
	}
	return doc
}
