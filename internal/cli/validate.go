package cli

import (
	"github.com/spf13/cobra"

	"github.com/cfnscope/cfnscope/pkg/hooks"
)

func newValidateCmd() *cobra.Command {
	opts := &renderOptions{}
	var hooksPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Render a template and run compliance hooks against it",
		Long: `Validate a template: run template-level hooks, render with the given
parameters, then run resource-level hooks against the result.

Examples:
  cfnscope validate -t template.yaml
  cfnscope validate -t template.yaml --hooks hooks.yaml --param Env=prod`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			hookEngine := hooks.NewEngine()
			if hooksPath != "" {
				loaded, err := hooks.LoadFile(hooksPath)
				if err != nil {
					return err
				}
				hookEngine = loaded
			}

			st, err := opts.render(hookEngine)
			if err != nil {
				return err
			}

			cmd.Printf("Template is valid: %d resources, %d outputs\n",
				len(st.Resources()), len(st.Outputs()))
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&hooksPath, "hooks", "", "YAML file of expression hooks to run per resource type")
	return cmd
}
