// Package cli implements the cfnscope CLI commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cfnscope/cfnscope/pkg/logging"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cfnscope",
	Short: "Render and test CloudFormation templates offline",
	Long: `cfnscope evaluates CloudFormation templates without contacting AWS.

It resolves parameters against their declared constraints, evaluates
conditions and intrinsic functions, prunes conditionally excluded
resources and runs compliance hooks, producing the stack a deployment
would create.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cfnscope/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.SetEnvPrefix("CFNSCOPE")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.cfnscope")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	_ = viper.ReadInConfig()
}

func newLogger() *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(viper.GetString("log-level")),
		Format: logging.ParseFormat(viper.GetString("log-format")),
	})
}
