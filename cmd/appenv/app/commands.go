// Package app implements the appenv command line.
package app

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables that override flags, e.g.
// APPENV_BASE_DIR for --base-dir.
const EnvPrefix = "APPENV"

// NewRootCmd creates the root command with all subcommands. Each call
// returns an independent command tree with its own configuration.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "appenv",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Ephemeral application servers for integration tests",
		Long: `appenv scaffolds, sets up and runs an application server from template
directories, verifies it reports the expected framework version and stops it
again. The same lifecycle is available to Go tests through the appenv package.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.AddCommand(newStartCmd(newViper()))
	rootCmd.AddCommand(newProbeCmd(newViper()))
	rootCmd.AddCommand(newTailCmd(newViper()))
	return rootCmd
}

// newViper returns a viper instance reading APPENV_* variables, with dashes
// in keys mapped to underscores.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// bindFlags binds every flag of fs to v under its own name.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			slog.Error("Error binding flag", "flag", f.Name, "error", err)
		}
	})
}
