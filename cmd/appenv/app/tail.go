package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/giantswarm/appenv"
	"github.com/giantswarm/appenv/internal/probe"
)

func newTailCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail FILE",
		Short: "Print the last lines of a server log",
		Long: `Tail prints the last lines of FILE the way a startup failure reports them,
reading backwards so large logs are not loaded whole.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := v.GetInt("lines")
			if n < 0 {
				return fmt.Errorf("--lines must not be negative, got %d", n)
			}
			lines, err := probe.TailLines(args[0], n)
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
			return err
		},
	}

	cmd.Flags().IntP("lines", "n", appenv.DefaultLogLines, "Number of lines")
	bindFlags(v, cmd.Flags())
	return cmd
}
