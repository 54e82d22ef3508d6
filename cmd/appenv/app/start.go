package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/appenv"
)

// startSummary is printed once the server is verified.
type startSummary struct {
	Name             string `yaml:"name"`
	URL              string `yaml:"url"`
	Port             int    `yaml:"port"`
	PID              int    `yaml:"pid"`
	FrameworkVersion string `yaml:"frameworkVersion"`
	RuntimeVersion   string `yaml:"runtimeVersion"`
	RuntimeEngine    string `yaml:"runtimeEngine"`
	Environment      string `yaml:"environment"`
	Root             string `yaml:"root"`
	Log              string `yaml:"log"`
}

func newStartCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an application server and keep it running",
		Long: `Start sets up a workspace from the given templates, starts the server and
prints a YAML summary once it answers. The server is stopped on SIGINT or
SIGTERM.

Every flag can also be set through the environment, e.g. APPENV_BASE_DIR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStart(cmd, v)
		},
	}

	fs := cmd.Flags()
	fs.StringSlice("template", nil, "Template directory, later ones win (repeatable, required)")
	fs.String("name", "", "Server name (default: base name of the only template)")
	fs.String("base-dir", "", "Directory holding the workspaces (default: $TMPDIR/appenv)")
	fs.String("framework-version", "", "Framework version (default: whatever the toolchain installs)")
	fs.String("env", appenv.DefaultEnvironment, "Runtime environment")
	fs.Duration("verify-timeout", appenv.DefaultVerifyTimeout, "How long the server has to answer its status endpoint")
	fs.StringSlice("manifest-line", nil, "Line appended to the application manifest (repeatable)")
	bindFlags(v, fs)
	return cmd
}

func runStart(cmd *cobra.Command, v *viper.Viper) error {
	templates := v.GetStringSlice("template")
	if len(templates) == 0 {
		return fmt.Errorf("at least one --template is required")
	}

	opts := []appenv.Option{appenv.WithVerifyTimeout(v.GetDuration("verify-timeout"))}
	if dir := v.GetString("base-dir"); dir != "" {
		opts = append(opts, appenv.WithBaseDir(dir))
	}
	reg := appenv.NewRegistry(opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := reg.Start(ctx, appenv.Spec{
		Name:          v.GetString("name"),
		Templates:     templates,
		Version:       v.GetString("framework-version"),
		Environment:   v.GetString("env"),
		ManifestLines: v.GetStringSlice("manifest-line"),
	})
	if err != nil {
		return err
	}

	if err := printSummary(cmd, srv); err != nil {
		_ = stopAll(reg)
		return err
	}

	<-ctx.Done()
	cmd.PrintErrln("stopping", srv.Name())
	return stopAll(reg)
}

func printSummary(cmd *cobra.Command, srv appenv.Server) error {
	u, err := srv.URL("", nil)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(startSummary{
		Name:             srv.Name(),
		URL:              u,
		Port:             srv.Port(),
		PID:              srv.PID(),
		FrameworkVersion: srv.ActualVersion(),
		RuntimeVersion:   srv.RuntimeVersion(),
		RuntimeEngine:    srv.RuntimeEngine(),
		Environment:      srv.Environment(),
		Root:             srv.Root(),
		Log:              srv.LogPath(),
	})
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// stopAll stops every server with a fresh context, since the command's own
// is already canceled by the signal.
func stopAll(reg appenv.Registry) error {
	ctx, cancel := context.WithTimeout(context.Background(), appenv.DefaultStopTimeout+5*time.Second)
	defer cancel()
	return reg.StopAll(ctx)
}
