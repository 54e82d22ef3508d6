package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/appenv"
	"github.com/giantswarm/appenv/internal/probe"
)

type probeSummary struct {
	URL              string `yaml:"url"`
	FrameworkVersion string `yaml:"frameworkVersion"`
	RuntimeVersion   string `yaml:"runtimeVersion"`
	RuntimeEngine    string `yaml:"runtimeEngine"`
}

func newProbeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Wait for a status endpoint to report its versions",
		Long: `Probe polls a status endpoint until it answers 200 with a version banner,
then prints the versions as YAML. Connection failures and other statuses are
retried until the timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd, v)
		},
	}

	tc := appenv.DefaultToolchain()
	fs := cmd.Flags()
	fs.String("url", "", "Status endpoint URL (required)")
	fs.Duration("timeout", appenv.DefaultVerifyTimeout, "How long to keep polling")
	fs.Duration("interval", appenv.DefaultPollInterval, "Delay between polls")
	fs.String("framework", tc.FrameworkName, "Framework name in the banner")
	fs.String("runtime", tc.RuntimeName, "Runtime name in the banner")
	bindFlags(v, fs)
	return cmd
}

func runProbe(cmd *cobra.Command, v *viper.Viper) error {
	url := v.GetString("url")
	if url == "" {
		return fmt.Errorf("--url is required")
	}

	p := &probe.Probe{
		URL:      url,
		Parser:   probe.NewBannerParser(v.GetString("framework"), v.GetString("runtime")),
		Interval: v.GetDuration("interval"),
		Timeout:  v.GetDuration("timeout"),
		Logger:   slog.Default(),
	}
	banner, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(probeSummary{
		URL:              url,
		FrameworkVersion: banner.FrameworkVersion,
		RuntimeVersion:   banner.RuntimeVersion,
		RuntimeEngine:    banner.RuntimeEngine,
	})
	if err != nil {
		return fmt.Errorf("encode banner: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
