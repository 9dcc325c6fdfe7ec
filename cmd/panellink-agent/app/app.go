package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"
	"k8s.io/klog/v2"

	"github.com/autopeer-io/panellink/cmd/panellink-agent/app/options"
	"github.com/autopeer-io/panellink/pkg/log"
)

const (
	commandName = "panellink-agent"
	commandDesc = `The panellink agent keeps a locally rendered instrument panel in sync with
the export driver running inside the flight simulator. It negotiates the
export driver the panel profile needs, watches the simulator link and
serves status, readiness and metrics endpoints.`
)

// NewAgentCommand builds the root command. ctx is cancelled on SIGINT/SIGTERM.
func NewAgentCommand(ctx context.Context) *cobra.Command {
	opts := options.NewAgentOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:          commandName,
		Short:        "Launch the panellink agent",
		Long:         commandDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, configFile, opts); err != nil {
				return err
			}
			log.Init(opts.Log)
			// component-base and apiserver log through klog.
			klog.SetLogger(log.Logr())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			agent, err := cfg.NewAgent()
			if err != nil {
				log.Error(err, "failed to create agent")
				return err
			}

			if err := agent.Run(ctx); err != nil {
				log.Error(err, "agent stopped with error")
				return err
			}
			return nil
		},
		Args: cobra.NoArgs,
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&configFile, "config", "c", "", "Read options from a YAML, JSON or TOML file. Flags override file values.")
	namedfs := opts.Flags()
	globalflag.AddGlobalFlags(namedfs.FlagSet("global"), cmd.Name())
	for _, f := range namedfs.FlagSets {
		fs.AddFlagSet(f)
	}

	cliflag.SetUsageAndHelpFunc(cmd, namedfs, 0)

	cmd.AddCommand(newCheckCommand(opts))
	return cmd
}

// loadConfig overlays configFile onto opts. Flags set on the command line win
// over file values; unset flags keep their defaults when the file omits them.
func loadConfig(cmd *cobra.Command, configFile string, opts *options.AgentOptions) error {
	if configFile == "" {
		return nil
	}

	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	v.SetConfigFile(configFile)
	v.SetEnvPrefix("PANELLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", configFile, err)
	}
	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("decode config %s: %w", configFile, err)
	}
	return nil
}
