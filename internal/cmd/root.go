package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"go-live-preview/internal/config"
	"go-live-preview/internal/log"
)

var (
	configPath string
	flags      *config.Flags
)

func Root() *cobra.Command {
	cmd := cobra.Command{
		Use:           "go-live-preview",
		Short:         "Live paged preview of the document you are editing",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pflags := cmd.PersistentFlags()

	pflags.StringVar(&configPath, "config", "", "Path to a TOML config file. Defaults to the user config directory.")
	flags = config.BindFlags(pflags)

	cmd.AddCommand(nvimCmd())
	cmd.AddCommand(watchCmd())
	cmd.AddCommand(backendCmd())

	return &cmd
}

// loadConfig resolves the settings and sets up logging. defaultLogFile is
// used when no log file is configured.
func loadConfig(defaultLogFile string) (config.Config, error) {
	path, required := configPath, true
	if path == "" {
		path, required = config.DefaultPath(), false
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return cfg, err
	}
	flags.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, errors.WithMessage(err, "invalid config")
	}

	if cfg.Log.File == "" {
		cfg.Log.File = defaultLogFile
	}
	if err := log.Set(cfg.Log.Debug, cfg.Log.File); err != nil {
		return cfg, errors.Wrap(err, "set up logging")
	}
	return cfg, nil
}
