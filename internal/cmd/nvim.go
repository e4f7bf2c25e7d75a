package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/neovim/go-client/nvim"
	"github.com/neovim/go-client/nvim/plugin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"go-live-preview/internal/host"
	"go-live-preview/internal/log"
)

func nvimCmd() *cobra.Command {
	var manifest string

	cmd := cobra.Command{
		Use:   "nvim",
		Short: "Run as a Neovim remote plugin over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if manifest != "" {
				p := plugin.New(nil)
				if err := host.Register(p, host.NewCommands("")); err != nil {
					return err
				}
				_, err := cmd.OutOrStdout().Write(p.Manifest(manifest))
				return err
			}

			// stdout carries msgpack-rpc.
			cfg, err := loadConfig(filepath.Join(os.TempDir(), "go-live-preview.log"))
			if err != nil {
				return err
			}
			defer log.Flush()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			commands := host.NewCommands("http://" + cfg.PreviewAddr)
			rt, err := startPreview(ctx, cfg, "go-live-preview", commands)
			if err != nil {
				return err
			}
			defer rt.Close()
			commands.SetSession(rt.session)

			stdout := os.Stdout
			os.Stdout = os.Stderr
			v, err := nvim.New(os.Stdin, stdout, stdout, log.Get().Sugar().Infof)
			if err != nil {
				return errors.Wrap(err, "connect to neovim")
			}

			if err := host.Register(plugin.New(v), commands); err != nil {
				return err
			}
			log.Get().Info("registered neovim handlers")
			return v.Serve()
		},
	}

	cmd.Flags().StringVar(&manifest, "manifest", "", "Print the plugin manifest for the given host name and exit.")

	return &cmd
}
