package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-live-preview/internal/backend"
	"go-live-preview/internal/log"
	"go-live-preview/internal/render"
)

func backendCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "backend",
		Short: "Serve the compile backend over websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			defer log.Flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := backend.NewServer(cfg.BackendAddr, render.NewRenderer())
			if err := srv.Start(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "backend: ws://%s/\n", srv.Addr())

			<-ctx.Done()
			return srv.Stop()
		},
	}

	return &cmd
}
