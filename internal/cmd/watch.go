package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"go-live-preview/internal/host"
	"go-live-preview/internal/log"
)

func watchCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "watch <file>",
		Short: "Preview a markdown file and follow its saves",
		Long: "Preview a markdown file and follow its saves. Clicking a block in the " +
			"preview prints its location as path:line on stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			defer log.Flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher, err := host.NewFileWatcher(args[0], cmd.OutOrStdout())
			if err != nil {
				return err
			}

			rt, err := startPreview(ctx, cfg, filepath.Base(watcher.Path()), watcher)
			if err != nil {
				return err
			}
			defer rt.Close()
			watcher.SetSession(rt.session)

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "preview: %s\n", rt.preview.URL())
			return watcher.Run(ctx)
		},
	}

	return &cmd
}
