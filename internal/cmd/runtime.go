package cmd

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"go-live-preview/internal/app"
	"go-live-preview/internal/assist"
	"go-live-preview/internal/backend"
	"go-live-preview/internal/config"
	"go-live-preview/internal/log"
	"go-live-preview/internal/preview"
	"go-live-preview/internal/render"
	"go-live-preview/internal/transport"
	"go-live-preview/internal/transport/bridge"
	"go-live-preview/internal/transport/ws"
)

// previewRuntime is a running session with its browser surface and compile
// transport.
type previewRuntime struct {
	session   *app.LivePreview
	preview   *preview.Server
	transport transport.Transport
}

func newTransport(ctx context.Context, cfg config.Config, renderer *render.Renderer) transport.Transport {
	if cfg.Transport == config.TransportSocket {
		return ws.Connect(ctx, cfg.BackendURL, ws.WithLogger(log.Get().Named("ws")))
	}
	return bridge.New(backend.NewCompiler(renderer))
}

// startPreview serves the preview and runs a session until ctx is done. The
// caller connects its editor to the returned session.
func startPreview(ctx context.Context, cfg config.Config, title string, editor app.EditorSurface) (*previewRuntime, error) {
	renderer := render.NewRenderer()
	tr := newTransport(ctx, cfg, renderer)
	srv := preview.NewServer(cfg.PreviewAddr, title, renderer)

	session := app.NewLivePreview(tr, editor, srv, app.Options{
		Delay:  cfg.Debounce(),
		Buffer: cfg.Buffer,
		Assist: assist.NewLogNotifier(log.Get()),
		Logger: log.Get(),
	})
	srv.SetHandler(session)

	if err := srv.Start(true); err != nil {
		return nil, multierr.Append(err, tr.Close())
	}
	go session.Run(ctx)

	log.Get().Info("preview started",
		zap.String("url", srv.URL()),
		zap.String("transport", cfg.Transport))
	return &previewRuntime{session: session, preview: srv, transport: tr}, nil
}

func (r *previewRuntime) Close() error {
	return multierr.Combine(r.preview.Stop(), r.transport.Close())
}
