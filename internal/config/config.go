// Package config holds the live preview settings. Values come from defaults,
// then an optional TOML file, then command line flags.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"go-live-preview/internal/backend"
	"go-live-preview/internal/preview"
	"go-live-preview/internal/scheduler"
	"go-live-preview/internal/transport/ws"
	"go-live-preview/internal/viewport"
)

// Transport names.
const (
	TransportBridge = "bridge"
	TransportSocket = "socket"
)

type Config struct {
	// Transport selects how compile requests reach the backend.
	Transport   string  `toml:"transport"`
	BackendURL  string  `toml:"backend_url"`
	BackendAddr string  `toml:"backend_addr"`
	PreviewAddr string  `toml:"preview_addr"`
	DebounceMS  int     `toml:"debounce_ms"`
	Buffer      float64 `toml:"buffer"`
	Log         Log     `toml:"log"`
}

type Log struct {
	Debug bool   `toml:"debug"`
	File  string `toml:"file"`
}

func Default() Config {
	return Config{
		Transport:   TransportBridge,
		BackendURL:  ws.DefaultURL,
		BackendAddr: backend.DefaultAddr,
		PreviewAddr: preview.DefaultAddr,
		DebounceMS:  int(scheduler.DefaultDelay / time.Millisecond),
		Buffer:      viewport.Buffer,
	}
}

// Debounce returns the debounce delay as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportBridge, TransportSocket:
	default:
		return errors.Errorf("unknown transport %q", c.Transport)
	}
	if c.Transport == TransportSocket && c.BackendURL == "" {
		return errors.New("backend_url is required for the socket transport")
	}
	if c.PreviewAddr == "" {
		return errors.New("preview_addr is required")
	}
	if c.DebounceMS < 0 {
		return errors.Errorf("debounce_ms must not be negative, got %d", c.DebounceMS)
	}
	if c.Buffer < 0 {
		return errors.Errorf("buffer must not be negative, got %g", c.Buffer)
	}
	return nil
}

// DefaultPath returns the config file looked up when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "go-live-preview", "config.toml")
}

// Load reads path over the defaults. A missing file is only an error when
// required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "read config")
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Flags binds the settings to a flag set. Only flags given on the command
// line override the file.
type Flags struct {
	fs     *pflag.FlagSet
	values Config
}

// BindFlags registers the config flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	def := Default()
	fs.StringVar(&f.values.Transport, "transport", def.Transport, "compile transport: bridge or socket")
	fs.StringVar(&f.values.BackendURL, "backend-url", def.BackendURL, "websocket URL of the compile backend")
	fs.StringVar(&f.values.BackendAddr, "backend-addr", def.BackendAddr, "listen address of the backend command")
	fs.StringVar(&f.values.PreviewAddr, "preview-addr", def.PreviewAddr, "listen address of the browser preview")
	fs.IntVar(&f.values.DebounceMS, "debounce-ms", def.DebounceMS, "quiet period before compiling, in milliseconds")
	fs.Float64Var(&f.values.Buffer, "buffer", def.Buffer, "pixels rendered above and below the viewport")
	fs.BoolVar(&f.values.Log.Debug, "debug", def.Log.Debug, "enable debug logging")
	fs.StringVar(&f.values.Log.File, "log-file", def.Log.File, "write logs to this file")
	return f
}

// Apply copies every flag that was set on the command line into cfg.
// Changed is read per flag since cobra parses into the subcommand's merged
// set, not into fs.
func (f *Flags) Apply(cfg *Config) {
	f.fs.VisitAll(func(fl *pflag.Flag) {
		if !fl.Changed {
			return
		}
		switch fl.Name {
		case "transport":
			cfg.Transport = f.values.Transport
		case "backend-url":
			cfg.BackendURL = f.values.BackendURL
		case "backend-addr":
			cfg.BackendAddr = f.values.BackendAddr
		case "preview-addr":
			cfg.PreviewAddr = f.values.PreviewAddr
		case "debounce-ms":
			cfg.DebounceMS = f.values.DebounceMS
		case "buffer":
			cfg.Buffer = f.values.Buffer
		case "debug":
			cfg.Log.Debug = f.values.Log.Debug
		case "log-file":
			cfg.Log.File = f.values.Log.File
		}
	})
}
