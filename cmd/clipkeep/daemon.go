package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"go.klb.dev/clipkeep/internal/clip"
	"go.klb.dev/clipkeep/internal/engine"
	"go.klb.dev/clipkeep/internal/feed"
	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/ipc"
	"go.klb.dev/clipkeep/internal/poller"
	"go.klb.dev/clipkeep/internal/rpc"
	"go.klb.dev/clipkeep/internal/store"
)

func newDaemonCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the clipboard and record its history",
		Long: `Starts the clipkeep daemon. It polls the clipboard, records every new text
value in the history database and serves the history on a local socket.

If the database file cannot be opened the daemon keeps running with an
in-memory history for this session.

The config file is watched; changing private-mode in it takes effect without a
restart ("clipkeep private on|off" does exactly that).

Config file search order:
  /etc/clipkeep/clipkeep.toml
  $HOME/.config/clipkeep/clipkeep.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPKEEP_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	f := cmd.Flags()
	f.Bool(privateModeKey, false, "start in private mode (nothing is captured)")
	f.String("db-path", "", `history database (default: XDG data dir; "memory" for in-memory only)`)
	f.Duration("interval", poller.DefaultInterval, "clipboard poll interval")
	f.String("source", clip.NameAuto, "clipboard source: auto|native|exec|headless")
	f.Bool("no-ipc", false, "do not serve the local socket")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

// daemonStatus is what "clipkeep status" prints.
type daemonStatus struct {
	engine.Status
	Version     string `json:"version"`
	ConfigFile  string `json:"config_file,omitempty"`
	Socket      string `json:"socket,omitempty"`
	Subscribers int    `json:"subscribers"`
	InMemory    int    `json:"in_memory"`
	Uptime      string `json:"uptime"`
}

func runDaemon(v *viper.Viper) error {
	setupLogging(v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := clip.NewNamed(v.GetString("source"))
	if err != nil {
		return err
	}

	dbPath, err := resolveDBPath(v.GetString("db-path"))
	if err != nil {
		slog.Warn("no data directory, history will not survive a restart", "err", err)
	}

	eng := engine.New(engine.Config{
		Source:      src,
		DBPath:      dbPath,
		PrivateMode: v.GetBool(privateModeKey),
		Interval:    v.GetDuration("interval"),
	})
	defer eng.Detach()

	configFile := watchConfig(v, eng)

	slog.Info("clipkeep daemon starting",
		"version", Version,
		"source", src.Name(),
		"db", dbPath,
		"private", eng.PrivateMode(),
		"config", configFile,
	)

	h := feed.New(history.DefaultLimit)
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return h.Run(gctx, eng.Events()) })

	if !v.GetBool("no-ipc") {
		ln, err := ipc.Listen()
		switch {
		case errors.Is(err, ipc.ErrInUse):
			stop()
			_ = g.Wait()
			return err
		case err != nil:
			slog.Warn("IPC socket unavailable", "err", err)
		default:
			socket := ipc.SocketPath()
			svc := rpc.New(h, func() any {
				return daemonStatus{
					Status:      eng.Status(),
					Version:     Version,
					ConfigFile:  configFile,
					Socket:      socket,
					Subscribers: h.Subscribers(),
					InMemory:    len(h.Snapshot(0)),
					Uptime:      time.Since(started).Round(time.Second).String(),
				}
			})
			g.Go(func() error { return rpc.Serve(gctx, ln, svc) })
		}
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("clipkeep daemon stopped")
	return err
}

// resolveDBPath maps the db-path setting to a store path. An empty return
// means in-memory only.
func resolveDBPath(setting string) (string, error) {
	switch setting {
	case "memory", ":memory:":
		return "", nil
	case "":
		return store.DefaultPath()
	default:
		return setting, nil
	}
}

// watchConfig follows the config file and forwards private-mode changes to
// eng. When no config file exists the per-user one is created so there is
// something to watch. Returns the watched path, or "" if none.
func watchConfig(v *viper.Viper, eng *engine.Engine) string {
	path := v.ConfigFileUsed()
	if path == "" || !fileExists(path) {
		if path == "" {
			p, err := userConfigPath()
			if err != nil {
				slog.Warn("config watch disabled", "err", err)
				return ""
			}
			path = p
		}
		if err := ensureConfigFile(path); err != nil {
			slog.Warn("config watch disabled", "path", path, "err", err)
			return ""
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("config watch disabled", "path", path, "err", err)
			return ""
		}
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		// Read the file itself: a --private-mode flag must not pin the value.
		on, err := readPrivateMode(e.Name)
		if err != nil {
			slog.Warn("config reload failed", "path", e.Name, "err", err)
			return
		}
		if eng.SetPrivateMode(on) {
			slog.Info("private mode changed by config", "private", on)
		}
	})
	v.WatchConfig()
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// errNotRunning is returned by client commands when no daemon is listening.
var errNotRunning = errors.New("clipkeep daemon is not running")

// dialDaemon connects to the local daemon.
func dialDaemon() (*rpc.Client, error) {
	path := ipc.SocketPath()
	if !ipc.IsRunning() {
		return nil, fmt.Errorf("%w (socket %s)", errNotRunning, path)
	}
	return rpc.Dial(path)
}
