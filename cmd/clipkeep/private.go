package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPrivateCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "private on|off|toggle",
		Short: "Turn private mode on or off",
		Long: `Sets private-mode in the config file the daemon watches. While private mode
is on nothing is read from the clipboard; history captured earlier is kept.

The file is the one reported by "clipkeep status", or --config, or
$HOME/.config/clipkeep/clipkeep.toml.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off", "toggle"},
		PreRunE:   func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:      func(cmd *cobra.Command, args []string) error { return runPrivate(cmd, args[0]) },
	}
	addConfigFlag(cmd)
	return cmd
}

func runPrivate(cmd *cobra.Command, arg string) error {
	path, current, err := privateTarget(cmd)
	if err != nil {
		return err
	}

	var on bool
	switch arg {
	case "on":
		on = true
	case "off":
		on = false
	case "toggle":
		on = !current
	default:
		return fmt.Errorf("private: want on, off or toggle, got %q", arg)
	}

	if err := writePrivateMode(path, on); err != nil {
		return err
	}
	state := "off"
	if on {
		state = "on"
	}
	fmt.Printf("private mode %s (%s)\n", state, path)
	return nil
}

// privateTarget returns the config file to rewrite and the current
// private-mode value. A running daemon is asked first since it knows both.
func privateTarget(cmd *cobra.Command) (string, bool, error) {
	explicit, _ := cmd.Flags().GetString("config")

	if c, err := dialDaemon(); err == nil {
		defer c.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if st, err := c.Status(ctx); err == nil {
			current, _ := st["private_mode"].(bool)
			path, _ := st["config_file"].(string)
			if explicit != "" {
				path = explicit
			}
			if path != "" {
				return path, current, nil
			}
		}
	}

	path := explicit
	if path == "" {
		p, err := userConfigPath()
		if err != nil {
			return "", false, fmt.Errorf("config: %w", err)
		}
		path = p
	}
	current, _ := readPrivateMode(path)
	return path, current, nil
}
