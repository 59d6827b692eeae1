package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon state",
		Long: `Displays private mode, the clipboard source, where history is stored and
the capture counters of the running daemon.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runStatus(v) },
	}

	f := cmd.Flags()
	f.Bool("json", false, "output raw JSON")
	addConfigFlag(cmd)

	return cmd
}

func runStatus(v *viper.Viper) error {
	c, err := dialDaemon()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(enc))
		return nil
	}
	printStatus(st)
	return nil
}

func printStatus(st map[string]any) {
	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	row := func(label, key string) {
		if val, ok := st[key]; ok && val != "" {
			_, _ = fmt.Fprintf(w, "%s:\t%v\n", label, val)
		}
	}
	row("Version", "version")
	row("Private mode", "private_mode")
	row("Source", "source")
	row("Storage", "storage_kind")
	row("Database", "storage_path")
	row("Config", "config_file")
	row("Socket", "socket")
	row("Uptime", "uptime")
	row("In memory", "in_memory")
	row("Watchers", "subscribers")
	row("Written", "written")
	row("Write failures", "write_failed")
	row("Write queue", "write_pending")
	_ = w.Flush()

	stats, ok := st["poller"].(map[string]any)
	if !ok || len(stats) == 0 {
		return
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println()
	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "POLLER\tCOUNT")
	for _, k := range keys {
		_, _ = fmt.Fprintf(tw, "%s\t%v\n", k, stats[k])
	}
	_ = tw.Flush()
}
