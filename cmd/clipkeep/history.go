package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/logging"
	"go.klb.dev/clipkeep/internal/pump"
	"go.klb.dev/clipkeep/internal/store"
)

func newHistoryCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the clipboard history, newest first",
		Long: `Prints recent clipboard entries, newest first.

If the daemon is running the entries come from its socket. Otherwise the
history database is read directly (--follow needs the daemon).`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runHistory(v) },
	}

	f := cmd.Flags()
	f.Int("limit", history.DefaultLimit, "maximum number of entries")
	f.Bool("json", false, "output JSON")
	f.Bool("follow", false, "keep printing new entries as they are captured")
	f.String("db-path", "", "history database read when no daemon is running")
	addConfigFlag(cmd)

	return cmd
}

func runHistory(v *viper.Viper) error {
	limit := v.GetInt("limit")
	jsonOut := v.GetBool("json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := dialDaemon()
	if errors.Is(err, errNotRunning) {
		if v.GetBool("follow") {
			return err
		}
		entries, err := readDatabase(ctx, v.GetString("db-path"), limit)
		if err != nil {
			return err
		}
		return printEntries(os.Stdout, history.NewestFirst(entries), jsonOut)
	}
	if err != nil {
		return err
	}
	defer c.Close()

	if !v.GetBool("follow") {
		entries, err := c.List(ctx, limit)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		return printEntries(os.Stdout, history.NewestFirst(entries), jsonOut)
	}

	return c.Watch(ctx, func(ev pump.Event) error {
		switch ev.Kind {
		case pump.HistoryLoaded:
			entries := ev.History
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			return printEntries(os.Stdout, history.NewestFirst(entries), jsonOut)
		case pump.EntryCaptured:
			return printEntries(os.Stdout, []history.Entry{ev.Entry}, jsonOut)
		}
		return nil
	})
}

// readDatabase loads entries from the database file without a daemon. A
// missing file is an empty history. Returned oldest first.
func readDatabase(ctx context.Context, setting string, limit int) ([]history.Entry, error) {
	path, err := resolveDBPath(setting)
	if err != nil {
		return nil, err
	}
	if path == "" || !fileExists(path) {
		return nil, nil
	}
	st := store.OpenWith(ctx, store.Durable(path))
	defer st.Close()
	if !st.Enabled() {
		return nil, fmt.Errorf("history: cannot open %s", path)
	}
	recent, err := st.LoadRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return history.NewestFirst(recent), nil
}

// printEntries writes entries in the order given.
func printEntries(w io.Writer, entries []history.Entry, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", entryID(e), entryTime(e), oneLine(e.Content))
	}
	return tw.Flush()
}

func entryID(e history.Entry) string {
	if e.ID == 0 {
		return "-"
	}
	return fmt.Sprint(e.ID)
}

func entryTime(e history.Entry) string {
	if e.CreatedAt.IsZero() {
		return "-"
	}
	return e.CreatedAt.Local().Format(time.DateTime)
}

// oneLine flattens content for tabular output.
func oneLine(s string) string {
	s = strings.NewReplacer("\r\n", "⏎", "\n", "⏎", "\t", " ").Replace(s)
	return logging.Preview(s)
}
