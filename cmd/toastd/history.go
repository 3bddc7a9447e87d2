package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"toastd/internal/app"
	"toastd/internal/config"
	"toastd/internal/storage"
	logx "toastd/pkg/logx"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recent toast lifecycle events",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("limit")
		cfg, err := config.NewConfigManager(configPath(cmd)).Load()
		if err != nil {
			return err
		}
		st, err := app.OpenHistoryStore(cfg, logx.Nop())
		if err != nil {
			return err
		}
		if st == nil {
			return errors.New("history is disabled (no storage configured)")
		}
		defer st.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		entries, err := st.Recent(ctx, n)
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to print")
	rootCmd.AddCommand(historyCmd)
}

func printHistory(w io.Writer, entries []storage.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tID\tCATEGORY\tMESSAGE\tREASON")
	for _, e := range entries {
		msg := e.Message
		if e.Title != "" {
			msg = e.Title + ": " + msg
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.At.Local().Format(time.DateTime), e.Type, e.ToastID, e.Category, msg, e.Reason)
	}
	_ = tw.Flush()
}
