package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/japaniel/termlookup/pkg/db"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent lookups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			entries, err := db.ListHistory(conn, limit)
			if err != nil {
				return err
			}
			for _, h := range entries {
				result := h.ResultTerm
				if result == "" {
					result = "-"
				}
				fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\n", h.SearchedAt.Local().Format(time.DateTime), h.Query, result, h.MatchType)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the lookup history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			if err := db.ClearHistory(conn); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "History cleared.")
			return nil
		},
	})
	return cmd
}
