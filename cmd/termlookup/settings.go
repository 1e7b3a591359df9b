package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/japaniel/termlookup/pkg/db"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			t, err := db.GetFuzzyThreshold(conn, a.cfg.Search.FuzzyThreshold)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "fuzzy_threshold\t%.1f\n", t)
			fmt.Fprintf(a.out, "algorithm\t%s\n", a.cfg.Search.Algorithm)
			fmt.Fprintf(a.out, "dictionary\t%s\n", a.cfg.Dictionary.Path)
			fmt.Fprintf(a.out, "database\t%s\n", a.cfg.DatabasePath)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "threshold <value>",
		Short: fmt.Sprintf("Set the fuzzy tolerance (0.0 to %.1f in steps of 0.1)", db.MaxFuzzyThreshold),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid threshold %q: %w", args[0], err)
			}
			conn, err := a.database()
			if err != nil {
				return err
			}
			stored, err := db.SetFuzzyThreshold(conn, v)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "fuzzy_threshold set to %.1f\n", stored)
			return nil
		},
	})
	return cmd
}
