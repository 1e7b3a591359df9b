package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/japaniel/termlookup/pkg/db"
	"github.com/japaniel/termlookup/pkg/term"
)

func newFavCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fav",
		Short: "Manage favorite terms",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <term-id>",
		Short: "Add the term to favorites, or remove it if already there",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			on, err := db.ToggleFavorite(conn, args[0])
			if err != nil {
				return err
			}
			if on {
				fmt.Fprintf(a.out, "Added %s to favorites\n", args[0])
			} else {
				fmt.Fprintf(a.out, "Removed %s from favorites\n", args[0])
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List favorite terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			ids, err := db.ListFavorites(conn)
			if err != nil {
				return err
			}
			system := make(map[string]term.Record)
			for _, r := range a.systemTerms(cmd.Context()) {
				system[r.ID] = r
			}
			for _, id := range ids {
				rec, ok := system[id]
				if !ok {
					rec, err = db.GetUserTerm(conn, id)
					if isNotFound(err) {
						fmt.Fprintf(a.out, "%s\t(missing)\n", id)
						continue
					}
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(a.out, "%s\t%s\t%s\n", rec.ID, rec.ChineseTerm, rec.EnglishTerm)
			}
			return nil
		},
	})
	return cmd
}
