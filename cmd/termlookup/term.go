package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/japaniel/termlookup/pkg/db"
	"github.com/japaniel/termlookup/pkg/dictionary"
	"github.com/japaniel/termlookup/pkg/term"
)

func newTermCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "term",
		Short: "Manage the user dictionary",
	}
	cmd.AddCommand(
		newTermAddCmd(a),
		newTermEditCmd(a),
		newTermRmCmd(a),
		newTermListCmd(a),
		newTermImportCmd(a),
		newTermExportCmd(a),
	)
	return cmd
}

type termFlags struct {
	chinese, english, pinyin, initials string
	category, note, usage, roots       string
	warnings                           []string
}

func (f *termFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.chinese, "zh", "", "Chinese term")
	fs.StringVar(&f.english, "en", "", "English term")
	fs.StringVar(&f.pinyin, "pinyin", "", "full pinyin (derived from --zh when omitted)")
	fs.StringVar(&f.initials, "initials", "", "pinyin initials (derived from --zh when omitted)")
	fs.StringVar(&f.category, "category", "", "category")
	fs.StringVar(&f.note, "note", "", "free-form note")
	fs.StringVar(&f.usage, "usage", "", "usage example")
	fs.StringVar(&f.roots, "roots", "", "root analysis")
	fs.StringArrayVar(&f.warnings, "warn", nil, "mistranslation warning (repeatable)")
}

// apply overlays the flags that were set on in.
func (f *termFlags) apply(fs *pflag.FlagSet, in db.UserTermInput) db.UserTermInput {
	set := func(name string) bool { return fs.Changed(name) }
	if set("zh") {
		in.ChineseTerm = f.chinese
		// A new Chinese term invalidates pinyin derived from the old one.
		if !set("pinyin") {
			in.PinyinFull = term.None()
		}
		if !set("initials") {
			in.PinyinFirst = term.None()
		}
	}
	if set("en") {
		in.EnglishTerm = f.english
	}
	if set("pinyin") {
		in.PinyinFull = term.Some(f.pinyin)
	}
	if set("initials") {
		in.PinyinFirst = term.Some(f.initials)
	}
	if set("category") {
		in.Category = f.category
	}
	if set("note") {
		in.Note = f.note
	}
	if set("usage") {
		in.Usage = f.usage
	}
	if set("roots") {
		in.RootAnalysis = f.roots
	}
	if set("warn") {
		in.MistranslationWarnings = f.warnings
	}
	return in
}

func inputFromRecord(r term.Record) db.UserTermInput {
	return db.UserTermInput{
		ChineseTerm:            r.ChineseTerm,
		EnglishTerm:            r.EnglishTerm,
		PinyinFull:             r.PinyinFull,
		PinyinFirst:            r.PinyinFirst,
		Category:               r.Category,
		Note:                   r.Note,
		Usage:                  r.Usage,
		RootAnalysis:           r.RootAnalysis,
		MistranslationWarnings: r.MistranslationWarnings,
	}
}

func inputFromEntry(e dictionary.Entry) db.UserTermInput {
	return inputFromRecord(dictionary.NewRecord(e, "", term.SourceUser))
}

func newTermAddCmd(a *app) *cobra.Command {
	var f termFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user term",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			rec, err := db.CreateUserTerm(conn, f.apply(cmd.Flags(), db.UserTermInput{}))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s %s (%s)\n", rec.ID, rec.ChineseTerm, rec.EnglishTerm)
			return nil
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("zh")
	_ = cmd.MarkFlagRequired("en")
	return cmd
}

func newTermEditCmd(a *app) *cobra.Command {
	var f termFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a user term; only the given fields change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			current, err := db.GetUserTerm(conn, args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			rec, err := db.UpdateUserTerm(conn, current.ID, f.apply(cmd.Flags(), inputFromRecord(current)))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated %s %s (%s)\n", rec.ID, rec.ChineseTerm, rec.EnglishTerm)
			return nil
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newTermRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a user term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			if err := db.DeleteUserTerm(conn, args[0]); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintf(a.out, "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newTermListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user terms in the order they were added",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.database()
			if err != nil {
				return err
			}
			terms, err := db.ListUserTerms(conn)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.out, terms)
			}
			for _, r := range terms {
				fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\n", r.ID, r.ChineseTerm, r.EnglishTerm, r.PinyinFull.OrEmpty())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print terms as JSON")
	return cmd
}

func newTermImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import user terms from a JSON file in the dictionary format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			entries, err := dictionary.ParseEntries(f)
			if err != nil {
				return err
			}

			conn, err := a.database()
			if err != nil {
				return err
			}
			tx, err := conn.Begin()
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback() }()

			for i, e := range entries {
				if _, err := db.CreateUserTerm(tx, inputFromEntry(e)); err != nil {
					return fmt.Errorf("entry %d: %w", i, err)
				}
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Imported %d terms.\n", len(entries))
			return nil
		},
	}
}

func newTermExportCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export user terms as JSON in the dictionary format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			conn, err := a.database()
			if err != nil {
				return err
			}
			terms, err := db.ListUserTerms(conn)
			if err != nil {
				return err
			}
			entries := make([]dictionary.Entry, len(terms))
			for i, r := range terms {
				entries[i] = dictionary.EntryFromRecord(r)
			}

			var w io.Writer = a.out
			if outPath != "" {
				f, cerr := os.Create(outPath)
				if cerr != nil {
					return cerr
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = cerr
					}
				}()
				w = f
			}
			return dictionary.WriteEntries(w, entries)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	return cmd
}

// isNotFound reports whether err is a missing user term.
func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}
