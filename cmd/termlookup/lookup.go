package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/termlookup/pkg/db"
	"github.com/japaniel/termlookup/pkg/term"
)

func newLookupCmd(a *app) *cobra.Command {
	var (
		asJSON    bool
		noHistory bool
	)
	cmd := &cobra.Command{
		Use:   "lookup <query>",
		Short: "Resolve a Chinese term, English gloss or pinyin",
		Long: `Resolve a query in stages: exact user term, exact system term, pinyin
(full spelling or initials), then fuzzy. The first stage that matches wins.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			threshold, err := a.threshold(cmd)
			if err != nil {
				return err
			}
			results := snap.Resolve(query, threshold)

			if !noHistory && strings.TrimSpace(query) != "" {
				resultTerm, matchType := "", ""
				if len(results) > 0 {
					resultTerm, matchType = results[0].ChineseTerm, string(results[0].MatchType)
				}
				if err := db.AddHistory(a.conn, query, resultTerm, matchType); err != nil {
					a.logger.Warn("failed to record history", zap.Error(err))
				}
			}

			if asJSON {
				return writeJSON(a.out, results)
			}
			if len(results) == 0 {
				fmt.Fprintf(a.out, "No match for %q\n", query)
				return nil
			}
			for _, r := range results {
				printMatch(a.out, r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this lookup")
	cmd.Flags().Float64("threshold", 0, "fuzzy tolerance in [0, 1] (default: stored setting)")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMatch(w io.Writer, r term.MatchResult) {
	line := fmt.Sprintf("[%s] %s  %s", r.MatchType, r.ChineseTerm, r.EnglishTerm)
	if p, ok := r.PinyinFull.Get(); ok && p != "" {
		line += fmt.Sprintf("  (%s)", p)
	}
	if r.Score != nil {
		line += fmt.Sprintf("  score=%.3f", *r.Score)
	}
	fmt.Fprintf(w, "%s  <%s>\n", line, r.ID)
	printRecordDetails(w, r.Record)
}

func printRecordDetails(w io.Writer, r term.Record) {
	for _, kv := range []struct{ label, value string }{
		{"category", r.Category},
		{"note", r.Note},
		{"usage", r.Usage},
		{"roots", r.RootAnalysis},
	} {
		if kv.value != "" {
			fmt.Fprintf(w, "    %s: %s\n", kv.label, kv.value)
		}
	}
	for _, warn := range r.MistranslationWarnings {
		fmt.Fprintf(w, "    avoid: %s\n", warn)
	}
}
