package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/japaniel/termlookup/pkg/batch"
	"github.com/japaniel/termlookup/pkg/extract"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		file     string
		htmlFile string
		pageURL  string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Resolve many queries at once",
		Long: `Resolve every query from a text file (one per line), an HTML glossary
page on disk, or a glossary page URL. Pinyin ruby annotations are stripped from
HTML and the text is split on punctuation into candidate terms.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var queries []string
			switch {
			case file != "":
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				if queries, err = extract.Lines(f); err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
			case htmlFile != "":
				f, err := os.Open(htmlFile)
				if err != nil {
					return err
				}
				defer f.Close()
				page, err := extract.FromHTML(f, nil)
				if err != nil {
					return err
				}
				queries = extract.SplitCandidates(page.Text)
			case pageURL != "":
				page, err := extract.Fetch(ctx, nil, pageURL)
				if err != nil {
					return err
				}
				queries = extract.SplitCandidates(page.Text)
			default:
				return fmt.Errorf("one of --file, --html or --url is required")
			}

			snap, err := a.snapshot(ctx)
			if err != nil {
				return err
			}
			threshold, err := a.threshold(cmd)
			if err != nil {
				return err
			}

			tr := batch.NewTranslator(snap, a.conn, threshold)
			tr.Workers = a.cfg.Batch.Workers
			tr.BatchSize = a.cfg.Batch.Size
			tr.Logger = a.logger.Named("batch")
			results, err := tr.Run(ctx, queries)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(a.out, results)
			}
			matched := 0
			for _, r := range results {
				best, ok := r.Best()
				if !ok {
					fmt.Fprintf(a.out, "%s\t-\n", r.Query)
					continue
				}
				matched++
				fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\n", r.Query, best.ChineseTerm, best.EnglishTerm, best.MatchType)
			}
			fmt.Fprintf(a.out, "Resolved %d of %d queries.\n", matched, len(results))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "text file with one query per line")
	cmd.Flags().StringVar(&htmlFile, "html", "", "HTML glossary page on disk")
	cmd.Flags().StringVar(&pageURL, "url", "", "URL of an HTML glossary page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().Float64("threshold", 0, "fuzzy tolerance in [0, 1] (default: stored setting)")
	cmd.MarkFlagsMutuallyExclusive("file", "html", "url")
	return cmd
}
