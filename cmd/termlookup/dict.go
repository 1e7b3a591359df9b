package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/termlookup/pkg/dictionary"
)

func newDictCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Manage the system dictionary",
	}

	var (
		url   string
		force bool
	)
	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Download the system dictionary",
		Long: `Download the system dictionary to the configured path. An existing file is
kept unless --force is given. URLs ending in .gz are decompressed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = a.cfg.Dictionary.URL
			}
			path := a.cfg.Dictionary.Path
			var err error
			if force {
				if url == "" {
					return fmt.Errorf("no dictionary url configured")
				}
				err = dictionary.Download(cmd.Context(), dictionary.HTTPSource{URL: url}, strings.HasSuffix(url, ".gz"), path)
			} else {
				err = dictionary.EnsureDictionary(cmd.Context(), url, path)
			}
			if err != nil {
				return err
			}
			terms, err := dictionary.LoadSystemTerms(path)
			if err != nil {
				return err
			}
			a.logger.Info("dictionary ready", zap.String("path", path), zap.Int("terms", len(terms)))
			fmt.Fprintf(a.out, "Dictionary at %s has %d terms.\n", path, len(terms))
			return nil
		},
	}
	fetch.Flags().StringVar(&url, "url", "", "dictionary URL (default: dictionary.url setting)")
	fetch.Flags().BoolVar(&force, "force", false, "replace an existing dictionary")
	cmd.AddCommand(fetch)
	return cmd
}
