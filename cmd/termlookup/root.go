package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/japaniel/termlookup/pkg/config"
	"github.com/japaniel/termlookup/pkg/db"
	"github.com/japaniel/termlookup/pkg/dictionary"
	"github.com/japaniel/termlookup/pkg/logging"
	"github.com/japaniel/termlookup/pkg/search"
	"github.com/japaniel/termlookup/pkg/term"
)

// app carries what every subcommand needs once flags and config are parsed.
type app struct {
	out    io.Writer
	errOut io.Writer

	cfgFile string
	v       *viper.Viper
	cfg     config.Config
	logger  *zap.Logger

	conn  *sql.DB
	cache *dictionary.Cache
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "termlookup",
		Short: "Look up Chinese medical terminology",
		Long: `termlookup resolves a Chinese term, English gloss or pinyin spelling against
the system medical dictionary and your own user dictionary, falling back to
fuzzy matching when nothing matches exactly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.String("db", "", "path to the sqlite user database")
	pf.String("dict", "", "path to the system dictionary JSON")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newLookupCmd(a),
		newBatchCmd(a),
		newTermCmd(a),
		newFavCmd(a),
		newHistoryCmd(a),
		newSettingsCmd(a),
		newDictCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	pf := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"database_path":   "db",
		"dictionary.path": "dict",
		"log.level":       "log-level",
	} {
		if f := pf.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.v = v
	a.cfg = cfg
	a.logger = logging.NewWriterLogger(a.errOut, cfg.LogLevel)
	a.cache = dictionary.NewCache(a.logger.Named("dictionary"))
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

// database opens the user database on first use.
func (a *app) database() (*sql.DB, error) {
	if a.conn != nil {
		return a.conn, nil
	}
	conn, err := db.Open(a.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.cfg.DatabasePath, err)
	}
	a.conn = conn
	return conn, nil
}

func (a *app) systemTerms(ctx context.Context) []term.Record {
	return a.cache.SystemTerms(ctx, dictionary.FileSource(a.cfg.Dictionary.Path))
}

// snapshot indexes the current user terms and the system dictionary.
func (a *app) snapshot(ctx context.Context) (*search.Snapshot, error) {
	conn, err := a.database()
	if err != nil {
		return nil, err
	}
	user, err := db.ListUserTerms(conn)
	if err != nil {
		return nil, fmt.Errorf("load user terms: %w", err)
	}
	scorer, err := a.cfg.Scorer()
	if err != nil {
		return nil, err
	}
	return search.NewSnapshot(user, a.systemTerms(ctx), search.Options{
		Scorer: scorer,
		Logger: a.logger.Named("search"),
	}), nil
}

// threshold returns the flag value when set, else the stored setting, else
// the configured default.
func (a *app) threshold(cmd *cobra.Command) (float64, error) {
	if f := cmd.Flags().Lookup("threshold"); f != nil && f.Changed {
		return cmd.Flags().GetFloat64("threshold")
	}
	conn, err := a.database()
	if err != nil {
		return 0, err
	}
	return db.GetFuzzyThreshold(conn, a.cfg.Search.FuzzyThreshold)
}
