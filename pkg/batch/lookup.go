package batch

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/termlookup/pkg/db"
	"github.com/japaniel/termlookup/pkg/term"
)

// Resolver resolves one query against a fixed term snapshot.
type Resolver interface {
	Resolve(query string, threshold float64) []term.MatchResult
}

// Result is the outcome of one query, at its position in the input.
type Result struct {
	Index   int                `json:"index"`
	Query   string             `json:"query"`
	Matches []term.MatchResult `json:"matches"`
}

// Best returns the top match, if any.
func (r Result) Best() (term.MatchResult, bool) {
	if len(r.Matches) == 0 {
		return term.MatchResult{}, false
	}
	return r.Matches[0], true
}

// Translator resolves many queries concurrently and records each non-empty
// query in the lookup history.
type Translator struct {
	Resolver  Resolver
	Threshold float64
	// DB receives history rows. nil disables history.
	DB        *sql.DB
	BatchSize int
	Workers   int
	Logger    *zap.Logger
	// OnProgress is called with the number of queries finished so far.
	OnProgress func(current, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewTranslator creates a Translator with default concurrency settings.
func NewTranslator(r Resolver, conn *sql.DB, threshold float64) *Translator {
	return &Translator{
		Resolver:  r,
		Threshold: threshold,
		DB:        conn,
		BatchSize: 50,
		Workers:   4,
	}
}

// Run resolves queries and returns one Result per query in input order. When
// ctx is canceled the results finished so far are returned with ctx.Err().
func (tr *Translator) Run(ctx context.Context, queries []string) ([]Result, error) {
	logger := tr.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := tr.Workers
	if workers <= 0 {
		workers = 1
	}
	total := len(queries)
	out := make([]Result, 0, total)
	if total == 0 {
		return out, nil
	}

	var wp WorkerPoolInterface
	if tr.PoolFactory != nil {
		wp = tr.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}

	var bw *BatchWriter
	if tr.DB != nil {
		bw = NewBatchWriter(tr.DB, tr.BatchSize, 100*time.Millisecond)
		bw.OnError = func(err error) {
			logger.Warn("history write failed", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan Result, workers*2)
	doneCh := make(chan error, 1)

	// Results arrive in completion order; hold them until every earlier index
	// has been emitted.
	go func() {
		defer close(doneCh)
		pending := make(map[int]Result)
		next := 0
		var writeErr error
		for res := range resultCh {
			pending[res.Index] = res
			for {
				item, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if writeErr == nil {
					if err := tr.record(bw, item); err != nil {
						writeErr = err
						cancel()
					}
				}
				out = append(out, item)
				next++
				if tr.OnProgress != nil {
					tr.OnProgress(next, total)
				}
			}
		}
		doneCh <- writeErr
	}()

	wp.Start(ctx)
	var submitErr error
	for i, q := range queries {
		idx, query := i, q
		job := func(ctx context.Context) error {
			res := Result{Index: idx, Query: query, Matches: tr.Resolver.Resolve(query, tr.Threshold)}
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			if err != ctx.Err() && err != ErrPoolClosed {
				submitErr = fmt.Errorf("submit query %d: %w", idx, err)
			}
			break
		}
	}

	// All workers have returned once Close does, so nothing sends on resultCh.
	wp.Close()
	close(resultCh)
	consumerErr := <-doneCh

	if bw != nil {
		if err := bw.Close(); err != nil && consumerErr == nil {
			consumerErr = err
		}
	}
	logger.Debug("batch lookup finished", zap.Int("queries", total), zap.Int("resolved", len(out)))

	switch {
	case submitErr != nil:
		return out, submitErr
	case consumerErr != nil:
		return out, consumerErr
	case len(out) < total:
		if err := ctx.Err(); err != nil {
			return out, err
		}
		return out, fmt.Errorf("batch lookup stopped after %d of %d queries", len(out), total)
	}
	return out, nil
}

func (tr *Translator) record(bw *BatchWriter, res Result) error {
	if bw == nil {
		return nil
	}
	query := strings.TrimSpace(res.Query)
	if query == "" {
		return nil
	}
	resultTerm, matchType := "", ""
	if best, ok := res.Best(); ok {
		resultTerm, matchType = best.ChineseTerm, string(best.MatchType)
	}
	return bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		return db.AddHistory(tx, query, resultTerm, matchType)
	})
}
