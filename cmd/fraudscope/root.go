package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/fraudscope/pkg/cache"
	"github.com/hed1ad/fraudscope/pkg/config"
	"github.com/hed1ad/fraudscope/pkg/dataset"
	"github.com/hed1ad/fraudscope/pkg/logging"
	"github.com/hed1ad/fraudscope/pkg/scoring"
	"github.com/hed1ad/fraudscope/pkg/txn"
)

// errUnavailable marks a run that could not produce results; the reason was already shown.
var errUnavailable = errors.New("results unavailable")

type app struct {
	stdout io.Writer
	stderr io.Writer

	cfgFile string
	cfg     *config.Config
	log     *logrus.Entry

	loader *cache.Loader
	close  func()
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, close: func() {}}

	root := &cobra.Command{
		Use:           "fraudscope",
		Short:         "Score card transactions for fraud risk with an Isolation Forest",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Path to a YAML config file (optional)")
	pf.String("source", "data/raw/creditcard.csv", "Path to the labeled transaction CSV")
	pf.Int("sample-size", 1000, "Number of transactions to sample")
	pf.Int64("seed", dataset.DefaultSeed, "Seed for sampling and model randomness")
	pf.Float64("contamination", 0.002, "Expected share of fraudulent transactions, in (0, 0.5]")
	pf.Int("trees", 100, "Number of isolation trees")
	pf.Int("max-samples", 256, "Transactions drawn per isolation tree")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", logging.FormatText, "Log format: text or json")
	pf.String("cache", config.CacheMemory, "Sample cache backend: none, memory or redis")
	pf.String("redis-addr", "localhost:6379", "Redis address for the redis cache backend")
	pf.String("redis-password", "", "Redis password")
	pf.Int("redis-db", 0, "Redis database number")
	pf.Duration("cache-ttl", config.DefaultCacheTTL, "Lifetime of cached samples in redis")

	root.AddCommand(
		newScoreCmd(a),
		newExportCmd(a),
		newTopCmd(a),
		newSweepCmd(a),
	)

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, a.stderr)
	a.log = logger.WithField("run_id", uuid.NewString())

	sampler := dataset.New(dataset.WithSeed(cfg.Seed), dataset.WithLogger(a.log))
	a.loader = cache.NewLoader(sampler, a.store(cmd.Context()), cache.WithLogger(a.log))

	return nil
}

// store builds the configured cache backend, degrading to no cache when redis is unreachable.
func (a *app) store(ctx context.Context) cache.Store {
	switch a.cfg.Cache.Backend {
	case config.CacheMemory:
		return cache.NewMemoryStore()
	case config.CacheRedis:
		client, err := cache.DialRedis(ctx, a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisPassword, a.cfg.Cache.RedisDB)
		if err != nil {
			a.log.WithError(err).Warn("redis cache disabled")
			return nil
		}
		a.close = func() { client.Close() }
		return cache.NewRedisStore(client, a.cfg.Cache.TTL)
	default:
		return nil
	}
}

func (a *app) scorer() *scoring.Scorer {
	return scoring.New(
		scoring.WithTrees(a.cfg.Trees),
		scoring.WithMaxSamples(a.cfg.MaxSamples),
		scoring.WithSeed(a.cfg.Seed),
		scoring.WithLogger(a.log),
	)
}

// run loads a fresh sample and scores it with the given contamination.
func (a *app) run(ctx context.Context, contamination float64) (*txn.Table, scoring.Stats, error) {
	table, err := a.loader.Load(ctx, a.cfg.Source, a.cfg.SampleSize)
	if err != nil {
		return nil, scoring.Stats{}, a.unavailable(err)
	}

	table, stats, err := a.scorer().FitAndScore(table, contamination)
	if err != nil {
		return nil, scoring.Stats{}, a.unavailable(err)
	}

	return table, stats, nil
}

// unavailable reports a load or scoring failure without a stack of usage output.
func (a *app) unavailable(err error) error {
	var (
		lerr *dataset.LoadError
		serr *scoring.ScoringError
	)
	switch {
	case errors.As(err, &lerr):
		a.log.WithError(err).WithField("path", lerr.Path).Warn("dataset unavailable")
		fmt.Fprintf(a.stderr, "Dataset unavailable: %v\n", lerr)
	case errors.As(err, &serr):
		a.log.WithError(err).WithField("op", serr.Op).Warn("scoring unavailable")
		fmt.Fprintf(a.stderr, "Risk scoring unavailable: %v\n", serr)
	default:
		return err
	}
	return errUnavailable
}
