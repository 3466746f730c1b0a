// Command rawclusteringz computes raw clustering-redshift pair counts for a
// reference (spectroscopic) catalog against an unknown sample and a random
// catalog, and writes one row per reference galaxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/Noofbiz/clusterz/catalogs"
	"github.com/Noofbiz/clusterz/clusterz"
	"github.com/Noofbiz/clusterz/config"
	"github.com/Noofbiz/clusterz/cosmology"
	"github.com/Noofbiz/clusterz/geometry"
	"github.com/Noofbiz/clusterz/results"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	opts := bindFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, errs := config.Read(*opts.configPath)
	if cfg != nil {
		opts.apply(fs, cfg)
		errs = append(errs, cfg.Validate()...)
	}
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
		os.Exit(2)
	}

	if *opts.printEffectiveConfig {
		printConfig(cfg)
		return
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("[RawClusteringZ] failed", "error", err)
		os.Exit(1)
	}
}

// flagOptions holds CLI overrides. Only flags the user set explicitly are
// applied, so config file and environment values survive the defaults here.
type flagOptions struct {
	configPath           *string
	reference            *string
	unknown              *string
	random               *string
	output               *string
	plot                 *string
	metricsTextfile      *string
	minSep               *float64
	maxSep               *float64
	seed                 *int64
	workers              *int
	progressInterval     *time.Duration
	logLevel             *string
	logFormat            *string
	printEffectiveConfig *bool
}

func bindFlags(fs *flag.FlagSet) *flagOptions {
	return &flagOptions{
		configPath:           fs.String("config", "", "path to a YAML stage config (optional)"),
		reference:            fs.String("reference", "", "glob of reference catalog CSVs (ra, dec, z)"),
		unknown:              fs.String("unknown", "", "glob of unknown sample CSVs (ra, dec, weight)"),
		random:               fs.String("random", "", "glob of random catalog CSVs (ra, dec[, weight])"),
		output:               fs.String("out", "", "output path: .csv, .gob or .cbor, optionally with .zst"),
		plot:                 fs.String("plot", "", "if set, write a pair-count plot to this path"),
		metricsTextfile:      fs.String("metrics-textfile", "", "if set, write Prometheus metrics to this textfile"),
		minSep:               fs.Float64("min-sep-mpc", config.DefaultMinSepMpc, "minimum comoving separation in Mpc"),
		maxSep:               fs.Float64("max-sep-mpc", config.DefaultMaxSepMpc, "maximum comoving separation in Mpc"),
		seed:                 fs.Int64("seed", config.DefaultSeed, "seed for resampling random-catalog weights"),
		workers:              fs.Int("workers", 0, "number of workers (0 = NumCPU)"),
		progressInterval:     fs.Duration("progress-interval", config.DefaultProgressInterval, "progress logging interval (0 disables)"),
		logLevel:             fs.String("log-level", config.DefaultLogLevel, "debug, info, warn or error"),
		logFormat:            fs.String("log-format", config.DefaultLogFormat, "text or json"),
		printEffectiveConfig: fs.Bool("print-effective-config", false, "print the effective (file+env+CLI merged) configuration and exit"),
	}
}

// apply copies explicitly set flags onto cfg. Flags override file and env.
func (o *flagOptions) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "reference":
			cfg.ReferenceCatalog = *o.reference
		case "unknown":
			cfg.UnknownCatalog = *o.unknown
		case "random":
			cfg.RandomCatalog = *o.random
		case "out":
			cfg.Output = *o.output
		case "plot":
			cfg.Plot = *o.plot
		case "metrics-textfile":
			cfg.MetricsTextfile = *o.metricsTextfile
		case "min-sep-mpc":
			cfg.MinSepMpc = *o.minSep
		case "max-sep-mpc":
			cfg.MaxSepMpc = *o.maxSep
		case "seed":
			cfg.Seed = *o.seed
		case "workers":
			cfg.Workers = *o.workers
		case "progress-interval":
			cfg.ProgressInterval = *o.progressInterval
		case "log-level":
			cfg.LogLevel = *o.logLevel
		case "log-format":
			cfg.LogFormat = *o.logFormat
		}
	})
}

func printConfig(cfg *config.Config) {
	summary := cfg.LogSummary()
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("Effective configuration:\n")
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, summary[k])
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// run executes the stage: load catalogs, count pairs, write outputs.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	summary := cfg.LogSummary()
	attrs := make([]any, 0, 2*len(summary))
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("[RawClusteringZ] configuration", attrs...)

	ref, unknown, random, err := loadCatalogs(cfg, logger)
	if err != nil {
		return err
	}

	dist, err := distanceFunc(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := clusterz.NewMetrics()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	est, err := clusterz.NewEstimator(clusterz.Config{
		Window:           clusterz.SeparationWindow{MinMpc: cfg.MinSepMpc, MaxMpc: cfg.MaxSepMpc},
		Workers:          cfg.Workers,
		ProgressInterval: cfg.ProgressInterval,
		Logger:           logger,
		Metrics:          metrics,
	}, ref, unknown, random, dist)
	if err != nil {
		return fmt.Errorf("create estimator: %w", err)
	}

	res, runErr := est.Run(ctx)
	// Written for failed runs too.
	if cfg.MetricsTextfile != "" {
		if err := writeMetrics(cfg.MetricsTextfile, reg); err != nil {
			if runErr != nil {
				logger.Warn("[RawClusteringZ] could not write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
			} else {
				return err
			}
		}
	}
	if runErr != nil {
		return runErr
	}

	if err := results.Write(cfg.Output, res); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	logger.Info("[RawClusteringZ] wrote results", "path", cfg.Output, "rows", res.Len())

	if cfg.Plot != "" {
		if err := results.Plot(cfg.Plot, res); err != nil {
			return fmt.Errorf("plot results: %w", err)
		}
		logger.Info("[RawClusteringZ] wrote plot", "path", cfg.Plot)
	}
	return nil
}

// writeMetrics writes a node-exporter textfile, creating its directory.
func writeMetrics(path string, g prometheus.Gatherer) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// loadCatalogs reads the three inputs. A random catalog without a weight
// column gets weights resampled from the unknown sample.
func loadCatalogs(cfg *config.Config, logger *slog.Logger) (catalogs.Reference, catalogs.Weighted, catalogs.Weighted, error) {
	ref, err := catalogs.LoadReferenceCSV(cfg.ReferenceCatalog)
	if err != nil {
		return catalogs.Reference{}, catalogs.Weighted{}, catalogs.Weighted{}, fmt.Errorf("load reference catalog: %w", err)
	}
	logger.Info("[RawClusteringZ] reference catalog loaded", "pattern", cfg.ReferenceCatalog, "galaxies", ref.Len())

	unknown, err := catalogs.LoadWeightedCSV(clusterz.CatalogUnknown, cfg.UnknownCatalog)
	if err != nil {
		return catalogs.Reference{}, catalogs.Weighted{}, catalogs.Weighted{}, fmt.Errorf("load unknown catalog: %w", err)
	}
	us := unknown.Summary()
	logger.Info("[RawClusteringZ] unknown catalog loaded", "pattern", cfg.UnknownCatalog,
		"objects", us.Count, "weight_total", us.Total, "weight_mean", us.Mean, "weight_std", us.StdDev)

	hasWeights, err := catalogs.HasWeightColumn(cfg.RandomCatalog)
	if err != nil {
		return catalogs.Reference{}, catalogs.Weighted{}, catalogs.Weighted{}, fmt.Errorf("inspect random catalog: %w", err)
	}
	var random catalogs.Weighted
	if hasWeights {
		random, err = catalogs.LoadWeightedCSV(clusterz.CatalogRandom, cfg.RandomCatalog)
	} else {
		var pts []geometry.Point
		pts, err = catalogs.LoadPointsCSV(cfg.RandomCatalog)
		if err == nil {
			random, err = catalogs.WeightRandoms(pts, unknown, cfg.Seed)
		}
		if err == nil {
			logger.Info("[RawClusteringZ] resampled random weights from unknown sample", "seed", cfg.Seed)
		}
	}
	if err != nil {
		return catalogs.Reference{}, catalogs.Weighted{}, catalogs.Weighted{}, fmt.Errorf("load random catalog: %w", err)
	}
	rs := random.Summary()
	logger.Info("[RawClusteringZ] random catalog loaded", "pattern", cfg.RandomCatalog,
		"objects", rs.Count, "weight_total", rs.Total, "weight_mean", rs.Mean)

	return ref, unknown, random, nil
}

// distanceFunc builds the memoised comoving-distance function.
func distanceFunc(cfg *config.Config) (clusterz.DistanceFunc, error) {
	cosmo, err := cosmology.NewFlatLambdaCDMWithNeutrinos(cfg.Cosmology.H0, cfg.Cosmology.Om0, cfg.Cosmology.Tcmb0, cfg.Cosmology.MNu)
	if err != nil {
		return nil, fmt.Errorf("cosmology: %w", err)
	}
	cached, err := cosmology.NewCached(cosmo.ComovingDistance, cfg.DistanceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("distance cache: %w", err)
	}
	return cached.ComovingDistance, nil
}
