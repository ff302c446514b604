package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/sheet2photos/internal/config"
	"github.com/ivlev/sheet2photos/internal/engine"
	"github.com/ivlev/sheet2photos/internal/report"
	"github.com/ivlev/sheet2photos/internal/system"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitInvalid = 2
)

// set with -ldflags "-X main.buildVersion=..."
var buildVersion = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	reportPath string
	patterns   []string
}

// bindFlags ties every command line flag to a field of cfg, using the
// field's current value as the default.
func bindFlags(fs *flag.FlagSet, cfg *config.Config, opts *options) {
	fs.StringVar(&opts.configPath, "config", opts.configPath, "YAML file with default settings; flags override it")
	fs.StringVar(&opts.reportPath, "report", opts.reportPath, "write a YAML run report to this path")

	fs.StringVar(&cfg.ChromaKeyColor, "chroma-key-color", cfg.ChromaKeyColor, "background colour of the scanner sheet")
	fs.Float64Var(&cfg.FloodfillFuzz, "floodfill-fuzz", cfg.FloodfillFuzz, "max colour distance (ΔE) from the key counted as background")
	fs.IntVar(&cfg.TrimEdges, "trim-edges", cfg.TrimEdges, "pixels eroded from the mask")
	fs.IntVar(&cfg.GrowEdges, "grow-edges", cfg.GrowEdges, "pixels grown back after blurring")
	fs.Float64Var(&cfg.BlurEdgeFactor, "blur-edge-factor", cfg.BlurEdgeFactor, "gaussian sigma for mask edges")
	fs.IntVar(&cfg.MinPixelsTouchingLine, "min-pixels-touching-line", cfg.MinPixelsTouchingLine, "pixels a straight line must touch to be removed")
	fs.IntVar(&cfg.MaxLines, "max-lines", cfg.MaxLines, "max line artifacts removed per sheet")
	fs.IntVar(&cfg.MaxLineThickness, "max-line-thickness", cfg.MaxLineThickness, "max thickness of a line artifact")
	fs.Float64Var(&cfg.MaxBlobRotation, "max-blob-rotation", cfg.MaxBlobRotation, "max rotation applied to a photo, degrees")
	fs.IntVar(&cfg.MinBlobArea, "min-blob-area", cfg.MinBlobArea, "smallest photo area in pixels")
	fs.IntVar(&cfg.BlobPadding, "blob-padding", cfg.BlobPadding, "pixels kept around each trimmed photo")
	fs.StringVar(&cfg.SkewMethod, "skew-method", cfg.SkewMethod, "skew estimator: minrect, hough")
	fs.IntVar(&cfg.DPI, "dpi", cfg.DPI, "density written when the input has none; PDF render density")
	fs.BoolVar(&cfg.IgnoreDetectedDPI, "ignore-detected-dpi", cfg.IgnoreDetectedDPI, "always write -dpi")
	fs.BoolVar(&cfg.SaveIntermediaryImages, "save-intermediary-images", cfg.SaveIntermediaryImages, "save masks and cut-outs next to the photos")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for photos (default: next to each input)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "files processed in parallel, 0 = auto")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "debug logging")
}

// parseArgs builds the configuration: defaults, then -config, then flags.
func parseArgs(args []string, stderr io.Writer) (*config.Config, *options, error) {
	newFlagSet := func(cfg *config.Config, opts *options) *flag.FlagSet {
		fs := flag.NewFlagSet("sheet2photos", flag.ContinueOnError)
		fs.SetOutput(stderr)
		fs.Usage = func() {
			fmt.Fprintf(stderr, "Usage: sheet2photos [flags] <file or glob>...\n\n")
			fs.PrintDefaults()
		}
		bindFlags(fs, cfg, opts)
		return fs
	}

	cfg, opts := config.Default(), &options{}
	fs := newFlagSet(cfg, opts)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg, opts = loaded, &options{}
		fs = newFlagSet(cfg, opts)
		if err := fs.Parse(args); err != nil {
			return nil, nil, err
		}
	}

	opts.patterns = fs.Args()
	if len(opts.patterns) == 0 {
		fs.Usage()
		return nil, nil, errors.New("no input files given")
	}
	cfg.BuildVersion = buildVersion
	return cfg, opts, nil
}

func initLogger(verbose bool, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
		})
	}

	return logger
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "sheet2photos: %v\n", err)
		return exitInvalid
	}

	log := initLogger(cfg.Verbose, stderr)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("invalid parameters")
		return exitInvalid
	}
	batch, err := engine.NewBatch(cfg, log)
	if err != nil {
		log.WithError(err).Error("invalid parameters")
		return exitInvalid
	}

	system.InitResourceLimits(log)

	inputs, err := system.ExpandInputs(opts.patterns)
	if err != nil {
		log.Warn(err)
	}
	if len(inputs) == 0 {
		log.Error("no input files found")
		return exitFailed
	}

	log.WithField("build", cfg.BuildVersion).Infof("processing %d files", len(inputs))
	results, runErr := batch.Run(ctx, inputs)
	totals := engine.Summarize(results)

	log.WithFields(logrus.Fields{
		"files":          totals.FilesProcessed,
		"failed":         totals.FilesFailed,
		"without-photos": totals.FilesWithoutBlobs,
		"photos":         totals.BlobsExtracted,
		"photos-failed":  totals.BlobsFailed,
	}).Info("done")

	code := exitOK
	if runErr != nil {
		log.WithError(runErr).Warn("interrupted")
		code = exitFailed
	}
	if totals.FilesFailed > 0 {
		code = exitFailed
	}

	if opts.reportPath != "" {
		if err := report.Write(engine.BuildReport(cfg, results), opts.reportPath); err != nil {
			log.WithError(err).Error("could not write report")
			code = exitFailed
		} else {
			log.Debugf("report written to %s", opts.reportPath)
		}
	}
	return code
}
