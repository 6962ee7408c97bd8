package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/getsentry/difcheck/internal/config"
	"github.com/getsentry/difcheck/internal/debugmeta"
	"github.com/getsentry/difcheck/internal/dif"
	"github.com/getsentry/difcheck/internal/errorutil"
	"github.com/getsentry/difcheck/internal/logutil"
	"github.com/getsentry/difcheck/internal/report"
	"github.com/getsentry/difcheck/internal/storageprovider"
	"github.com/getsentry/difcheck/internal/storageutil"
)

var release string

// errUnusable makes the command exit with a failure without printing
// anything more than the report.
var errUnusable = errors.New("not usable")

type options struct {
	typ        string
	json       bool
	outputDir  string
	debugMeta  string
	configPath string
}

func main() {
	cmd := newRootCmd()
	err := cmd.ExecuteContext(context.Background())
	sentry.Flush(5 * time.Second)
	if err != nil {
		if !errors.Is(err, errUnusable) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "difcheck [flags] PATH...",
		Short: "Check debug info files",
		Long: `difcheck detects the format of debug info files (dSYM, Proguard mappings
and Breakpad symbols), lists the identifiers they contain and tells whether
they can be used to symbolicate crash reports.

Exit codes:
  0 - Every file is usable
  1 - A file could not be read or is not usable`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args, cmd.OutOrStdout())
		},
	}
	if release != "" {
		cmd.Version = release
	}

	cmd.Flags().StringVarP(&opts.typ, "type", "t", "", "Explicitly set the type of the debug info file (dsym, proguard, breakpad)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Format outputs as JSON")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Write a compressed JSON record per file to this directory")
	cmd.Flags().StringVar(&opts.debugMeta, "debug-meta", "", "Check which images of this crash report are covered by the files")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")

	return cmd
}

func run(ctx context.Context, opts options, paths []string, stdout io.Writer) error {
	hint, err := dif.ParseFormat(opts.typ)
	if err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logutil.ConfigureLogger(cfg.LogLevel, cfg.DetectGCE); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if cfg.SentryDSN != "" {
		err = sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
			Release:     release,
		})
		if err != nil {
			log.Error().Err(err).Msg("can't initialize sentry")
		}
	}

	var wanted []debugmeta.Image
	if opts.debugMeta != "" {
		b, err := os.ReadFile(opts.debugMeta)
		if err != nil {
			return err
		}
		dm, err := debugmeta.Decode(b)
		if err != nil {
			return fmt.Errorf("can't decode crash report %s: %w", opts.debugMeta, err)
		}
		wanted = dm.Images
	}

	results := checkAll(ctx, dif.Opener{MaxFileSize: cfg.MaxFileSize}, hint, paths, cfg.Workers)

	if opts.outputDir != "" {
		if err := writeRecords(ctx, &storageprovider.Local{Root: opts.outputDir}, results); err != nil {
			sentry.CaptureException(err)
			return err
		}
	}

	r := report.Report{Results: results}
	if opts.debugMeta != "" {
		var available []debugmeta.Image
		for _, res := range results {
			if res.File != nil {
				available = append(available, res.File.DebugImages()...)
			}
		}
		m := debugmeta.Match(wanted, available)
		r.Match = &m
	}

	// A single file that can't be read fails the command like any other
	// error instead of printing a report.
	if len(results) == 1 && results[0].Err != nil && r.Match == nil {
		return results[0].Err
	}
	if opts.json {
		err = report.WriteJSON(stdout, r)
	} else {
		err = report.WriteText(stdout, r)
	}
	if err != nil {
		return err
	}
	if !r.Usable() {
		return errUnusable
	}
	return nil
}

// checkAll opens every path with at most workers files open at once. Results
// are in the order of paths.
func checkAll(ctx context.Context, o dif.Opener, hint dif.Format, paths []string, workers int) []report.Result {
	results := make([]report.Result, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			f, err := o.Open(path, hint)
			if err != nil {
				captureError(path, err)
			}
			results[i] = report.Result{Path: path, File: f, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// captureError reports errors that point at a problem with the parser or
// the machine rather than at the input the user chose.
func captureError(path string, err error) {
	if errors.Is(err, errorutil.ErrUnknownFormat) || errors.Is(err, errorutil.ErrFormatMismatch) {
		log.Debug().Err(err).Str("path", path).Msg("not a supported debug file")
		return
	}
	if errorutil.IsDataIntegrity(err) {
		log.Warn().Err(err).Str("path", path).Msg("debug file is corrupted")
	} else {
		log.Error().Err(err).Str("path", path).Msg("can't check debug file")
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("path", filepath.Base(path))
		sentry.CaptureException(err)
	})
}

// writeRecords stores the record of every file that could be read as
// <name>.json.lz4 and reads each one back to make sure it decodes.
func writeRecords(ctx context.Context, storage storageutil.ObjectHandler, results []report.Result) error {
	seen := make(map[string]int, len(results))
	for _, res := range results {
		if res.File == nil {
			continue
		}
		name := recordName(res.Path, seen)
		if err := storageutil.CompressedWrite(ctx, storage, name, res.File); err != nil {
			return fmt.Errorf("can't write record for %s: %w", res.Path, err)
		}
		if err := verifyRecord(ctx, storage, name, res.File); err != nil {
			return fmt.Errorf("record for %s is corrupted: %w", res.Path, err)
		}
		log.Debug().Str("path", res.Path).Str("object", name).Msg("wrote record")
	}
	return nil
}

func verifyRecord(ctx context.Context, storage storageutil.ObjectHandler, name string, want *dif.File) error {
	var got dif.File
	if err := storageutil.UnmarshalCompressed(ctx, storage, name, &got); err != nil {
		return err
	}
	if got.Format() != want.Format() || len(got.Variants()) != len(want.Variants()) {
		return fmt.Errorf("%s: %w: stored %v with %d variants, expected %v with %d",
			name, errorutil.ErrDataIntegrity, got.Format(), len(got.Variants()), want.Format(), len(want.Variants()))
	}
	return nil
}

// recordName derives an object name from the file name, suffixing repeated
// names so records of files from different directories don't overwrite each
// other.
func recordName(path string, seen map[string]int) string {
	base := filepath.Base(filepath.Clean(path))
	n := seen[base]
	seen[base] = n + 1
	if n > 0 {
		base = fmt.Sprintf("%s.%d", base, n)
	}
	return base + ".json.lz4"
}
