package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ethangolledge/doc-query/internal/catalog"
	"github.com/ethangolledge/doc-query/internal/downloader"
	"github.com/ethangolledge/doc-query/internal/inventory"
	"github.com/ethangolledge/doc-query/internal/orchestrator"
	"github.com/ethangolledge/doc-query/internal/progress"
	"github.com/ethangolledge/doc-query/internal/remote"
	"github.com/ethangolledge/doc-query/internal/scanner"
	"github.com/ethangolledge/doc-query/internal/storage"
)

func runDownload(args []string) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	common := registerCommonFlags(fs)
	selectTypes := fs.String("select", "", "Answer the type prompt without asking: all, none, or comma-separated types")
	acceptUnsupported := fs.Bool("accept-unsupported", false, "With -select, continue when unsupported types were requested")
	retry := fs.Bool("retry", false, "With -select, retry failed downloads once without asking")
	report := fs.String("report", "", "Write selected files and outcomes as JSON to this path")
	saveConfig := fs.String("save-config", "", "Write the resolved configuration (without credentials) to this path")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: drivefetch download [options]

Scan a Drive folder tree, choose the file types to fetch, and download them
into <dest>/<type>/<name>. Failed downloads can be retried once.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := common.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return configExitCode(err)
	}

	if *saveConfig != "" {
		if err := cfg.SaveFile(*saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSetupError
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	client, err := newDriveClient(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSetupError
	}

	sink, err := storage.Open(ctx, cfg.Destination)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening destination %s: %v\n", cfg.Destination, err)
		return ExitStorageError
	}
	defer sink.Close()

	var prompter orchestrator.Prompter
	if *selectTypes != "" {
		prompter = &scriptedPrompter{
			selection:         orchestrator.ParseSelection(*selectTypes),
			acceptUnsupported: *acceptUnsupported,
			retry:             *retry,
			out:               os.Stdout,
		}
	} else {
		prompter = newTerminalPrompter(os.Stdin, os.Stdout)
	}

	delay := cfg.Delay
	if delay == 0 {
		delay = -1
	}
	passes := &passRunner{
		opener: client,
		sink:   sink,
		opts: downloader.Options{
			Workers: cfg.Workers,
			Delay:   delay,
			Logger:  log,
		},
		showProgress: cfg.Progress,
	}

	policy := catalog.NewPolicy(cfg.AllowedTypes...)
	orch := orchestrator.New(
		&summarizingScanner{
			scanner:   scanner.New(client, scanner.Options{MaxDepth: cfg.MaxDepth, Logger: log}),
			typesPath: cfg.TypesPath(),
			out:       os.Stdout,
			log:       log,
		},
		passes,
		prompter,
		orchestrator.Options{
			RootID: cfg.FolderID,
			Policy: &policy,
			Sample: cfg.Sample,
			Seed:   cfg.Seed,
			Logger: log,
		},
	)

	fmt.Fprintf(os.Stdout, "[drivefetch] Scanning folder %s into %s\n", cfg.FolderID, sink)
	rep, runErr := orch.Run(ctx)

	if len(rep.Outcomes) > 0 {
		fmt.Fprintf(os.Stdout, "[drivefetch] Download process finished. Succeeded: %d | Skipped: %d | Failed: %d\n",
			rep.FirstPass.Succeeded, rep.FirstPass.Skipped, rep.FirstPass.Failed)
		if rep.Retried > 0 {
			fmt.Fprintf(os.Stdout, "[drivefetch] Second download complete. Errors: %d.\n", rep.Final.Failed)
		}
	}

	if *report != "" {
		if err := writeJSON(*report, rep); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return ExitGeneralError
	}
	if rep.Final.Failed > 0 {
		fmt.Fprintf(os.Stderr, "[drivefetch] %d downloads still failing, please investigate further\n", rep.Final.Failed)
		return ExitDownloadsFailed
	}
	return ExitSuccess
}

// passRunner runs each download pass with its own progress reporter.
type passRunner struct {
	opener       remote.Opener
	sink         storage.Sink
	opts         downloader.Options
	showProgress bool
	passes       int
}

func (r *passRunner) DownloadMany(ctx context.Context, recs []*inventory.FileRecord) []downloader.Outcome {
	r.passes++
	opts := r.opts

	if r.showProgress {
		label := "Downloading"
		if r.passes > 1 {
			label = "Retrying"
		}
		var total int64
		for _, rec := range recs {
			if rec.Size > 0 {
				total += rec.Size
			}
		}
		reporter := progress.NewReporter(progress.Options{
			TotalFiles: len(recs),
			TotalBytes: total,
			Workers:    opts.Workers,
			Label:      label,
		})
		reporter.Start()
		defer reporter.Stop()
		opts.Progress = reporter
	}

	return downloader.New(r.opener, r.sink, opts).DownloadMany(ctx, recs)
}
