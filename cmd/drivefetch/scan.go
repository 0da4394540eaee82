package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ethangolledge/doc-query/internal/catalog"
	"github.com/ethangolledge/doc-query/internal/config"
	"github.com/ethangolledge/doc-query/internal/inventory"
	"github.com/ethangolledge/doc-query/internal/progress"
	"github.com/ethangolledge/doc-query/internal/scanner"
)

func runScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	common := registerCommonFlags(fs)
	report := fs.String("report", "", "Write the inventory as JSON to this path")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: drivefetch scan [options]

Walk a Drive folder tree, print a summary by file type, and write the
distinct type list to distinct_file_types_<folder>.txt.

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

	s := &summarizingScanner{
		scanner:   scanner.New(client, scanner.Options{MaxDepth: cfg.MaxDepth, Logger: log}),
		typesPath: cfg.TypesPath(),
		out:       os.Stdout,
		log:       log,
	}
	inv, err := s.Scan(ctx, cfg.FolderID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	if *report != "" {
		if err := writeJSON(*report, inv.Files); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitGeneralError
		}
	}
	return ExitSuccess
}

// configExitCode maps a configuration error to an exit code.
func configExitCode(err error) int {
	if errors.Is(err, config.ErrMissingCredentials) {
		return ExitSetupError
	}
	return ExitInvalidArgs
}

// summarizingScanner prints the per-type summary and writes the distinct
// type list once the scan completes.
type summarizingScanner struct {
	scanner   *scanner.Scanner
	typesPath string
	out       io.Writer
	log       *zap.Logger
}

func (s *summarizingScanner) Scan(ctx context.Context, rootID string) (*inventory.Inventory, error) {
	inv, err := s.scanner.Scan(ctx, rootID)
	if err != nil {
		return inv, err
	}

	printSummary(s.out, inv)

	types := catalog.DistinctTypes(inv)
	if err := writeTypes(s.typesPath, types); err != nil {
		// the list is for operator reference only
		s.log.Warn("write type list failed", zap.String("path", s.typesPath), zap.Error(err))
	} else {
		fmt.Fprintf(s.out, "[drivefetch] Wrote %d distinct types to %s\n", len(types), s.typesPath)
	}
	return inv, nil
}

func printSummary(w io.Writer, inv *inventory.Inventory) {
	fmt.Fprintf(w, "[drivefetch] Found %d files in %d folders\n", inv.Len(), inv.Folders.Len())
	for _, s := range catalog.Summarize(inv.Files) {
		fmt.Fprintf(w, "[drivefetch]   %s: %d files, %s\n", s.MimeType, s.Count, progress.FormatBytes(s.TotalBytes))
	}
}

func writeTypes(path string, types []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := catalog.WriteTypes(f, types); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
