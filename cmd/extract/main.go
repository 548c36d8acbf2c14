// Command extract runs the filing extractors over one local file and prints
// the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/dgallion1/tenkview/internal/export"
	"github.com/dgallion1/tenkview/internal/extract"
	"github.com/dgallion1/tenkview/internal/metadata"
	"github.com/dgallion1/tenkview/internal/parser"
	"github.com/dgallion1/tenkview/internal/pipeline"
	"github.com/dgallion1/tenkview/internal/riskfactor"
)

type options struct {
	file       string
	section    string
	tablesXLSX string
	timeout    time.Duration
	preview    int
	verbose    bool
}

func main() {
	var opts options
	fs := pflag.NewFlagSet("extract", pflag.ExitOnError)
	fs.StringVarP(&opts.file, "file", "f", "", "Filing to extract (.pdf, .htm, .html)")
	fs.StringVarP(&opts.section, "section", "s", "", `Print only this section, e.g. "Item 1A"`)
	fs.StringVar(&opts.tablesXLSX, "tables-xlsx", "", "Also write the financial tables to this XLSX file")
	fs.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Extraction timeout")
	fs.IntVar(&opts.preview, "preview-chars", metadata.DefaultPreviewChars, "Preview length in characters")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress to stderr")
	fs.Parse(os.Args[1:])

	if opts.file == "" {
		fmt.Fprintln(os.Stderr, "usage: extract --file <filing> [--section <id>] [--tables-xlsx <out.xlsx>]")
		fs.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(opts, os.Stdout, log); err != nil {
		log.Error("extract failed", "file", opts.file, "error", err)
		os.Exit(1)
	}
}

func run(opts options, out io.Writer, log *slog.Logger) error {
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return err
	}
	name := filepath.Base(opts.file)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	doc, err := parser.Parse(ctx, name, data, log)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	b, err := extract.Run(ctx, doc, extract.Options{
		Filename:    name,
		ContentHash: pipeline.ContentHashHex(data),
		Risk:        riskfactor.Options{MaxTitleLen: riskfactor.DefaultMaxTitleLen},
		Metadata:    metadata.Options{PreviewChars: opts.preview},
		Log:         log,
	})
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	if opts.tablesXLSX != "" {
		if err := writeTables(opts.tablesXLSX, b); err != nil {
			return err
		}
		log.Info("wrote tables", "path", opts.tablesXLSX, "tables", len(b.Tables.Tables))
	}

	var v any = b
	if opts.section != "" {
		res, err := b.Section(opts.section)
		if err != nil {
			return err
		}
		v = res
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTables(path string, b *extract.Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteXLSX(f, b.Tables.Tables); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
