// Command sheetcheck validates spreadsheets and CSV files against a schema from
// the command line. It exits 1 when any file fails validation.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/JonMunkholm/sheetguard/internal/config"
	"github.com/JonMunkholm/sheetguard/internal/core"
	"github.com/JonMunkholm/sheetguard/internal/logging"
	"github.com/JonMunkholm/sheetguard/internal/schema"
	"github.com/JonMunkholm/sheetguard/internal/workbook"
)

// errFailed signals that validation ran and at least one file failed.
var errFailed = errors.New("validation failed")

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes err for the terminal, followed by the support message when
// the error is one a user can act on. errFailed prints nothing; the report said it.
func printError(w io.Writer, err error) {
	if errors.Is(err, errFailed) {
		return
	}
	fmt.Fprintln(w, "error:", err)
	if core.IsUserFacing(err) {
		fmt.Fprintln(w, core.FormatUserError(err))
	}
}

type validateOptions struct {
	schemaPath string
	format     string
	parallel   int
	delimiter  string
	encoding   string
	password   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "sheetcheck",
		Short:         "Validate spreadsheets and CSV files against a schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr so reports on stdout stay machine-readable.
			slog.SetDefault(logging.New(stderr, logLevel, "text"))
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(newValidateCmd(), newSchemaCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	opts := validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate --schema FILE [files or directories...]",
		Short: "Validate files against a schema",
		Long: `Validate .xlsx, .xls and .csv files against a JSON or YAML schema.

Directories are expanded to the supported files directly inside them.
Every file is checked completely; the exit status is 1 if any file fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.schemaPath, "schema", "s", "", "Schema file (.json, .yaml or .yml)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Report format: text or json")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 4, "Files validated at once")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", ",", "CSV field delimiter")
	cmd.Flags().StringVar(&opts.encoding, "encoding", "utf-8", "CSV text encoding, e.g. windows-1252")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password for encrypted workbooks")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runValidate(cmd *cobra.Command, opts validateOptions, args []string) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format: %s (must be text or json)", opts.format)
	}

	sch, err := schema.Load(opts.schemaPath)
	if err != nil {
		return err
	}

	engine, err := newEngine(opts)
	if err != nil {
		return err
	}

	sources, err := collectSources(args)
	if err != nil {
		return err
	}

	cfg := config.UploadConfig{
		MaxConcurrent:    max(opts.parallel, 1),
		BatchParallelism: max(opts.parallel, 1),
	}
	svc := core.NewService(nil, cfg, core.WithEngine(engine))

	results, err := svc.ValidateBatch(cmd.Context(), sch, sources, opts.parallel)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		err = writeJSONReport(cmd.OutOrStdout(), results)
	} else {
		err = writeTextReport(cmd.OutOrStdout(), results)
	}
	if err != nil {
		return err
	}

	for _, res := range results {
		if !res.Success {
			return errFailed
		}
	}
	return nil
}

func newEngine(opts validateOptions) (*core.Engine, error) {
	comma, size := utf8.DecodeRuneInString(opts.delimiter)
	if comma == utf8.RuneError || size != len(opts.delimiter) {
		return nil, fmt.Errorf("invalid delimiter %q: must be a single character", opts.delimiter)
	}

	enc, err := lookupEncoding(opts.encoding)
	if err != nil {
		return nil, err
	}

	return core.NewEngine(
		core.WithParser("csv", workbook.CSVParser{Comma: comma, Encoding: enc}),
		core.WithParser("xlsx", workbook.XLSXParser{Password: opts.password}),
	), nil
}

// lookupEncoding resolves a WHATWG encoding label. UTF-8 maps to nil so the
// parser keeps its BOM handling.
func lookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

// collectSources expands directories and keeps files as given.
func collectSources(args []string) ([]core.Source, error) {
	var sources []core.Source
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			dirSources, err := core.SourcesInDir(arg)
			if err != nil {
				return nil, err
			}
			sources = append(sources, dirSources...)
			continue
		}
		// Missing files surface as ErrMissingFile from the engine.
		sources = append(sources, core.FileSource(arg))
	}
	return sources, nil
}

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Work with schema documents",
	}

	var printDoc bool
	check := &cobra.Command{
		Use:   "check FILE",
		Short: "Check that a schema document is valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := schema.Load(args[0])
			if err != nil {
				return err
			}
			if printDoc {
				return writeJSON(cmd.OutOrStdout(), sch)
			}
			return writeSchemaSummary(cmd.OutOrStdout(), args[0], sch)
		},
	}
	check.Flags().BoolVar(&printDoc, "print", false, "Print the schema in normalized JSON form")

	cmd.AddCommand(check)
	return cmd
}
