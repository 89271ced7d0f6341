package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/strictfetch/internal/strict"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Flag values that override the config file when set.
	Schema   string
	Database string
	Override string

	// Config is loaded before any subcommand runs.
	Config *Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the strictfetch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "strictfetch",
		Short: "strictfetch - explicit relation fetching",
		Long: `An ORM layer that makes implicit lazy loading an error.

strictfetch compiles CUE model schemas, plans select_related and
prefetch_related fetches, and runs strict-mode scenarios.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := opts.load(cmd)
			if err != nil {
				// Subcommands silence cobra's own error output
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: strictfetch.yaml, searched upwards)")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", "", "CUE schema directory")
	cmd.PersistentFlags().StringVar(&opts.Database, "database", "", "SQLite database path")
	cmd.PersistentFlags().StringVar(&opts.Override, "strict-override", "", "global strict override (unset|true|false)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// load checks the format, reads the config, applies flag overrides,
// installs the slog handler and sets the global strict override.
func (o *RootOptions) load(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}

	cfg, path, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("schema") {
		cfg.Schema = o.Schema
	}
	if flags.Changed("database") {
		cfg.Database = o.Database
	}
	if flags.Changed("strict-override") {
		cfg.Strict.GlobalOverride = o.Override
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	level, err := cfg.Level()
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	override, err := cfg.Override()
	if err != nil {
		return fmt.Errorf("strict.global_override: %w", err)
	}
	o.Config = cfg

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), o.Format, level))
	if path != "" {
		slog.Debug("loaded config", "path", path)
	}

	strict.SetOverride(override)
	return nil
}

// newLogger writes to w in the output format, so JSON output stays
// machine-readable on both streams.
func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
