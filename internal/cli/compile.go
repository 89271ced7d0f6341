package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strictfetch/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// FieldInfo describes one accessor of a compiled model.
type FieldInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Type    string `json:"type,omitempty"`
	Column  string `json:"column,omitempty"`
	Target  string `json:"target,omitempty"`
	Reverse bool   `json:"reverse,omitempty"`
}

// ModelInfo describes a compiled model.
type ModelInfo struct {
	Name   string      `json:"name"`
	Table  string      `json:"table"`
	Fields []FieldInfo `json:"fields"`
}

// CompilationResult holds the compiled registry.
type CompilationResult struct {
	Models  []ModelInfo `json:"models"`
	Through []string    `json:"through_tables"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	ModelCount    int
	ScalarCount   int
	RelationCount int
	ThroughCount  int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [schema-dir]",
		Short: "Compile a CUE model schema",
		Long: `Compile CUE model declarations into the model registry.

Prints every model with its columns, forward relations and derived
reverse accessors. With --output the registry is written as JSON.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, schemaDirArg(rootOpts, args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadSchema(schemaDir, LoadModeCollectAll)
	if loadResult == nil {
		loadErr := firstLoadError(loadErrors)
		return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, schemaDir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := describeRegistry(loadResult.Registry)
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeRegistryToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// describeRegistry flattens a registry into printable descriptors.
func describeRegistry(reg *schema.Registry) *CompilationResult {
	result := &CompilationResult{Models: []ModelInfo{}, Through: []string{}}
	for _, m := range reg.Models() {
		info := ModelInfo{Name: m.Name, Table: m.Table}
		for _, f := range m.Fields() {
			fi := FieldInfo{Name: f.Name, Kind: f.Kind.String(), Reverse: f.Reverse}
			if f.IsRelation() {
				fi.Target = f.Target
			} else {
				fi.Type = string(f.Type)
				fi.Column = f.Column
			}
			info.Fields = append(info.Fields, fi)
		}
		result.Models = append(result.Models, info)
	}
	for _, tt := range reg.ThroughTables() {
		result.Through = append(result.Through, tt.Name)
	}
	return result
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{
		ModelCount:   len(result.Models),
		ThroughCount: len(result.Through),
	}
	for _, m := range result.Models {
		for _, f := range m.Fields {
			if f.Kind == schema.Scalar.String() {
				stats.ScalarCount++
			} else if !f.Reverse {
				stats.RelationCount++
			}
		}
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d model(s), %d relation(s), %d through table(s)\n\n",
		stats.ModelCount, stats.RelationCount, stats.ThroughCount)

	for _, m := range result.Models {
		fmt.Fprintf(w, "%s (%s)\n", m.Name, m.Table)
		for _, f := range m.Fields {
			switch {
			case f.Type != "":
				fmt.Fprintf(w, "  %s: %s\n", f.Name, f.Type)
			case f.Reverse:
				fmt.Fprintf(w, "  %s: %s → %s (reverse)\n", f.Name, f.Kind, f.Target)
			default:
				fmt.Fprintf(w, "  %s: %s → %s\n", f.Name, f.Kind, f.Target)
			}
		}
	}

	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote registry to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	verrs := toValidationErrors(errs)

	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(verrs))
		for i, ve := range verrs {
			cliErrors[i] = CLIError{Code: ve.Code, Message: ve.Message}
		}
		err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		})
		if err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, ve := range verrs {
		if ve.File != "" {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", ve.File, ve.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", ve.Code, strings.TrimSpace(ve.Message))
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// writeRegistryToFile writes the compilation result to a file as indented JSON.
func writeRegistryToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
