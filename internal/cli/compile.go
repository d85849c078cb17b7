package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/probcirc/circ/internal/backend"
	"github.com/probcirc/circ/internal/compiler"
	"github.com/probcirc/circ/internal/loader"
	"github.com/probcirc/circ/internal/symbolic"
)

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "compile <dir>",
		Short:         "Compile a pipeline definition into executable plans",
		Long:          "Load a CUE pipeline definition, build its circuits, and compile them into plans with bookkeeping.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			return runCompile(args[0], opts, formatter)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the plan dump to a file instead of stdout")

	return cmd
}

// circuitSummary is the per-circuit entry of the JSON compile report.
type circuitSummary struct {
	Name   string `json:"name"`
	Scope  string `json:"scope"`
	Op     string `json:"op,omitempty"`
	Layers int    `json:"layers"`
}

// compileReport is the JSON payload of a successful compile.
type compileReport struct {
	Circuits []circuitSummary `json:"circuits"`
	Tensors  int              `json:"tensors"`
}

func runCompile(dir string, opts *CompileOptions, formatter *OutputFormatter) error {
	spec, err := loader.LoadDir(dir, loader.CollectAll)
	if err != nil {
		return loadFailure(err, formatter)
	}
	formatter.VerboseLog("loaded pipeline definition from %s", dir)

	circuits, roots, err := loader.BuildPipeline(spec, symbolic.DefaultRegistry(), buildLogger(formatter))
	if err != nil {
		formatter.Error("BUILD_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "pipeline build failed", Err: err}
	}
	formatter.VerboseLog("built %d circuits", len(circuits))

	factory := backend.NewFactory()
	ctx := compiler.NewContext(
		compiler.WithFactory(factory),
		compiler.WithLogger(buildLogger(formatter)),
	)
	if _, err := compiler.CompilePipeline(ctx, roots...); err != nil {
		formatter.Error("COMPILE_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "compilation failed", Err: err}
	}

	names := orderedNames(circuits)
	if opts.Format == "json" {
		report := compileReport{Tensors: len(factory.Tensors())}
		for _, name := range names {
			c := circuits[name]
			plan := ctx.Plan(c)
			if plan == nil {
				continue
			}
			s := circuitSummary{Name: name, Scope: c.Scope().String(), Layers: len(plan.Layers)}
			if op := c.Operation(); op != nil {
				s.Op = op.Operator.String()
			}
			report.Circuits = append(report.Circuits, s)
		}
		return formatter.Success(report)
	}

	var named []backend.NamedPlan
	for _, name := range names {
		plan := ctx.Plan(circuits[name])
		if plan == nil {
			continue
		}
		named = append(named, backend.NamedPlan{Name: name, Plan: plan})
	}
	dump := backend.RenderPlans(named)
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(dump), 0o644); err != nil {
			formatter.Error("WRITE_FAILED", err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "cannot write output file", Err: err}
		}
		fmt.Fprintf(formatter.Writer, "wrote %d plans to %s\n", len(named), opts.Output)
		return nil
	}
	fmt.Fprint(formatter.Writer, dump)
	return nil
}

// buildLogger returns a logger feeding the formatter's diagnostic
// stream, or a discarded one when verbose mode is off.
func buildLogger(formatter *OutputFormatter) logr.Logger {
	if !formatter.Verbose {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		formatter.VerboseLog("%s %s", prefix, args)
	}, funcr.Options{Verbosity: 1})
}

// orderedNames lists circuit names with the base circuit first and the
// derived circuits sorted by name.
func orderedNames(circuits map[string]*symbolic.Circuit) []string {
	names := make([]string, 0, len(circuits))
	for name := range circuits {
		if name == loader.BaseName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if _, ok := circuits[loader.BaseName]; ok {
		names = append([]string{loader.BaseName}, names...)
	}
	return names
}

// loadFailure reports a loader error and maps it to an exit code. Path
// problems are command errors; malformed definitions are failures.
func loadFailure(err error, formatter *OutputFormatter) error {
	code := loader.ErrCodeLoadFailed
	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
	}
	formatter.Error(code, err.Error(), nil)
	if code == loader.ErrCodeNotFound || code == loader.ErrCodeNoFiles {
		return &ExitError{Code: ExitCommandError, Message: "cannot load pipeline definition", Err: err}
	}
	return &ExitError{Code: ExitFailure, Message: "cannot load pipeline definition", Err: err}
}
