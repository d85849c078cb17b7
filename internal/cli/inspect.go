package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/probcirc/circ/internal/loader"
	"github.com/probcirc/circ/internal/symbolic"
)

// InspectOptions holds options for the inspect command.
type InspectOptions struct {
	*RootOptions
	Circuit string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "inspect <dir>",
		Short:         "Show the structure of the circuits in a pipeline",
		Long:          "Load a CUE pipeline definition, build its circuits, and report per-circuit layer structure without compiling.",
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
			return runInspect(args[0], opts, formatter)
		},
	}

	cmd.Flags().StringVarP(&opts.Circuit, "circuit", "c", "", "inspect a single circuit by name")

	return cmd
}

// inspectReport is the per-circuit entry of the JSON inspect payload.
type inspectReport struct {
	Name     string `json:"name"`
	Scope    string `json:"scope"`
	Op       string `json:"op,omitempty"`
	Layers   int    `json:"layers"`
	Inputs   int    `json:"inputs"`
	Dense    int    `json:"dense"`
	Products int    `json:"products"`
	Mixing   int    `json:"mixing"`
	Outputs  int    `json:"outputs"`
}

func runInspect(dir string, opts *InspectOptions, formatter *OutputFormatter) error {
	spec, err := loader.LoadDir(dir, loader.CollectAll)
	if err != nil {
		return loadFailure(err, formatter)
	}

	circuits, _, err := loader.BuildPipeline(spec, symbolic.DefaultRegistry(), buildLogger(formatter))
	if err != nil {
		formatter.Error("BUILD_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "pipeline build failed", Err: err}
	}

	names := orderedNames(circuits)
	if opts.Circuit != "" {
		if _, ok := circuits[opts.Circuit]; !ok {
			formatter.Error("NOT_FOUND", fmt.Sprintf("no circuit named %q", opts.Circuit), nil)
			return &ExitError{Code: ExitCommandError, Message: "unknown circuit"}
		}
		names = []string{opts.Circuit}
	}

	reports := make([]inspectReport, 0, len(names))
	for _, name := range names {
		reports = append(reports, describeCircuit(name, circuits[name]))
	}

	if opts.Format == "json" {
		return formatter.Success(reports)
	}
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		fmt.Fprintf(formatter.Writer, "circuit %s\n", r.Name)
		fmt.Fprintf(formatter.Writer, "  scope %s\n", r.Scope)
		if r.Op != "" {
			fmt.Fprintf(formatter.Writer, "  op %s\n", r.Op)
		}
		fmt.Fprintf(formatter.Writer, "  layers %d (input %d, dense %d, product %d, mixing %d)\n",
			r.Layers, r.Inputs, r.Dense, r.Products, r.Mixing)
		fmt.Fprintf(formatter.Writer, "  outputs %d\n", r.Outputs)
	}
	return nil
}

func describeCircuit(name string, c *symbolic.Circuit) inspectReport {
	r := inspectReport{
		Name:     name,
		Scope:    c.Scope().String(),
		Layers:   len(c.Layers()),
		Inputs:   len(c.InputLayers()),
		Dense:    len(c.DenseLayers()),
		Products: len(c.ProductLayers()),
		Mixing:   len(c.MixingLayers()),
		Outputs:  len(c.OutputLayers()),
	}
	if op := c.Operation(); op != nil {
		r.Op = op.Operator.String()
	}
	return r
}
