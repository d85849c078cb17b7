package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/probcirc/circ/internal/graph"
	"github.com/probcirc/circ/internal/loader"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	*RootOptions
	FailFast bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "validate <dir>",
		Short:         "Validate a pipeline definition and its region graph",
		Long:          "Load a CUE pipeline definition, check its fields, and verify the region graph invariants without compiling.",
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
			return runValidate(args[0], opts, formatter)
		},
	}

	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop at the first definition error")

	return cmd
}

// violationReport is one region-graph violation in the JSON payload.
type violationReport struct {
	Code    string `json:"code"`
	Node    int    `json:"node"`
	Message string `json:"message"`
}

// validateReport is the JSON payload of a successful validation.
type validateReport struct {
	Vars       int    `json:"vars"`
	Regions    int    `json:"regions"`
	Partitions int    `json:"partitions"`
	Steps      int    `json:"steps"`
	Hash       string `json:"hash"`
}

func runValidate(dir string, opts *ValidateOptions, formatter *OutputFormatter) error {
	mode := loader.CollectAll
	if opts.FailFast {
		mode = loader.FailFast
	}

	spec, err := loader.LoadDir(dir, mode)
	if err != nil {
		return loadFailure(err, formatter)
	}
	formatter.VerboseLog("definition checks passed")

	g, err := loader.BuildGraph(spec.Graph)
	if err != nil {
		var mg *graph.MalformedGraphError
		if errors.As(err, &mg) {
			reportViolations(mg, formatter)
			return &ExitError{Code: ExitFailure, Message: "region graph is malformed", Err: err}
		}
		formatter.Error("BUILD_FAILED", err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "cannot build region graph", Err: err}
	}

	report := validateReport{
		Vars:       g.NumVars(),
		Regions:    len(g.Regions()),
		Partitions: len(g.Partitions()),
		Steps:      len(spec.Steps),
		Hash:       graph.CanonicalHash(g),
	}
	if opts.Format == "json" {
		return formatter.Success(report)
	}
	fmt.Fprintf(formatter.Writer, "valid: %d vars, %d regions, %d partitions, %d steps\n",
		report.Vars, report.Regions, report.Partitions, report.Steps)
	fmt.Fprintf(formatter.Writer, "hash: %s\n", report.Hash)
	return nil
}

func reportViolations(mg *graph.MalformedGraphError, formatter *OutputFormatter) {
	if formatter.Format == "json" {
		details := make([]violationReport, len(mg.Violations))
		for i, v := range mg.Violations {
			details[i] = violationReport{Code: string(v.Code), Node: int(v.Node), Message: v.Message}
		}
		formatter.Error("MALFORMED_GRAPH", mg.Error(), details)
		return
	}
	fmt.Fprintf(formatter.Writer, "malformed region graph: %d violations\n", len(mg.Violations))
	for _, v := range mg.Violations {
		fmt.Fprintf(formatter.Writer, "  %s\n", v.Error())
	}
}
