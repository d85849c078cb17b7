package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"go.uber.org/multierr"
)

// Load error codes.
const (
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeNoFiles     = "NO_FILES"
	ErrCodeLoadFailed  = "LOAD_FAILED"
	ErrCodeBuildFailed = "BUILD_FAILED"
	ErrCodeBadSpec     = "BAD_SPEC"
)

// Mode controls how errors are handled during loading.
type Mode int

const (
	// FailFast stops on the first error encountered.
	FailFast Mode = iota
	// CollectAll gathers every error before returning.
	CollectAll
)

// LoadError is an error raised while loading a pipeline definition.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDir loads a pipeline definition from the CUE package in dir. In
// CollectAll mode every spec problem is reported at once; the combined
// error unwraps to the individual LoadErrors.
func LoadDir(dir string, mode Mode) (*PipelineSpec, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definition directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("accessing definition directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return ParsePipeline(value, mode)
}

// LoadString loads a pipeline definition from CUE source, mostly for
// tests.
func LoadString(src string, mode Mode) (*PipelineSpec, error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return ParsePipeline(value, mode)
}

// ParsePipeline parses a CUE value into a PipelineSpec.
func ParsePipeline(v cue.Value, mode Mode) (*PipelineSpec, error) {
	spec := &PipelineSpec{}
	var errs error
	report := func(err error) bool {
		errs = multierr.Append(errs, err)
		return mode == FailFast
	}

	graphVal := v.LookupPath(cue.ParsePath("graph"))
	if !graphVal.Exists() {
		return nil, &LoadError{Code: ErrCodeBadSpec, Message: "graph is required", Pos: v.Pos()}
	}
	if err := graphVal.Decode(&spec.Graph); err != nil {
		return nil, &LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("decoding graph: %v", err), Pos: graphVal.Pos()}
	}
	if err := checkGraphSpec(&spec.Graph, graphVal.Pos()); err != nil && report(err) {
		return nil, errs
	}

	circuitVal := v.LookupPath(cue.ParsePath("circuit"))
	if circuitVal.Exists() {
		if err := circuitVal.Decode(&spec.Circuit); err != nil {
			if report(&LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("decoding circuit: %v", err), Pos: circuitVal.Pos()}) {
				return nil, errs
			}
		} else if err := checkCircuitSpec(&spec.Circuit, circuitVal.Pos()); err != nil && report(err) {
			return nil, errs
		}
	}

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if stepsVal.Exists() {
		iter, err := stepsVal.List()
		if err != nil {
			if report(&LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("steps must be a list: %v", err), Pos: stepsVal.Pos()}) {
				return nil, errs
			}
		} else {
			for i := 0; iter.Next(); i++ {
				var step StepSpec
				if err := iter.Value().Decode(&step); err != nil {
					if report(&LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("decoding step %d: %v", i, err), Pos: iter.Value().Pos()}) {
						return nil, errs
					}
					continue
				}
				if err := checkStepSpec(&step, i, iter.Value().Pos()); err != nil && report(err) {
					return nil, errs
				}
				spec.Steps = append(spec.Steps, step)
			}
		}
	}

	outputsVal := v.LookupPath(cue.ParsePath("outputs"))
	if outputsVal.Exists() {
		if err := outputsVal.Decode(&spec.Outputs); err != nil && report(
			&LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("decoding outputs: %v", err), Pos: outputsVal.Pos()}) {
			return nil, errs
		}
	}

	if errs != nil {
		return nil, errs
	}
	return spec, nil
}

// checkGraphSpec validates the shape of a graph definition before any
// building happens.
func checkGraphSpec(g *GraphSpec, pos token.Pos) error {
	switch g.Template {
	case "":
		if len(g.Regions) == 0 {
			return &LoadError{Code: ErrCodeBadSpec, Message: "graph needs a template or explicit regions", Pos: pos}
		}
	case "quad":
		if g.Rows < 1 || g.Cols < 1 {
			return &LoadError{Code: ErrCodeBadSpec, Message: "quad template needs rows and cols >= 1", Pos: pos}
		}
	case "linear":
		if g.NumVars < 1 {
			return &LoadError{Code: ErrCodeBadSpec, Message: "linear template needs numVars >= 1", Pos: pos}
		}
	case "random":
		if g.NumVars < 1 {
			return &LoadError{Code: ErrCodeBadSpec, Message: "random template needs numVars >= 1", Pos: pos}
		}
	default:
		return &LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("unknown graph template %q", g.Template), Pos: pos}
	}
	return nil
}

// checkCircuitSpec validates the enum-like circuit fields.
func checkCircuitSpec(c *CircuitSpec, pos token.Pos) error {
	switch c.SumProduct {
	case "", "dense", "cp":
	default:
		return &LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("unknown sumProduct %q", c.SumProduct), Pos: pos}
	}
	switch c.InputLayer {
	case "", "categorical", "gaussian":
	default:
		return &LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("unknown inputLayer %q", c.InputLayer), Pos: pos}
	}
	return nil
}

// checkStepSpec validates one pipeline step.
func checkStepSpec(s *StepSpec, i int, pos token.Pos) error {
	if s.Name == "" {
		return &LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("step %d needs a name", i), Pos: pos}
	}
	switch s.Op {
	case "integrate", "differentiate":
		if s.Operand == "" {
			return &LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("step %q needs an operand", s.Name), Pos: pos}
		}
	case "multiply":
		if s.Lhs == "" || s.Rhs == "" {
			return &LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("step %q needs lhs and rhs", s.Name), Pos: pos}
		}
	default:
		return &LoadError{Code: ErrCodeBadSpec, Message: fmt.Sprintf("step %q has unknown op %q", s.Name, s.Op), Pos: pos}
	}
	return nil
}

// findCUEFiles lists the non-hidden .cue files directly under dir.
func findCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
