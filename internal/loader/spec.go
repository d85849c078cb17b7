// Package loader reads pipeline definitions from CUE files: a region
// graph (by template or explicit node lists), the circuit construction
// hyperparameters, and the pipeline of structural operations to apply.
package loader

// GraphSpec describes a region graph, either by naming a template or by
// listing regions and partitions explicitly.
type GraphSpec struct {
	Template string `json:"template,omitempty" yaml:"template,omitempty"`

	// Template parameters.
	Rows        int   `json:"rows,omitempty" yaml:"rows,omitempty"`
	Cols        int   `json:"cols,omitempty" yaml:"cols,omitempty"`
	NumVars     int   `json:"numVars,omitempty" yaml:"numVars,omitempty"`
	Repetitions int   `json:"repetitions,omitempty" yaml:"repetitions,omitempty"`
	Seed        int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Explicit node lists, used when Template is empty.
	Regions    []RegionSpec    `json:"regions,omitempty" yaml:"regions,omitempty"`
	Partitions []PartitionSpec `json:"partitions,omitempty" yaml:"partitions,omitempty"`
}

// RegionSpec is one explicit region node.
type RegionSpec struct {
	Name string `json:"name" yaml:"name"`
	Vars []int  `json:"vars" yaml:"vars"`
}

// PartitionSpec is one explicit partition node, wired by region name.
type PartitionSpec struct {
	Inputs []string `json:"inputs" yaml:"inputs"`
	Output string   `json:"output" yaml:"output"`
}

// CircuitSpec holds the construction hyperparameters.
type CircuitSpec struct {
	SumProduct    string `json:"sumProduct,omitempty" yaml:"sumProduct,omitempty"`
	InputLayer    string `json:"inputLayer,omitempty" yaml:"inputLayer,omitempty"`
	NumChannels   int    `json:"numChannels,omitempty" yaml:"numChannels,omitempty"`
	NumInputUnits int    `json:"numInputUnits,omitempty" yaml:"numInputUnits,omitempty"`
	NumSumUnits   int    `json:"numSumUnits,omitempty" yaml:"numSumUnits,omitempty"`
	NumClasses    int    `json:"numClasses,omitempty" yaml:"numClasses,omitempty"`
	NumCategories int    `json:"numCategories,omitempty" yaml:"numCategories,omitempty"`
}

// StepSpec is one structural operation of the pipeline. Operands are
// referenced by name; "base" names the circuit built from the region
// graph.
type StepSpec struct {
	Name    string `json:"name" yaml:"name"`
	Op      string `json:"op" yaml:"op"`
	Operand string `json:"operand,omitempty" yaml:"operand,omitempty"`
	Lhs     string `json:"lhs,omitempty" yaml:"lhs,omitempty"`
	Rhs     string `json:"rhs,omitempty" yaml:"rhs,omitempty"`
	Scope   []int  `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// PipelineSpec is a full pipeline definition.
type PipelineSpec struct {
	Graph    GraphSpec   `json:"graph" yaml:"graph"`
	Circuit  CircuitSpec `json:"circuit,omitempty" yaml:"circuit,omitempty"`
	Steps    []StepSpec  `json:"steps,omitempty" yaml:"steps,omitempty"`
	Outputs  []string    `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}
