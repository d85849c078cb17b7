package backend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/probcirc/circ/internal/compiler"
)

// NamedPlan pairs a plan with its pipeline name for rendering.
type NamedPlan struct {
	Name string
	Plan *compiler.Plan
}

// RenderPlans produces the deterministic text dump of compiled plans:
// one block per plan listing every layer with its routing entry and
// materialized parameters. Tensor ids are assigned in materialization
// order, so two layers sharing a parameter expression visibly reference
// the same tensor.
func RenderPlans(plans []NamedPlan) string {
	var b strings.Builder
	for i, np := range plans {
		if i > 0 {
			b.WriteString("\n")
		}
		renderPlan(&b, np.Name, np.Plan)
	}
	return b.String()
}

func renderPlan(b *strings.Builder, name string, plan *compiler.Plan) {
	fmt.Fprintf(b, "circuit %s\n", name)
	fmt.Fprintf(b, "scope %s\n", plan.Circuit.Scope())
	if op := plan.Circuit.Operation(); op != nil {
		fmt.Fprintf(b, "op %s\n", op.Operator)
	}
	fmt.Fprintf(b, "layers %d\n", len(plan.Layers))

	for i, layer := range plan.Layers {
		spec := layer.Spec()
		fmt.Fprintf(b, "%d %s%s[%d]", i, spec.Kind, spec.Scope, spec.NumOutputUnits)
		entry := plan.Entries[i]
		if entry.Vars != nil {
			fmt.Fprintf(b, " vars=%s", joinInts(entry.Vars))
		} else {
			fmt.Fprintf(b, " in=%s", joinInts(entry.Inputs))
		}
		for _, pname := range sortedParamNames(spec.Params) {
			fmt.Fprintf(b, " %s=%s", pname, spec.Params[pname].(*Tensor))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "output %s\n", joinInts(plan.Output.Inputs))
}

func sortedParamNames(params map[string]compiler.Tensor) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "(" + strings.Join(parts, " ") + ")"
}
